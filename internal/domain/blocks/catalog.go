// Package blocks 提供内置块目录：每类计算单元的定义与输入/输出模式。
// 目录由图服务经 GET /api/v1/blocks 下发，编辑器加载图时用它解析节点模式。
package blocks

import (
	"sort"

	"flowcanvas/internal/domain/editor/model"
)

var builtin = map[string]*model.Block{
	"sum": {
		ID:          "sum",
		Name:        "Sum",
		Description: "Add two numbers",
		InputSchema: &model.Schema{
			Type: "object",
			Properties: map[string]*model.Schema{
				"a": {Type: "number", Title: "A"},
				"b": {Type: "number", Title: "B"},
			},
			Required: []string{"a", "b"},
		},
		OutputSchema: &model.Schema{
			Type: "object",
			Properties: map[string]*model.Schema{
				"out": {Type: "number", Title: "Result"},
			},
		},
	},
	"text-template": {
		ID:          "text-template",
		Name:        "Text Template",
		Description: "Render a template with named values",
		InputSchema: &model.Schema{
			Type: "object",
			Properties: map[string]*model.Schema{
				"template": {Type: "string", Title: "Template"},
				"values":   {Type: "object", Title: "Values", AdditionalProperties: true},
			},
			Required: []string{"template"},
		},
		OutputSchema: &model.Schema{
			Type: "object",
			Properties: map[string]*model.Schema{
				"text": {Type: "string", Title: "Text"},
			},
		},
	},
	"http-request": {
		ID:          "http-request",
		Name:        "HTTP Request",
		Description: "Perform an HTTP request",
		InputSchema: &model.Schema{
			Type: "object",
			Properties: map[string]*model.Schema{
				"url":    {Type: "string", Title: "URL"},
				"method": {Type: "string", Title: "Method", Enum: []any{"GET", "POST", "PUT", "DELETE"}, Default: "GET"},
				"body":   {Type: "object", Title: "Body", AdditionalProperties: true},
				"headers": {
					Type:  "object",
					Title: "Headers",
					Properties: map[string]*model.Schema{
						"content_type": {Type: "string", Title: "Content-Type"},
						"user_agent":   {Type: "string", Title: "User-Agent"},
					},
				},
			},
			Required: []string{"url", "method"},
		},
		OutputSchema: &model.Schema{
			Type: "object",
			Properties: map[string]*model.Schema{
				"status": {Type: "number", Title: "Status"},
				"body":   {Type: "object", Title: "Body", AdditionalProperties: true},
			},
		},
	},
	"store-value": {
		ID:          "store-value",
		Name:        "Store Value",
		Description: "Hold a value and pass it through",
		InputSchema: &model.Schema{
			Type: "object",
			Properties: map[string]*model.Schema{
				"input": {Type: "string", Title: "Input"},
			},
			Required: []string{"input"},
		},
		OutputSchema: &model.Schema{
			Type: "object",
			Properties: map[string]*model.Schema{
				"output": {Type: "string", Title: "Output"},
			},
		},
	},
}

// Get 按标识查找块定义。
func Get(id string) (*model.Block, bool) {
	b, ok := builtin[id]
	return b, ok
}

// All 返回全部块定义，按标识排序。
func All() []*model.Block {
	out := make([]*model.Block, 0, len(builtin))
	for _, b := range builtin {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
