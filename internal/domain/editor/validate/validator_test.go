package validate_test

import (
	"testing"

	"flowcanvas/internal/domain/editor/model"
	"flowcanvas/internal/domain/editor/validate"
)

func nodeWithSchema(s *model.Schema, values map[string]any) *model.Node {
	return &model.Node{
		ID:               "n1",
		BlockID:          "test",
		InputSchema:      s,
		ConfiguredValues: values,
	}
}

// TestRequiredFieldMissing 缺失的必填字段报 "This field is required"。
func TestRequiredFieldMissing(t *testing.T) {
	v := validate.New(nil)
	s := &model.Schema{
		Type:       "object",
		Properties: map[string]*model.Schema{"url": {Type: "string"}},
		Required:   []string{"url"},
	}

	res := v.Validate(nodeWithSchema(s, nil))
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if res.Errors["url"] != "This field is required" {
		t.Fatalf("unexpected message: %q", res.Errors["url"])
	}
}

// TestEdgeFedFieldExempt 由入边喂值的必填字段豁免静态校验，无论配置值如何。
func TestEdgeFedFieldExempt(t *testing.T) {
	v := validate.New(nil)
	s := &model.Schema{
		Type:       "object",
		Properties: map[string]*model.Schema{"in": {Type: "number"}},
		Required:   []string{"in"},
	}
	n := nodeWithSchema(s, nil)
	n.Connections = []model.ConnectionRef{{
		EdgeID:       "up_out_n1_in",
		Source:       "up",
		SourceHandle: "out",
		Target:       "n1",
		TargetHandle: "in",
	}}

	res := v.Validate(n)
	if !res.Valid {
		t.Fatalf("expected valid result, got errors: %v", res.Errors)
	}
	t.Log("✅ edge-fed required field not flagged")
}

// TestOutgoingEdgeDoesNotExempt 只有指向本节点该字段的入边才豁免，出边不算。
func TestOutgoingEdgeDoesNotExempt(t *testing.T) {
	v := validate.New(nil)
	s := &model.Schema{
		Type:       "object",
		Properties: map[string]*model.Schema{"in": {Type: "number"}},
		Required:   []string{"in"},
	}
	n := nodeWithSchema(s, nil)
	n.Connections = []model.ConnectionRef{{
		EdgeID:       "n1_in_down_x",
		Source:       "n1",
		SourceHandle: "in",
		Target:       "down",
		TargetHandle: "x",
	}}

	res := v.Validate(n)
	if res.Valid {
		t.Fatal("expected invalid: outgoing edge must not exempt the field")
	}
}

// TestTypeMismatchCapitalized 类型不匹配的消息首字母大写、按字段路径键入。
func TestTypeMismatchCapitalized(t *testing.T) {
	v := validate.New(nil)
	s := &model.Schema{
		Type:       "object",
		Properties: map[string]*model.Schema{"count": {Type: "number"}},
	}

	res := v.Validate(nodeWithSchema(s, map[string]any{"count": "three"}))
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	msg := res.Errors["count"]
	if msg == "" || msg[0] < 'A' || msg[0] > 'Z' {
		t.Fatalf("expected capitalized message, got %q", msg)
	}
}

// TestNestedObjectValidation 嵌套记录字段递归校验，错误键为点号路径。
func TestNestedObjectValidation(t *testing.T) {
	v := validate.New(nil)
	s := &model.Schema{
		Type: "object",
		Properties: map[string]*model.Schema{
			"headers": {
				Type: "object",
				Properties: map[string]*model.Schema{
					"content_type": {Type: "string"},
				},
			},
		},
	}

	res := v.Validate(nodeWithSchema(s, map[string]any{
		"headers": map[string]any{"content_type": 42},
	}))
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if _, ok := res.Errors["headers.content_type"]; !ok {
		t.Fatalf("expected error keyed by dot path, got %v", res.Errors)
	}
}

// TestFreeFormBypassed 自由容器跳过结构校验，任意内容透传。
func TestFreeFormBypassed(t *testing.T) {
	v := validate.New(nil)
	s := &model.Schema{
		Type: "object",
		Properties: map[string]*model.Schema{
			"values": {Type: "object", AdditionalProperties: true},
		},
	}

	res := v.Validate(nodeWithSchema(s, map[string]any{
		"values": map[string]any{"anything": []any{1, "two", true}},
	}))
	if !res.Valid {
		t.Fatalf("expected free-form container to pass, got %v", res.Errors)
	}
}

// TestEnumMembership 枚举字段校验取值范围。
func TestEnumMembership(t *testing.T) {
	v := validate.New(nil)
	s := &model.Schema{
		Type: "object",
		Properties: map[string]*model.Schema{
			"method": {Type: "string", Enum: []any{"GET", "POST"}},
		},
	}

	if res := v.Validate(nodeWithSchema(s, map[string]any{"method": "GET"})); !res.Valid {
		t.Fatalf("expected GET to pass, got %v", res.Errors)
	}
	if res := v.Validate(nodeWithSchema(s, map[string]any{"method": "PATCH"})); res.Valid {
		t.Fatal("expected PATCH to fail enum check")
	}
}

// TestNoSchemaIsValid 没有输入模式的节点视为无可校验内容。
func TestNoSchemaIsValid(t *testing.T) {
	v := validate.New(nil)
	res := v.Validate(&model.Node{ID: "n1", BlockID: "test"})
	if !res.Valid {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
}
