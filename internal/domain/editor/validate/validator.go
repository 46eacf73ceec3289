// Package validate 按节点声明的输入模式校验配置值。
// 由入边喂值的必填字段豁免静态校验——这些值在运行时才产生，
// 没有该豁免，任何接线正确的节点都会被永久标记为无效。
package validate

import (
	"log/slog"
	"reflect"
	"strings"
	"unicode"

	"flowcanvas/internal/domain/editor/model"
)

// Validator 模式校验器。显式构造并注入使用，不依赖包级单例。
type Validator struct {
	log *slog.Logger
}

// New 创建校验器实例。
func New(log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{log: log}
}

// Result 单个节点的校验结果。Errors 以字段路径（点号连接）为键。
type Result struct {
	Valid  bool
	Errors map[string]string
}

// Validate 校验节点的配置值。输入模式缺失时视为无可校验内容。
func (v *Validator) Validate(n *model.Node) Result {
	errs := make(map[string]string)
	if n == nil {
		return Result{Valid: true, Errors: errs}
	}
	if n.InputSchema == nil {
		v.log.Debug("node has no input schema, skipping validation", "node", n.ID)
		return Result{Valid: true, Errors: errs}
	}
	v.walk(n, n.InputSchema, n.ConfiguredValues, "", errs)
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// walk 递归校验一个对象模式层级。
func (v *Validator) walk(n *model.Node, s *model.Schema, values map[string]any, path string, errs map[string]string) {
	if s.IsFreeForm() {
		// 自由容器按原样透传，不做结构校验
		return
	}

	for name, prop := range s.Properties {
		fieldPath := joinPath(path, name)
		value, present := lookup(values, name)

		if !present {
			if s.IsRequired(name) && !edgeFed(n, fieldPath) {
				errs[fieldPath] = "This field is required"
			}
			continue
		}

		if prop != nil && prop.Type == "object" && !prop.IsFreeForm() {
			sub, ok := value.(map[string]any)
			if !ok {
				errs[fieldPath] = capitalize(typeMessage(prop, value))
				continue
			}
			v.walk(n, prop, sub, fieldPath, errs)
			continue
		}

		if msg := checkValue(prop, value); msg != "" {
			errs[fieldPath] = capitalize(msg)
		}
	}
}

// edgeFed 判断字段是否由入边喂值。
func edgeFed(n *model.Node, fieldPath string) bool {
	for _, c := range n.Connections {
		if c.Target == n.ID && c.TargetHandle == fieldPath {
			return true
		}
	}
	return false
}

// checkValue 校验叶子值与声明类型/枚举的一致性，返回错误消息（空串表示通过）。
func checkValue(s *model.Schema, value any) string {
	if s == nil {
		return ""
	}
	if len(s.Enum) > 0 {
		for _, e := range s.Enum {
			if reflect.DeepEqual(e, value) {
				return ""
			}
		}
		return "value is not one of the allowed options"
	}
	if s.Type == "" {
		return ""
	}
	return typeMessage(s, value)
}

func typeMessage(s *model.Schema, value any) string {
	switch s.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return typeMismatch("string", value)
		}
	case "number", "integer":
		if !isNumber(value) {
			return typeMismatch(s.Type, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return typeMismatch("boolean", value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return typeMismatch("object", value)
		}
	case "array":
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return typeMismatch("array", value)
		}
		if s.Items != nil {
			for i := 0; i < rv.Len(); i++ {
				if msg := checkValue(s.Items, rv.Index(i).Interface()); msg != "" {
					return msg
				}
			}
		}
	}
	return ""
}

func typeMismatch(want string, got any) string {
	if got == nil {
		return "expected " + want + ", got null"
	}
	return "expected " + want + ", got " + reflect.TypeOf(got).String()
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

func lookup(values map[string]any, name string) (any, bool) {
	if values == nil {
		return nil, false
	}
	v, ok := values[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

// capitalize 首字母大写，用于面向用户的错误消息。
func capitalize(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return msg
	}
	r := []rune(msg)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
