package model

// Schema 编辑器消费的模式子集，用于校验配置值和为类型着色。
// 不覆盖完整的模式语言，字段与块目录的线上格式兼容。
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Title                string             `json:"title,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Default              any                `json:"default,omitempty"`
	AdditionalProperties bool               `json:"additionalProperties,omitempty"`
}

// IsRequired 判断字段是否被声明为必填。
func (s *Schema) IsRequired(name string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// IsFreeForm 判断是否为自由容器（允许任意附加属性、无结构声明）。
// 自由容器跳过结构校验，值按原样透传。
func (s *Schema) IsFreeForm() bool {
	return s != nil && s.AdditionalProperties && len(s.Properties) == 0
}

// PropertyType 返回指定属性的类型名，未声明时返回空串。
func (s *Schema) PropertyType(name string) string {
	if s == nil {
		return ""
	}
	if p, ok := s.Properties[name]; ok && p != nil {
		return p.Type
	}
	return ""
}
