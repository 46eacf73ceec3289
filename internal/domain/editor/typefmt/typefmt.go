// Package typefmt 将数据类型名映射为展示颜色，供渲染层为连线和手柄着色。
package typefmt

// typeColors 类型名 -> 十六进制颜色。
var typeColors = map[string]string{
	"string":  "#22c55e",
	"number":  "#3b82f6",
	"integer": "#60a5fa",
	"boolean": "#eab308",
	"object":  "#a855f7",
	"array":   "#6366f1",
	"null":    "#6b7280",
	"any":     "#6b7280",
}

// defaultColor 未知类型的兜底颜色。
const defaultColor = "#6b7280"

// Color 返回类型名对应的展示颜色，未知类型返回中性灰。
func Color(typeName string) string {
	if c, ok := typeColors[typeName]; ok {
		return c
	}
	return defaultColor
}
