package typefmt_test

import (
	"testing"

	"flowcanvas/internal/domain/editor/typefmt"
)

// TestKnownTypeColors 已知类型映射到固定颜色。
func TestKnownTypeColors(t *testing.T) {
	cases := map[string]string{
		"string":  "#22c55e",
		"number":  "#3b82f6",
		"boolean": "#eab308",
		"object":  "#a855f7",
	}
	for name, want := range cases {
		if got := typefmt.Color(name); got != want {
			t.Fatalf("Color(%q) = %s, want %s", name, got, want)
		}
	}
}

// TestUnknownTypeFallsBack 未知类型回落到中性灰。
func TestUnknownTypeFallsBack(t *testing.T) {
	if got := typefmt.Color("quaternion"); got != "#6b7280" {
		t.Fatalf("unexpected fallback color %s", got)
	}
	if got := typefmt.Color(""); got != "#6b7280" {
		t.Fatalf("unexpected fallback color for empty name %s", got)
	}
}
