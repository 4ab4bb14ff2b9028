package templates

import "html/template"

// Swatch 是一个颜色及其灰度替代值。不允许出现没有灰度值的颜色。
type Swatch struct {
	Color string
	Gray  string
}

func (s Swatch) pick(includeColors bool) template.CSS {
	if includeColors {
		return template.CSS(s.Color)
	}
	return template.CSS(s.Gray)
}

// Palette 列出模板使用的全部颜色。
type Palette struct {
	Accent     Swatch
	AccentSoft Swatch
	Text       Swatch
	Muted      Swatch
	Rule       Swatch
	Sidebar    Swatch
	SidebarInk Swatch
}

// Swatches 按固定顺序返回全部颜色，用于校验灰度值是否齐全。
func (p Palette) Swatches() []Swatch {
	return []Swatch{p.Accent, p.AccentSoft, p.Text, p.Muted, p.Rule, p.Sidebar, p.SidebarInk}
}

// Colors 是模板中实际使用的 CSS 颜色值。
type Colors struct {
	Accent, AccentSoft, Text, Muted, Rule, Sidebar, SidebarInk template.CSS
}

func (p Palette) resolve(includeColors bool) Colors {
	return Colors{
		Accent:     p.Accent.pick(includeColors),
		AccentSoft: p.AccentSoft.pick(includeColors),
		Text:       p.Text.pick(includeColors),
		Muted:      p.Muted.pick(includeColors),
		Rule:       p.Rule.pick(includeColors),
		Sidebar:    p.Sidebar.pick(includeColors),
		SidebarInk: p.SidebarInk.pick(includeColors),
	}
}

var (
	classicPalette = Palette{
		Accent:     Swatch{Color: "#1f4e79", Gray: "#333333"},
		AccentSoft: Swatch{Color: "#dce8f5", Gray: "#eeeeee"},
		Text:       Swatch{Color: "#222222", Gray: "#222222"},
		Muted:      Swatch{Color: "#5b6770", Gray: "#666666"},
		Rule:       Swatch{Color: "#1f4e79", Gray: "#999999"},
		Sidebar:    Swatch{Color: "#ffffff", Gray: "#ffffff"},
		SidebarInk: Swatch{Color: "#222222", Gray: "#222222"},
	}
	modernPalette = Palette{
		Accent:     Swatch{Color: "#0f9d8a", Gray: "#444444"},
		AccentSoft: Swatch{Color: "#d5f2ee", Gray: "#e6e6e6"},
		Text:       Swatch{Color: "#1b1b1b", Gray: "#1b1b1b"},
		Muted:      Swatch{Color: "#6b7280", Gray: "#6b6b6b"},
		Rule:       Swatch{Color: "#0f9d8a", Gray: "#aaaaaa"},
		Sidebar:    Swatch{Color: "#12343b", Gray: "#3a3a3a"},
		SidebarInk: Swatch{Color: "#f4f4f4", Gray: "#f4f4f4"},
	}
	compactPalette = Palette{
		Accent:     Swatch{Color: "#b3261e", Gray: "#2b2b2b"},
		AccentSoft: Swatch{Color: "#f9dedc", Gray: "#ededed"},
		Text:       Swatch{Color: "#202124", Gray: "#202020"},
		Muted:      Swatch{Color: "#5f6368", Gray: "#636363"},
		Rule:       Swatch{Color: "#e0e0e0", Gray: "#e0e0e0"},
		Sidebar:    Swatch{Color: "#fafafa", Gray: "#fafafa"},
		SidebarInk: Swatch{Color: "#202124", Gray: "#202020"},
	}
)
