// Package plot 把已校验的绘图请求渲染为 PNG 图像。
// 渲染基于 go-chart；一次请求产出至多一张图。
package plot

import (
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

func rgb(r, g, b uint8) drawing.Color {
	return drawing.Color{R: r, G: g, B: b, A: 255}
}

// 各 colormap 的离散采样。分类图取循环色，热图取渐变 ramp。
var palettes = map[string][]drawing.Color{
	"tab10": {
		rgb(31, 119, 180), rgb(255, 127, 14), rgb(44, 160, 44),
		rgb(214, 39, 40), rgb(148, 103, 189), rgb(140, 86, 75),
		rgb(227, 119, 194), rgb(127, 127, 127), rgb(188, 189, 34),
		rgb(23, 190, 207),
	},
	"viridis": {
		rgb(68, 1, 84), rgb(70, 50, 127), rgb(54, 92, 141),
		rgb(39, 127, 142), rgb(31, 161, 135), rgb(74, 194, 109),
		rgb(159, 218, 58), rgb(253, 231, 37),
	},
	"magma": {
		rgb(0, 0, 4), rgb(40, 11, 84), rgb(101, 21, 110),
		rgb(159, 42, 99), rgb(212, 72, 66), rgb(245, 125, 21),
		rgb(250, 193, 39), rgb(252, 253, 191),
	},
	"plasma": {
		rgb(13, 8, 135), rgb(84, 2, 163), rgb(139, 10, 165),
		rgb(185, 50, 137), rgb(219, 92, 104), rgb(244, 136, 73),
		rgb(254, 188, 43), rgb(240, 249, 33),
	},
	"jet": {
		rgb(0, 0, 131), rgb(0, 60, 255), rgb(0, 208, 255),
		rgb(96, 255, 161), rgb(220, 255, 37), rgb(255, 160, 0),
		rgb(255, 48, 0), rgb(128, 0, 0),
	},
}

// Palette 按名称取调色板，未知名称回落到 tab10
func Palette(name string) []drawing.Color {
	if p, ok := palettes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return palettes["tab10"]
}

// SeriesColor 分类序列取色，循环使用
func SeriesColor(name string, i int) drawing.Color {
	p := Palette(name)
	return p[((i % len(p)) + len(p)) % len(p)]
}

// HeatColor 按归一化强度 t∈[0,1] 在 ramp 上线性插值
func HeatColor(name string, t float64) drawing.Color {
	p := Palette(name)
	if t <= 0 {
		return p[0]
	}
	if t >= 1 {
		return p[len(p)-1]
	}
	pos := t * float64(len(p)-1)
	i := int(pos)
	frac := pos - float64(i)
	return lerpColor(p[i], p[i+1], frac)
}

func lerpColor(a, b drawing.Color, t float64) drawing.Color {
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t)
	}
	return drawing.Color{
		R: lerp(a.R, b.R),
		G: lerp(a.G, b.G),
		B: lerp(a.B, b.B),
		A: 255,
	}
}

// 叠加对比图允许用户用颜色名指定每组曲线
var namedColors = map[string]drawing.Color{
	"red":     rgb(214, 39, 40),
	"blue":    rgb(31, 119, 180),
	"green":   rgb(44, 160, 44),
	"orange":  rgb(255, 127, 14),
	"purple":  rgb(148, 103, 189),
	"black":   rgb(0, 0, 0),
	"gray":    rgb(127, 127, 127),
	"magenta": rgb(227, 119, 194),
	"cyan":    rgb(23, 190, 207),
}

// NamedColor 颜色名或 #rrggbb；解析失败时用调色板第 fallback 个颜色
func NamedColor(name, cmap string, fallback int) drawing.Color {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := namedColors[name]; ok {
		return c
	}
	if strings.HasPrefix(name, "#") && len(name) == 7 {
		if c, ok := parseHexColor(name[1:]); ok {
			return c
		}
	}
	return SeriesColor(cmap, fallback)
}

func parseHexColor(hex string) (drawing.Color, bool) {
	var out [3]uint8
	for i := 0; i < 3; i++ {
		hi, ok1 := hexDigit(hex[i*2])
		lo, ok2 := hexDigit(hex[i*2+1])
		if !ok1 || !ok2 {
			return drawing.Color{}, false
		}
		out[i] = hi<<4 | lo
	}
	return rgb(out[0], out[1], out[2]), true
}

func hexDigit(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
