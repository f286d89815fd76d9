package plot

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"qepweb/internal/model"
)

// withSideDOS 有 DOS 文件时在主图右侧拼一块态密度面板
func withSideDOS(mainPNG []byte, dosFile string, c model.Common, lg *renderLog) ([]byte, error) {
	if dosFile == "" {
		return mainPNG, nil
	}

	side := c
	side.FigWidth = sidePanelWidth(c)
	side.YRange = nil
	panel, err := renderDOS(&model.DOSRequest{Common: side, DOSFile: dosFile}, lg)
	if err != nil {
		return nil, fmt.Errorf("side DOS panel: %w", err)
	}
	if panel == nil {
		return mainPNG, nil
	}

	lg.printf("composited side DOS panel")
	return composeSideBySide(mainPNG, panel)
}

// sidePanelWidth 侧边面板取主图宽度的三分之一
func sidePanelWidth(c model.Common) float64 {
	w := c.FigWidth
	if w <= 0 {
		w = defaultFigWidth
	}
	return w / 3
}

// composeSideBySide 两张 PNG 横向拼接，顶部对齐，背景留白
func composeSideBySide(left, right []byte) ([]byte, error) {
	li, err := png.Decode(bytes.NewReader(left))
	if err != nil {
		return nil, fmt.Errorf("decode left panel: %w", err)
	}
	ri, err := png.Decode(bytes.NewReader(right))
	if err != nil {
		return nil, fmt.Errorf("decode right panel: %w", err)
	}

	lb, rb := li.Bounds(), ri.Bounds()
	height := lb.Dy()
	if rb.Dy() > height {
		height = rb.Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, lb.Dx()+rb.Dx(), height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, lb.Dx(), lb.Dy()), li, lb.Min, draw.Src)
	draw.Draw(canvas, image.Rect(lb.Dx(), 0, lb.Dx()+rb.Dx(), rb.Dy()), ri, rb.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode composite: %w", err)
	}
	return buf.Bytes(), nil
}
