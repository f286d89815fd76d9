// Package builder 把用户填写的字段值和已落盘的文件路径，
// 按 schema 合并成单个类型化的绘图请求，并负责执行前校验。
package builder

import (
	"fmt"
	"strings"

	"qepweb/internal/model"
	"qepweb/internal/schema"
)

// Fields 用户在表单里填写的值。与图类型无关的平铺集合，
// Build 按 schema 拣选适用字段，不适用的字段不会进入请求对象。
type Fields struct {
	FermiLevel float64  `json:"fermiLevel"`
	ShiftFermi bool     `json:"shiftFermi"`
	YMin       *float64 `json:"yMin"`
	YMax       *float64 `json:"yMax"`
	Cmap       string   `json:"cmap"`
	DPI        int      `json:"dpi"`
	FigWidth   float64  `json:"figWidth"`
	FigHeight  float64  `json:"figHeight"`

	Spin       bool `json:"spin"`
	SubOrbital bool `json:"subOrbital"`

	FatbandMode string `json:"fatbandMode"`
	Highlight   string `json:"highlight"`
	Dual        bool   `json:"dual"`

	HeatMin      float64 `json:"heatMin"`
	HeatMax      float64 `json:"heatMax"`
	OverlayLines bool    `json:"overlayLines"`

	LayerAssignment map[string]string `json:"layerAssignment"`

	SizeMin         float64 `json:"sizeMin"`
	SizeMax         float64 `json:"sizeMax"`
	WeightThreshold float64 `json:"weightThreshold"`

	ShowSideDOS bool `json:"showSideDos"`

	PDOSGrouping  string `json:"pdosGrouping"`
	BandColorMode string `json:"bandColorMode"`

	Label1 string `json:"label1"`
	Label2 string `json:"label2"`
	Color1 string `json:"color1"`
	Color2 string `json:"color2"`
}

// Staged 已落盘文件按槽位的路径。空串表示该槽位未提供。
type Staged struct {
	BandFile      string `json:"bandFile"`
	KpathFile     string `json:"kpathFile"`
	BandFile2     string `json:"bandFile2"`
	KpathFile2    string `json:"kpathFile2"`
	ProjectionDir string `json:"projectionDir"`
	DOSFile       string `json:"dosFile"`
}

// Build 组装绘图请求。每次调用都从 schema 推导完整槽位集合，
// 不在旧对象上增量修补，防止切换图类型后残留配置。
func Build(pt model.PlotType, f Fields, s Staged) (model.Request, error) {
	if _, err := schema.Requirements(pt); err != nil {
		return nil, err
	}

	common := buildCommon(pt, f)

	switch pt {
	case model.PlotBand:
		colorMode := model.BandColorMode(f.BandColorMode)
		if colorMode == "" {
			colorMode = model.BCNormal
		}
		req := &model.BandRequest{
			Common:     common,
			BandFile:   s.BandFile,
			KpathFile:  s.KpathFile,
			Spin:       f.Spin,
			SubOrbital: f.SubOrbital,
			ColorMode:  colorMode,
			DOSFile:    s.DOSFile,
		}
		if colorMode != model.BCNormal {
			req.ProjectionDir = s.ProjectionDir
		}
		return req, nil

	case model.PlotFatbands:
		mode := model.FatbandMode(f.FatbandMode)
		req := &model.FatbandsRequest{
			Common:          common,
			BandFile:        s.BandFile,
			KpathFile:       s.KpathFile,
			ProjectionDir:   s.ProjectionDir,
			Spin:            f.Spin,
			SubOrbital:      f.SubOrbital,
			Mode:            mode,
			Dual:            f.Dual && mode.IsLine(),
			OverlayLines:    f.OverlayLines,
			SizeMin:         f.SizeMin,
			SizeMax:         f.SizeMax,
			WeightThreshold: f.WeightThreshold,
			ShowSideDOS:     f.ShowSideDOS,
			DOSFile:         s.DOSFile,
		}
		if mode.NeedsHighlight() {
			req.Highlight = splitHighlight(f.Highlight, req.Dual)
		}
		if mode.IsHeat() {
			req.HeatRange = heatRange(f.HeatMin, f.HeatMax)
		}
		if mode.IsLayer() && len(f.LayerAssignment) > 0 {
			req.LayerAssignment = make(map[string]string, len(f.LayerAssignment))
			for atom, layer := range f.LayerAssignment {
				req.LayerAssignment[strings.TrimSpace(atom)] = strings.TrimSpace(layer)
			}
		}
		return req, nil

	case model.PlotDOS:
		return &model.DOSRequest{
			Common:  common,
			DOSFile: s.DOSFile,
		}, nil

	case model.PlotPDOS:
		grouping := model.PDOSGrouping(f.PDOSGrouping)
		if grouping == "" {
			grouping = model.GroupAtomic
		}
		return &model.PDOSRequest{
			Common:        common,
			ProjectionDir: s.ProjectionDir,
			Grouping:      grouping,
		}, nil

	case model.PlotOverlay:
		return &model.OverlayRequest{
			Common:     common,
			BandFile:   s.BandFile,
			KpathFile:  s.KpathFile,
			BandFile2:  s.BandFile2,
			KpathFile2: s.KpathFile2,
			Label1:     f.Label1,
			Label2:     f.Label2,
			Color1:     f.Color1,
			Color2:     f.Color2,
		}, nil
	}

	// schema.Requirements 已对未知类型报错，到不了这里
	return nil, fmt.Errorf("%w: %q", schema.ErrUnknownPlotType, pt)
}

func buildCommon(pt model.PlotType, f Fields) model.Common {
	c := model.Common{
		FermiLevel: f.FermiLevel,
		ShiftFermi: f.ShiftFermi,
		Cmap:       f.Cmap,
		DPI:        f.DPI,
		FigWidth:   f.FigWidth,
		FigHeight:  f.FigHeight,
	}
	if f.YMin != nil && f.YMax != nil {
		c.YRange = &model.Range{Min: *f.YMin, Max: *f.YMax}
	}
	return c
}

// splitHighlight 解析高亮通道。dual 模式按逗号拆成两个裁剪后的 token；
// 非 dual 或无逗号时保持单通道。空白输入得到空列表。
func splitHighlight(raw string, dual bool) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if dual && strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return []string{raw}
}

// heatRange 热图强度区间。上界非正视为“自动缩放”，返回 nil 而非非法区间。
func heatRange(min, max float64) *model.Range {
	if max <= 0 {
		return nil
	}
	return &model.Range{Min: min, Max: max}
}
