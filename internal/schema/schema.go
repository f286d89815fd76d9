// Package schema 静态描述每种图类型需要哪些输入。
// 表驱动 + 纯函数查询，不依赖任何运行时状态。
package schema

import (
	"errors"
	"fmt"

	"qepweb/internal/model"
)

// ErrUnknownPlotType 未知图类型属于程序缺陷，不做静默兜底
var ErrUnknownPlotType = errors.New("unknown plot type")

// Slot 逻辑输入槽位
type Slot string

const (
	SlotBandFile      Slot = "band_file"
	SlotKpathFile     Slot = "kpath_file"
	SlotBandFile2     Slot = "band_file_2"
	SlotKpathFile2    Slot = "kpath_file_2"
	SlotProjectionDir Slot = "projection_dir"
	SlotDOSFile       Slot = "dos_file"
)

// Requirement 槽位在某图类型下的适用级别
type Requirement int

const (
	NotApplicable Requirement = iota
	Optional
	Required
)

func (r Requirement) String() string {
	switch r {
	case Required:
		return "required"
	case Optional:
		return "optional"
	default:
		return "not_applicable"
	}
}

// YAxisKind Y 轴语义：能带图为能量轴，DOS 类为密度轴
type YAxisKind string

const (
	YAxisEnergy  YAxisKind = "energy"
	YAxisDensity YAxisKind = "density"
)

// SubSlot 由二级选择（如 fatband 显示模式）激活的附加字段
type SubSlot string

const (
	SubHighlight    SubSlot = "highlight_channel"
	SubHeatRange    SubSlot = "heat_range"
	SubOverlayLines SubSlot = "overlay_lines_on_heatmap"
	SubLayerMap     SubSlot = "layer_assignment"
	SubBubbleSize   SubSlot = "bubble_size"
	SubSideDOS      SubSlot = "show_side_dos"
	SubDualChannel  SubSlot = "dual_channel"
)

// RequirementSet 某图类型的完整输入需求
type RequirementSet struct {
	PlotType model.PlotType       `json:"plotType"`
	Slots    map[Slot]Requirement `json:"slots"`
	YAxis    YAxisKind            `json:"yAxis"`

	// 该图类型携带的二级选择器（为空表示没有模式细分）
	ModeSelector string   `json:"modeSelector,omitempty"`
	ModeValues   []string `json:"modeValues,omitempty"`
}

// 槽位适用表。键集合对五种图类型穷尽。
var table = map[model.PlotType]RequirementSet{
	model.PlotBand: {
		PlotType: model.PlotBand,
		Slots: map[Slot]Requirement{
			SlotBandFile:      Required,
			SlotKpathFile:     Required,
			SlotBandFile2:     NotApplicable,
			SlotKpathFile2:    NotApplicable,
			SlotProjectionDir: Optional, // 着色模式非 normal 时使用
			SlotDOSFile:       Optional,
		},
		YAxis:        YAxisEnergy,
		ModeSelector: "band_color_mode",
		ModeValues:   []string{"normal", "atomic", "orbital", "element_orbital", "most"},
	},
	model.PlotFatbands: {
		PlotType: model.PlotFatbands,
		Slots: map[Slot]Requirement{
			SlotBandFile:      Required,
			SlotKpathFile:     Required,
			SlotBandFile2:     NotApplicable,
			SlotKpathFile2:    NotApplicable,
			SlotProjectionDir: Required,
			SlotDOSFile:       Optional, // 侧边 DOS 面板
		},
		YAxis:        YAxisEnergy,
		ModeSelector: "fatband_display_mode",
		ModeValues:   fatbandModeValues(),
	},
	model.PlotDOS: {
		PlotType: model.PlotDOS,
		Slots: map[Slot]Requirement{
			SlotBandFile:      NotApplicable,
			SlotKpathFile:     NotApplicable,
			SlotBandFile2:     NotApplicable,
			SlotKpathFile2:    NotApplicable,
			SlotProjectionDir: NotApplicable,
			SlotDOSFile:       Optional,
		},
		YAxis: YAxisDensity,
	},
	model.PlotPDOS: {
		PlotType: model.PlotPDOS,
		Slots: map[Slot]Requirement{
			SlotBandFile:      NotApplicable,
			SlotKpathFile:     NotApplicable,
			SlotBandFile2:     NotApplicable,
			SlotKpathFile2:    NotApplicable,
			SlotProjectionDir: Required,
			SlotDOSFile:       NotApplicable,
		},
		YAxis:        YAxisDensity,
		ModeSelector: "pdos_grouping_mode",
		ModeValues:   []string{"atomic", "orbital", "element_orbital"},
	},
	model.PlotOverlay: {
		PlotType: model.PlotOverlay,
		Slots: map[Slot]Requirement{
			SlotBandFile:      Required,
			SlotKpathFile:     Required,
			SlotBandFile2:     Required,
			SlotKpathFile2:    Required,
			SlotProjectionDir: NotApplicable,
			SlotDOSFile:       NotApplicable,
		},
		YAxis: YAxisEnergy,
	},
}

func fatbandModeValues() []string {
	modes := model.AllFatbandModes()
	values := make([]string, 0, len(modes))
	for _, m := range modes {
		values = append(values, string(m))
	}
	return values
}

// Requirements 查询图类型的输入需求。返回副本，调用方可自由修改。
func Requirements(pt model.PlotType) (RequirementSet, error) {
	set, ok := table[pt]
	if !ok {
		return RequirementSet{}, fmt.Errorf("%w: %q", ErrUnknownPlotType, pt)
	}

	out := set
	out.Slots = make(map[Slot]Requirement, len(set.Slots))
	for slot, req := range set.Slots {
		out.Slots[slot] = req
	}
	out.ModeValues = append([]string(nil), set.ModeValues...)
	return out, nil
}

// FatbandSubSlots 某 fatband 显示模式激活的附加字段
func FatbandSubSlots(mode model.FatbandMode) []SubSlot {
	subs := []SubSlot{SubSideDOS}

	if mode.NeedsHighlight() {
		subs = append(subs, SubHighlight)
	}
	if mode.IsLine() {
		subs = append(subs, SubDualChannel)
	}
	if mode.IsHeat() {
		subs = append(subs, SubHeatRange, SubOverlayLines)
	}
	if mode.IsLayer() {
		subs = append(subs, SubLayerMap)
	}
	if mode.IsBubble() {
		subs = append(subs, SubBubbleSize)
	}
	return subs
}
