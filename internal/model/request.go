package model

import "strings"

// PlotType 图类型
type PlotType string

const (
	PlotBand     PlotType = "band"         // 能带结构
	PlotFatbands PlotType = "fatbands"     // 投影能带（fatbands）
	PlotDOS      PlotType = "dos"          // 总态密度
	PlotPDOS     PlotType = "pdos"         // 投影态密度
	PlotOverlay  PlotType = "overlay_band" // 能带对比叠加
)

// AllPlotTypes 全部图类型（schema 与前端下拉框共用）
func AllPlotTypes() []PlotType {
	return []PlotType{PlotBand, PlotFatbands, PlotDOS, PlotPDOS, PlotOverlay}
}

// Range 数值区间，Min < Max 由校验层保证
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Common 所有图类型共有的绘图参数
type Common struct {
	FermiLevel float64 `json:"fermiLevel"`
	ShiftFermi bool    `json:"shiftFermi"`
	YRange     *Range  `json:"yRange,omitempty"`
	Cmap       string  `json:"cmap"`
	DPI        int     `json:"dpi"`
	FigWidth   float64 `json:"figWidth"`
	FigHeight  float64 `json:"figHeight"`
}

// Request 一次绘图请求。每种图类型一个变体，
// 不适用的字段不出现在对应变体上，避免“有键但为空”的歧义状态。
type Request interface {
	Type() PlotType
	Options() Common
}

// FatbandMode fatbands 显示模式
type FatbandMode string

const (
	FBMost           FatbandMode = "most"
	FBAtomic         FatbandMode = "atomic"
	FBOrbital        FatbandMode = "orbital"
	FBElementOrbital FatbandMode = "element_orbital"
	FBNormal         FatbandMode = "normal"
	FBOAtomic        FatbandMode = "o_atomic"
	FBOOrbital       FatbandMode = "o_orbital"
	FBOElemOrbital   FatbandMode = "o_element_orbital"
	FBHeatTotal      FatbandMode = "heat_total"
	FBHeatAtomic     FatbandMode = "heat_atomic"
	FBHeatOrbital    FatbandMode = "heat_orbital"
	FBHeatElemOrb    FatbandMode = "heat_element_orbital"
	FBLayer          FatbandMode = "layer"
)

// AllFatbandModes 全部 fatband 显示模式
func AllFatbandModes() []FatbandMode {
	return []FatbandMode{
		FBMost, FBAtomic, FBOrbital, FBElementOrbital,
		FBNormal, FBOAtomic, FBOOrbital, FBOElemOrbital,
		FBHeatTotal, FBHeatAtomic, FBHeatOrbital, FBHeatElemOrb,
		FBLayer,
	}
}

// Valid 是否为已知模式
func (m FatbandMode) Valid() bool {
	for _, v := range AllFatbandModes() {
		if m == v {
			return true
		}
	}
	return false
}

// IsHeat 热图模式
func (m FatbandMode) IsHeat() bool {
	return strings.HasPrefix(string(m), "heat_")
}

// IsLine 线条着色模式（normal / o_*）
func (m FatbandMode) IsLine() bool {
	return m == FBNormal || m == FBOAtomic || m == FBOOrbital || m == FBOElemOrbital
}

// IsLayer 分层模式
func (m FatbandMode) IsLayer() bool {
	return m == FBLayer
}

// IsBubble 气泡模式（既非线条、热图，也非分层）
func (m FatbandMode) IsBubble() bool {
	return !m.IsLine() && !m.IsHeat() && !m.IsLayer()
}

// NeedsHighlight 该模式是否需要用户指定高亮通道
func (m FatbandMode) NeedsHighlight() bool {
	return (m.IsLine() && m != FBNormal) || m.IsHeat()
}

// BandColorMode 普通能带图的着色模式
type BandColorMode string

const (
	BCNormal         BandColorMode = "normal"
	BCAtomic         BandColorMode = "atomic"
	BCOrbital        BandColorMode = "orbital"
	BCElementOrbital BandColorMode = "element_orbital"
	BCMost           BandColorMode = "most"
)

// PDOSGrouping PDOS 曲线分组方式
type PDOSGrouping string

const (
	GroupAtomic         PDOSGrouping = "atomic"
	GroupOrbital        PDOSGrouping = "orbital"
	GroupElementOrbital PDOSGrouping = "element_orbital"
)

// BandRequest 能带结构图
type BandRequest struct {
	Common
	BandFile   string `json:"bandFile"`
	KpathFile  string `json:"kpathFile"`
	Spin       bool   `json:"spin"`
	SubOrbital bool   `json:"subOrbital"`

	// 着色模式非 normal 时使用投影目录（可选）
	ColorMode     BandColorMode `json:"colorMode"`
	ProjectionDir string        `json:"projectionDir,omitempty"`
	DOSFile       string        `json:"dosFile,omitempty"`
}

func (r *BandRequest) Type() PlotType { return PlotBand }
func (r *BandRequest) Options() Common { return r.Common }

// FatbandsRequest 投影能带图
type FatbandsRequest struct {
	Common
	BandFile      string `json:"bandFile"`
	KpathFile     string `json:"kpathFile"`
	ProjectionDir string `json:"projectionDir"`
	Spin          bool   `json:"spin"`
	SubOrbital    bool   `json:"subOrbital"`

	Mode      FatbandMode `json:"mode"`
	Highlight []string    `json:"highlight,omitempty"`
	Dual      bool        `json:"dual"`

	HeatRange    *Range `json:"heatRange,omitempty"`
	OverlayLines bool   `json:"overlayLines"`

	LayerAssignment map[string]string `json:"layerAssignment,omitempty"`

	SizeMin         float64 `json:"sizeMin"`
	SizeMax         float64 `json:"sizeMax"`
	WeightThreshold float64 `json:"weightThreshold"`

	ShowSideDOS bool   `json:"showSideDos"`
	DOSFile     string `json:"dosFile,omitempty"`
}

func (r *FatbandsRequest) Type() PlotType { return PlotFatbands }
func (r *FatbandsRequest) Options() Common { return r.Common }

// DOSRequest 总态密度图
type DOSRequest struct {
	Common
	DOSFile string `json:"dosFile,omitempty"`
}

func (r *DOSRequest) Type() PlotType { return PlotDOS }
func (r *DOSRequest) Options() Common { return r.Common }

// PDOSRequest 投影态密度图
type PDOSRequest struct {
	Common
	ProjectionDir string       `json:"projectionDir"`
	Grouping      PDOSGrouping `json:"grouping"`
}

func (r *PDOSRequest) Type() PlotType { return PlotPDOS }
func (r *PDOSRequest) Options() Common { return r.Common }

// OverlayRequest 两组能带叠加对比图
type OverlayRequest struct {
	Common
	BandFile   string `json:"bandFile"`
	KpathFile  string `json:"kpathFile"`
	BandFile2  string `json:"bandFile2"`
	KpathFile2 string `json:"kpathFile2"`

	Label1 string `json:"label1"`
	Label2 string `json:"label2"`
	Color1 string `json:"color1"`
	Color2 string `json:"color2"`
}

func (r *OverlayRequest) Type() PlotType { return PlotOverlay }
func (r *OverlayRequest) Options() Common { return r.Common }
