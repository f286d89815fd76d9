package plot

import (
	"bytes"
	"fmt"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"qepweb/internal/model"
	"qepweb/internal/qedata"
)

const (
	defaultDPI       = 100
	defaultFigWidth  = 12
	defaultFigHeight = 6
	heatBuckets      = 6
	dualBuckets      = 5
)

var (
	colorBandLine = rgb(31, 119, 180)
	colorBaseGray = drawing.Color{R: 170, G: 170, B: 170, A: 255}
	colorFermi    = drawing.Color{R: 120, G: 120, B: 120, A: 255}
)

// Render 把已校验的请求渲染为一张 PNG。
// 返回值：图像字节（nil 表示后端正常结束但没有产出图形）、文本日志、错误。
func Render(req model.Request) ([]byte, string, error) {
	lg := &renderLog{}
	lg.printf("plot type: %s", req.Type())

	var (
		png []byte
		err error
	)
	switch r := req.(type) {
	case *model.BandRequest:
		png, err = renderBand(r, lg)
	case *model.FatbandsRequest:
		png, err = renderFatbands(r, lg)
	case *model.DOSRequest:
		png, err = renderDOS(r, lg)
	case *model.PDOSRequest:
		png, err = renderPDOS(r, lg)
	case *model.OverlayRequest:
		png, err = renderOverlay(r, lg)
	default:
		err = fmt.Errorf("unsupported request type %T", req)
	}

	if err != nil {
		return nil, lg.String(), err
	}
	return png, lg.String(), nil
}

// renderLog 渲染过程日志，对应原工具里重定向的后端控制台输出
type renderLog struct {
	buf strings.Builder
}

func (l *renderLog) printf(format string, args ...interface{}) {
	fmt.Fprintf(&l.buf, format+"\n", args...)
}

func (l *renderLog) String() string {
	return l.buf.String()
}

// ---- 能带结构 ----

func renderBand(r *model.BandRequest, lg *renderLog) ([]byte, error) {
	bands, err := qedata.ParseBands(r.BandFile)
	if err != nil {
		return nil, err
	}
	kpath, err := qedata.ParseKPath(r.KpathFile)
	if err != nil {
		return nil, err
	}
	lg.printf("parsed %d bands, %d high-symmetry points", len(bands), len(kpath))

	shift := energyShift(r.Common)
	var series []chart.Series

	if r.Spin {
		up, down := qedata.SplitSpin(bands)
		lg.printf("spin polarized: %d up / %d down", len(up), len(down))
		series = append(series, bandSeries(up, shift, "spin up", lineStyle(SeriesColor(r.Cmap, 0), nil))...)
		series = append(series, bandSeries(down, shift, "spin down", lineStyle(SeriesColor(r.Cmap, 1), []float64{4, 4}))...)
	} else {
		series = append(series, bandSeries(bands, shift, "", lineStyle(colorBandLine, nil))...)
	}

	if r.ColorMode != model.BCNormal && r.ProjectionDir != "" {
		colored, err := colorModeSeries(r, shift, lg)
		if err != nil {
			lg.printf("coloring skipped: %v", err)
		} else {
			series = append(series, colored...)
		}
	}

	ch := baseChart(r.Common, kpath, bands, shift)
	ch.Series = append(series, fermiLine(r.Common, bands, shift))
	attachLegend(ch)

	png, err := encode(ch)
	if err != nil {
		return nil, err
	}
	return withSideDOS(png, r.DOSFile, r.Common, lg)
}

// colorModeSeries 普通能带的着色模式：按主导通道给能带点打色点
func colorModeSeries(r *model.BandRequest, shift float64, lg *renderLog) ([]chart.Series, error) {
	grouping := string(r.ColorMode)
	if r.ColorMode == model.BCMost {
		grouping = "atomic"
	}
	groups, err := loadWeightGroups(r.ProjectionDir, grouping, r.SubOrbital)
	if err != nil {
		return nil, err
	}
	lg.printf("band coloring from %d projection groups", len(groups.names))

	var series []chart.Series
	for gi, name := range groups.names {
		xs, ys := dominantPoints(groups, gi, shift)
		if len(xs) < 2 {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   dotStyle(SeriesColor(r.Cmap, gi), 3),
		})
	}
	return series, nil
}

// ---- fatbands ----

func renderFatbands(r *model.FatbandsRequest, lg *renderLog) ([]byte, error) {
	bands, err := qedata.ParseBands(r.BandFile)
	if err != nil {
		return nil, err
	}
	kpath, err := qedata.ParseKPath(r.KpathFile)
	if err != nil {
		return nil, err
	}
	shift := energyShift(r.Common)
	lg.printf("display mode: %s", r.Mode)

	// 底层能带线：热图默认隐藏，除非用户要求叠加
	var series []chart.Series
	if !r.Mode.IsHeat() || r.OverlayLines {
		series = append(series, bandSeries(bands, shift, "", lineStyle(colorBaseGray, nil))...)
	}

	grouping := fatbandGrouping(r.Mode)
	groups, err := loadWeightGroups(r.ProjectionDir, grouping, r.SubOrbital)
	if err != nil {
		return nil, err
	}
	lg.printf("projection groups: %s", strings.Join(groups.names, ", "))

	switch {
	case r.Mode.IsHeat():
		series = append(series, heatSeries(r, groups, shift, lg)...)
	case r.Mode.IsLayer():
		series = append(series, layerSeries(r, groups, shift, lg)...)
	case r.Mode.IsLine():
		series = append(series, lineModeSeries(r, groups, shift, lg)...)
	default:
		series = append(series, bubbleSeries(r, groups, shift, lg)...)
	}

	if countPoints(series) < 2 {
		lg.printf("no weighted points survive the current mode settings; nothing to draw")
		return nil, nil
	}

	ch := baseChart(r.Common, kpath, bands, shift)
	ch.Series = append(series, fermiLine(r.Common, bands, shift))
	attachLegend(ch)

	png, err := encode(ch)
	if err != nil {
		return nil, err
	}
	if r.ShowSideDOS {
		return withSideDOS(png, r.DOSFile, r.Common, lg)
	}
	return png, nil
}

// fatbandGrouping 显示模式隐含的通道分组方式
func fatbandGrouping(mode model.FatbandMode) string {
	s := string(mode)
	s = strings.TrimPrefix(s, "o_")
	s = strings.TrimPrefix(s, "heat_")
	switch s {
	case "orbital", "element_orbital":
		return s
	case "total":
		return "total"
	default:
		return "atomic"
	}
}

// bubbleSeries 气泡模式：点径随投影权重分档放大
func bubbleSeries(r *model.FatbandsRequest, groups *weightGroups, shift float64, lg *renderLog) []chart.Series {
	sizeMin, sizeMax := r.SizeMin, r.SizeMax
	if sizeMax <= sizeMin {
		sizeMin, sizeMax = 10, 100
	}
	threshold := r.WeightThreshold

	var series []chart.Series
	for gi, name := range groups.names {
		buckets := [3][2][]float64{}
		for _, p := range groups.points[gi] {
			if p.W < threshold {
				continue
			}
			b := weightBucket(p.W, groups.maxW, 3)
			buckets[b][0] = append(buckets[b][0], p.K)
			buckets[b][1] = append(buckets[b][1], p.E+shift)
		}
		col := SeriesColor(r.Cmap, gi)
		for b := 0; b < 3; b++ {
			if len(buckets[b][0]) < 2 {
				continue
			}
			// matplotlib 的 s 是面积，点径按平方根换算
			frac := float64(b) / 2
			width := dotWidthFromArea(sizeMin + (sizeMax-sizeMin)*frac)
			label := ""
			if b == 0 {
				label = name
			}
			series = append(series, chart.ContinuousSeries{
				Name:    label,
				XValues: buckets[b][0],
				YValues: buckets[b][1],
				Style:   dotStyle(col, width),
			})
		}
	}
	lg.printf("bubble series: %d (threshold %.3f)", len(series), threshold)
	return series
}

// lineModeSeries 线条模式：高亮通道着色，dual 时按两通道权重比插值
func lineModeSeries(r *model.FatbandsRequest, groups *weightGroups, shift float64, lg *renderLog) []chart.Series {
	if r.Mode == model.FBNormal || len(r.Highlight) == 0 {
		return nil
	}

	if r.Dual && len(r.Highlight) == 2 {
		return dualSeries(r, groups, shift, lg)
	}

	var series []chart.Series
	for hi, want := range r.Highlight {
		gi, ok := groups.index(want)
		if !ok {
			lg.printf("highlight channel %q not present in projection data", want)
			continue
		}
		xs, ys := []float64{}, []float64{}
		for _, p := range groups.points[gi] {
			if p.W < r.WeightThreshold {
				continue
			}
			xs = append(xs, p.K)
			ys = append(ys, p.E+shift)
		}
		if len(xs) < 2 {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    want,
			XValues: xs,
			YValues: ys,
			Style:   dotStyle(SeriesColor(r.Cmap, hi), 3),
		})
	}
	return series
}

// dualSeries 双通道插值：按 wA/(wA+wB) 把点分档，在两色之间过渡
func dualSeries(r *model.FatbandsRequest, groups *weightGroups, shift float64, lg *renderLog) []chart.Series {
	ai, aok := groups.index(r.Highlight[0])
	bi, bok := groups.index(r.Highlight[1])
	if !aok || !bok {
		lg.printf("dual channels %v not both present in projection data", r.Highlight)
		return nil
	}

	a, b := groups.points[ai], groups.points[bi]
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	colA := SeriesColor(r.Cmap, 0)
	colB := SeriesColor(r.Cmap, 1)

	buckets := make([][2][]float64, dualBuckets)
	for i := 0; i < n; i++ {
		total := a[i].W + b[i].W
		if total <= 0 {
			continue
		}
		ratio := a[i].W / total
		bk := int(ratio * float64(dualBuckets))
		if bk >= dualBuckets {
			bk = dualBuckets - 1
		}
		buckets[bk][0] = append(buckets[bk][0], a[i].K)
		buckets[bk][1] = append(buckets[bk][1], a[i].E+shift)
	}

	var series []chart.Series
	for bk := range buckets {
		if len(buckets[bk][0]) < 2 {
			continue
		}
		t := float64(bk) / float64(dualBuckets-1)
		label := ""
		if bk == 0 {
			label = r.Highlight[1]
		}
		if bk == dualBuckets-1 {
			label = r.Highlight[0]
		}
		series = append(series, chart.ContinuousSeries{
			Name:    label,
			XValues: buckets[bk][0],
			YValues: buckets[bk][1],
			Style:   dotStyle(lerpColor(colB, colA, t), 3),
		})
	}
	return series
}

// heatSeries 热图模式：高亮通道的权重映射到 colormap 强度
func heatSeries(r *model.FatbandsRequest, groups *weightGroups, shift float64, lg *renderLog) []chart.Series {
	points := groups.combined(r.Highlight, r.Mode == model.FBHeatTotal)
	if len(points) == 0 {
		lg.printf("heat channel %v matched no projection data", r.Highlight)
		return nil
	}

	lo, hi := 0.0, groups.maxW
	if r.HeatRange != nil {
		lo, hi = r.HeatRange.Min, r.HeatRange.Max
		lg.printf("heat intensity range: [%.3f, %.3f]", lo, hi)
	} else {
		lg.printf("heat intensity range: auto")
	}
	if hi <= lo {
		hi = lo + 1
	}

	buckets := make([][2][]float64, heatBuckets)
	for _, p := range points {
		t := (p.W - lo) / (hi - lo)
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		bk := int(t * float64(heatBuckets-1))
		buckets[bk][0] = append(buckets[bk][0], p.K)
		buckets[bk][1] = append(buckets[bk][1], p.E+shift)
	}

	var series []chart.Series
	for bk := range buckets {
		if len(buckets[bk][0]) < 2 {
			continue
		}
		t := float64(bk) / float64(heatBuckets-1)
		series = append(series, chart.ContinuousSeries{
			XValues: buckets[bk][0],
			YValues: buckets[bk][1],
			Style:   dotStyle(HeatColor(r.Cmap, t), 4),
		})
	}
	return series
}

// layerSeries 分层模式：原子按用户映射归入上下层并分色
func layerSeries(r *model.FatbandsRequest, groups *weightGroups, shift float64, lg *renderLog) []chart.Series {
	if len(r.LayerAssignment) == 0 {
		lg.printf("layer mode without assignments; nothing to color")
		return nil
	}

	layers := map[string][2][]float64{}
	var order []string
	for gi, name := range groups.names {
		layer, ok := r.LayerAssignment[name]
		if !ok {
			// atomic 分组名是元素；layer 映射多以 Mo1/S3 形式给出
			layer, ok = groups.layerByAtomKey(gi, r.LayerAssignment)
		}
		if !ok {
			lg.printf("atom group %q has no layer assignment; skipped", name)
			continue
		}
		pair, exists := layers[layer]
		if !exists {
			order = append(order, layer)
		}
		for _, p := range groups.points[gi] {
			if p.W < r.WeightThreshold {
				continue
			}
			pair[0] = append(pair[0], p.K)
			pair[1] = append(pair[1], p.E+shift)
		}
		layers[layer] = pair
	}

	var series []chart.Series
	for li, layer := range order {
		pair := layers[layer]
		if len(pair[0]) < 2 {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    layer,
			XValues: pair[0],
			YValues: pair[1],
			Style:   dotStyle(SeriesColor(r.Cmap, li), 3),
		})
	}
	return series
}

// ---- DOS / PDOS ----

func renderDOS(r *model.DOSRequest, lg *renderLog) ([]byte, error) {
	if r.DOSFile == "" {
		lg.printf("no DOS file provided; nothing to plot")
		return nil, nil
	}
	points, err := qedata.ParseDOS(r.DOSFile)
	if err != nil {
		return nil, err
	}
	lg.printf("parsed %d DOS samples", len(points))

	shift := energyShift(r.Common)
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.E + shift
		ys[i] = p.Value
	}

	ch := dosChart(r.Common, "Energy (eV)", "DOS (states/eV)")
	ch.Series = []chart.Series{
		chart.ContinuousSeries{Name: "total", XValues: xs, YValues: ys, Style: lineStyle(SeriesColor(r.Cmap, 0), nil)},
		verticalLine(fermiRef(r.Common), ys),
	}
	return encode(ch)
}

func renderPDOS(r *model.PDOSRequest, lg *renderLog) ([]byte, error) {
	channels, err := qedata.ScanProjectionDir(r.ProjectionDir)
	if err != nil {
		return nil, err
	}

	shift := energyShift(r.Common)

	// 同组通道曲线逐点求和；以首条曲线的能量网格为准
	type curve struct {
		xs, ys []float64
	}
	grouped := map[string]*curve{}
	var order []string
	for _, c := range channels {
		points, err := qedata.ParseProjection(c.Path)
		if err != nil {
			lg.printf("channel %s unreadable: %v", c.AtomKey(), err)
			continue
		}
		key := c.GroupKey(string(r.Grouping), false)
		cur, ok := grouped[key]
		if !ok {
			cur = &curve{}
			grouped[key] = cur
			order = append(order, key)
			for _, p := range points {
				cur.xs = append(cur.xs, p.E+shift)
				cur.ys = append(cur.ys, p.Value)
			}
			continue
		}
		n := len(cur.ys)
		if len(points) < n {
			n = len(points)
		}
		for i := 0; i < n; i++ {
			cur.ys[i] += points[i].Value
		}
	}
	if len(order) == 0 {
		lg.printf("no readable projection channels; nothing to plot")
		return nil, nil
	}
	lg.printf("pdos groups (%s): %s", r.Grouping, strings.Join(order, ", "))

	ch := dosChart(r.Common, "Energy (eV)", "PDOS (states/eV)")
	var maxYs []float64
	for gi, key := range order {
		cur := grouped[key]
		if len(cur.xs) < 2 {
			continue
		}
		ch.Series = append(ch.Series, chart.ContinuousSeries{
			Name:    key,
			XValues: cur.xs,
			YValues: cur.ys,
			Style:   lineStyle(SeriesColor(r.Cmap, gi), nil),
		})
		maxYs = append(maxYs, cur.ys...)
	}
	ch.Series = append(ch.Series, verticalLine(fermiRef(r.Common), maxYs))
	attachLegend(ch)
	return encode(ch)
}

// ---- 叠加对比 ----

func renderOverlay(r *model.OverlayRequest, lg *renderLog) ([]byte, error) {
	bands1, err := qedata.ParseBands(r.BandFile)
	if err != nil {
		return nil, err
	}
	bands2, err := qedata.ParseBands(r.BandFile2)
	if err != nil {
		return nil, err
	}
	kpath, err := qedata.ParseKPath(r.KpathFile)
	if err != nil {
		return nil, err
	}
	if _, err := qedata.ParseKPath(r.KpathFile2); err != nil {
		lg.printf("second k-path unreadable, axis labels use the first: %v", err)
	}

	shift := energyShift(r.Common)
	label1, label2 := r.Label1, r.Label2
	if label1 == "" {
		label1 = "set 1"
	}
	if label2 == "" {
		label2 = "set 2"
	}
	lg.printf("overlaying %d + %d bands", len(bands1), len(bands2))

	ch := baseChart(r.Common, kpath, append(append([]qedata.Band{}, bands1...), bands2...), shift)
	ch.Series = append(ch.Series,
		bandSeries(bands1, shift, label1, lineStyle(NamedColor(r.Color1, r.Cmap, 0), nil))...)
	ch.Series = append(ch.Series,
		bandSeries(bands2, shift, label2, lineStyle(NamedColor(r.Color2, r.Cmap, 1), []float64{4, 4}))...)
	ch.Series = append(ch.Series, fermiLine(r.Common, bands1, shift))
	attachLegend(ch)
	return encode(ch)
}

// ---- 共用构件 ----

func energyShift(c model.Common) float64 {
	if c.ShiftFermi {
		return -c.FermiLevel
	}
	return 0
}

// fermiRef Fermi 参考线位置：平移后在 0，否则在原值
func fermiRef(c model.Common) float64 {
	if c.ShiftFermi {
		return 0
	}
	return c.FermiLevel
}

func bandSeries(bands []qedata.Band, shift float64, name string, style chart.Style) []chart.Series {
	var out []chart.Series
	for i, band := range bands {
		if len(band) < 2 {
			continue
		}
		xs := make([]float64, len(band))
		ys := make([]float64, len(band))
		for j, p := range band {
			xs[j] = p.K
			ys[j] = p.E + shift
		}
		label := ""
		if i == 0 {
			label = name
		}
		out = append(out, chart.ContinuousSeries{Name: label, XValues: xs, YValues: ys, Style: style})
	}
	return out
}

func fermiLine(c model.Common, bands []qedata.Band, shift float64) chart.Series {
	maxK := 0.0
	for _, band := range bands {
		for _, p := range band {
			if p.K > maxK {
				maxK = p.K
			}
		}
	}
	ref := fermiRef(c)
	return chart.ContinuousSeries{
		XValues: []float64{0, maxK},
		YValues: []float64{ref, ref},
		Style: chart.Style{
			StrokeColor:     colorFermi,
			StrokeWidth:     1,
			StrokeDashArray: []float64{6, 4},
		},
	}
}

// verticalLine DOS 图里的 Fermi 竖线，高度取数据最大值
func verticalLine(x float64, ys []float64) chart.Series {
	maxY := 0.0
	for _, y := range ys {
		if y > maxY {
			maxY = y
		}
	}
	if maxY == 0 {
		maxY = 1
	}
	return chart.ContinuousSeries{
		XValues: []float64{x, x},
		YValues: []float64{0, maxY},
		Style: chart.Style{
			StrokeColor:     colorFermi,
			StrokeWidth:     1,
			StrokeDashArray: []float64{6, 4},
		},
	}
}

func baseChart(c model.Common, kpath []qedata.KPoint, bands []qedata.Band, shift float64) *chart.Chart {
	ticks := make([]chart.Tick, 0, len(kpath))
	grid := make([]chart.GridLine, 0, len(kpath))
	for _, p := range kpath {
		ticks = append(ticks, chart.Tick{Value: p.X, Label: p.Label})
		grid = append(grid, chart.GridLine{Value: p.X})
	}

	ch := &chart.Chart{
		Width:  chartWidth(c),
		Height: chartHeight(c),
		XAxis: chart.XAxis{
			Ticks:     ticks,
			GridLines: grid,
			GridMajorStyle: chart.Style{
				StrokeColor: drawing.Color{R: 200, G: 200, B: 200, A: 255},
				StrokeWidth: 1,
			},
		},
		YAxis: chart.YAxis{Name: "Energy (eV)"},
	}
	if c.YRange != nil {
		ch.YAxis.Range = &chart.ContinuousRange{Min: c.YRange.Min, Max: c.YRange.Max}
	} else {
		min, max := qedata.EnergyBounds(bands, shift)
		ch.YAxis.Range = &chart.ContinuousRange{Min: min, Max: max}
	}
	return ch
}

func dosChart(c model.Common, xName, yName string) *chart.Chart {
	ch := &chart.Chart{
		Width:  chartWidth(c),
		Height: chartHeight(c),
		XAxis:  chart.XAxis{Name: xName},
		YAxis:  chart.YAxis{Name: yName},
	}
	if c.YRange != nil {
		ch.YAxis.Range = &chart.ContinuousRange{Min: c.YRange.Min, Max: c.YRange.Max}
	}
	return ch
}

func chartWidth(c model.Common) int {
	w := c.FigWidth
	if w <= 0 {
		w = defaultFigWidth
	}
	return int(w * pxPerInch(c))
}

func chartHeight(c model.Common) int {
	h := c.FigHeight
	if h <= 0 {
		h = defaultFigHeight
	}
	return int(h * pxPerInch(c))
}

func pxPerInch(c model.Common) float64 {
	dpi := c.DPI
	if dpi <= 0 {
		dpi = defaultDPI
	}
	return float64(dpi)
}

func lineStyle(col drawing.Color, dash []float64) chart.Style {
	return chart.Style{
		StrokeColor:     col,
		StrokeWidth:     1.5,
		StrokeDashArray: dash,
	}
}

func dotStyle(col drawing.Color, width float64) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    width,
		DotColor:    col,
	}
}

// dotWidthFromArea matplotlib 散点的 s 参数是面积，换算为像素点径
func dotWidthFromArea(area float64) float64 {
	if area < 1 {
		area = 1
	}
	w := 0.0
	for w*w < area {
		w++
	}
	if w < 2 {
		w = 2
	}
	if w > 14 {
		w = 14
	}
	return w
}

func weightBucket(w, max float64, buckets int) int {
	if max <= 0 {
		return 0
	}
	b := int(w / max * float64(buckets))
	if b >= buckets {
		b = buckets - 1
	}
	return b
}

func attachLegend(ch *chart.Chart) {
	for _, s := range ch.Series {
		if cs, ok := s.(chart.ContinuousSeries); ok && cs.Name != "" {
			ch.Elements = []chart.Renderable{chart.Legend(ch)}
			return
		}
	}
}

func countPoints(series []chart.Series) int {
	n := 0
	for _, s := range series {
		if cs, ok := s.(chart.ContinuousSeries); ok {
			n += len(cs.XValues)
		}
	}
	return n
}

func encode(ch *chart.Chart) ([]byte, error) {
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
