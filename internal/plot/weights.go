package plot

import (
	"fmt"
	"strings"

	"qepweb/internal/qedata"
)

// weightGroups 投影目录按分组方式展平后的带权点集。
// 同组多个通道的权重在对齐点上相加；各组点序一致
// （转换器对所有通道写同一套 k/能带网格）。
type weightGroups struct {
	names    []string
	points   [][]qedata.WeightPoint
	atomKeys [][]string // 每组聚合进来的原子键，layer 模式查归属用
	maxW     float64
}

// loadWeightGroups 扫描投影目录并按 grouping 聚合带权点
func loadWeightGroups(dir, grouping string, subOrbital bool) (*weightGroups, error) {
	channels, err := qedata.ScanProjectionDir(dir)
	if err != nil {
		return nil, err
	}

	g := &weightGroups{}
	indexOf := map[string]int{}

	for _, c := range channels {
		bands, err := qedata.ParseWeightBands(c.Path)
		if err != nil {
			// 目录里混有 E/密度 格式的 pdos 文件时会走到这里，直接跳过
			continue
		}
		flat := flatten(bands)

		key := c.GroupKey(grouping, subOrbital)
		if grouping == "total" {
			key = "total"
		}

		gi, ok := indexOf[key]
		if !ok {
			gi = len(g.names)
			indexOf[key] = gi
			g.names = append(g.names, key)
			g.points = append(g.points, append([]qedata.WeightPoint{}, flat...))
			g.atomKeys = append(g.atomKeys, []string{c.AtomKey()})
			continue
		}

		g.atomKeys[gi] = appendUnique(g.atomKeys[gi], c.AtomKey())
		n := len(g.points[gi])
		if len(flat) < n {
			n = len(flat)
		}
		for i := 0; i < n; i++ {
			g.points[gi][i].W += flat[i].W
		}
	}

	if len(g.names) == 0 {
		return nil, fmt.Errorf("projection dir %q holds no weighted band data", dir)
	}

	for _, pts := range g.points {
		for _, p := range pts {
			if p.W > g.maxW {
				g.maxW = p.W
			}
		}
	}
	return g, nil
}

// index 按名称（大小写不敏感）查组
func (g *weightGroups) index(name string) (int, bool) {
	for i, n := range g.names {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return 0, false
}

// combined 选中通道的合并点集：total 模式取全部组求和，
// 其余模式取高亮匹配的组求和。
func (g *weightGroups) combined(highlight []string, total bool) []qedata.WeightPoint {
	var selected []int
	if total {
		for i := range g.names {
			selected = append(selected, i)
		}
	} else {
		for _, want := range highlight {
			if i, ok := g.index(want); ok {
				selected = append(selected, i)
			}
		}
	}
	if len(selected) == 0 {
		return nil
	}

	out := append([]qedata.WeightPoint{}, g.points[selected[0]]...)
	for _, gi := range selected[1:] {
		pts := g.points[gi]
		n := len(out)
		if len(pts) < n {
			n = len(pts)
		}
		for i := 0; i < n; i++ {
			out[i].W += pts[i].W
		}
	}
	return out
}

// layerByAtomKey 组内任一原子键出现在 layer 映射里即视为该组的归属
func (g *weightGroups) layerByAtomKey(gi int, assignment map[string]string) (string, bool) {
	for _, key := range g.atomKeys[gi] {
		if layer, ok := assignment[key]; ok {
			return layer, true
		}
	}
	return "", false
}

// dominantPoints 第 gi 组在哪些点上权重居首
func dominantPoints(g *weightGroups, gi int, shift float64) (xs, ys []float64) {
	for i, p := range g.points[gi] {
		dominant := true
		for oj := range g.points {
			if oj == gi || i >= len(g.points[oj]) {
				continue
			}
			if g.points[oj][i].W > p.W {
				dominant = false
				break
			}
		}
		if dominant && p.W > 0 {
			xs = append(xs, p.K)
			ys = append(ys, p.E+shift)
		}
	}
	return xs, ys
}

func flatten(bands []qedata.WeightBand) []qedata.WeightPoint {
	var out []qedata.WeightPoint
	for _, band := range bands {
		out = append(out, band...)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
