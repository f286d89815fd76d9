package tools

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Atom 结构中的一个原子
type Atom struct {
	Element string
	X, Y, Z float64
}

// 层间隙阈值：z 方向相邻原子间距超过该值即视为分层（单位随输入文件）。
// MoS2 单层内 S-Mo 的 z 间距约 1.56 Å，层间约 3 Å，取 2.0 居中。
const layerGapThreshold = 2.0

// QE 输出里的坐标行：Mo  tau(   1) = (   0.0000000   0.0000000   1.5000000  )
var reTauLine = regexp.MustCompile(`(\w+)\s+tau\(\s*\d+\s*\)\s*=\s*\(\s*(-?\d+\.\d+)\s+(-?\d+\.\d+)\s+(-?\d+\.\d+)`)

// AnalyzeStructure 解析 QE 输入/输出中的原子坐标并给出结构摘要：
// 化学式、z 向分层（双层体系的层间距）。
func AnalyzeStructure(path string) (string, error) {
	atoms, err := parseAtoms(path)
	if err != nil {
		return "", err
	}
	if len(atoms) == 0 {
		return "", fmt.Errorf("no atomic positions found in %q", path)
	}

	var report strings.Builder
	fmt.Fprintf(&report, "Structure summary for %d atoms\n", len(atoms))
	fmt.Fprintf(&report, "Composition: %s\n", composition(atoms))

	layers := splitLayers(atoms)
	fmt.Fprintf(&report, "Layers along z: %d\n", len(layers))
	for i, layer := range layers {
		fmt.Fprintf(&report, "  layer %d: %d atoms (%s), z in [%.4f, %.4f]\n",
			i+1, len(layer), composition(layer), layer[0].Z, layer[len(layer)-1].Z)
	}
	if len(layers) == 2 {
		gap := layers[1][0].Z - layers[0][len(layers[0])-1].Z
		fmt.Fprintf(&report, "Interlayer spacing: %.4f\n", gap)
	}
	return report.String(), nil
}

func parseAtoms(path string) ([]Atom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open structure file: %w", err)
	}
	defer f.Close()

	var atoms []Atom
	inPositions := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(strings.ToUpper(trimmed), "ATOMIC_POSITIONS") {
			inPositions = true
			continue
		}

		if inPositions {
			atom, ok := parsePositionLine(trimmed)
			if !ok {
				inPositions = false
				continue
			}
			atoms = append(atoms, atom)
			continue
		}

		// pw.x 输出格式
		if m := reTauLine.FindStringSubmatch(line); m != nil {
			x, _ := strconv.ParseFloat(m[2], 64)
			y, _ := strconv.ParseFloat(m[3], 64)
			z, _ := strconv.ParseFloat(m[4], 64)
			atoms = append(atoms, Atom{Element: m[1], X: x, Y: y, Z: z})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan structure file: %w", err)
	}
	return atoms, nil
}

// parsePositionLine ATOMIC_POSITIONS 块内的一行：“El x y z [flags]”
func parsePositionLine(line string) (Atom, bool) {
	if line == "" {
		return Atom{}, false
	}
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Atom{}, false
	}
	x, err1 := strconv.ParseFloat(fields[1], 64)
	y, err2 := strconv.ParseFloat(fields[2], 64)
	z, err3 := strconv.ParseFloat(fields[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Atom{}, false
	}
	element := strings.TrimRight(fields[0], "0123456789")
	if element == "" {
		return Atom{}, false
	}
	return Atom{Element: element, X: x, Y: y, Z: z}, true
}

// composition 化学式形式的元素计数，按元素名排序
func composition(atoms []Atom) string {
	counts := map[string]int{}
	for _, a := range atoms {
		counts[a.Element]++
	}
	elements := make([]string, 0, len(counts))
	for el := range counts {
		elements = append(elements, el)
	}
	sort.Strings(elements)

	var b strings.Builder
	for _, el := range elements {
		if counts[el] == 1 {
			b.WriteString(el)
		} else {
			fmt.Fprintf(&b, "%s%d", el, counts[el])
		}
	}
	return b.String()
}

// splitLayers 按 z 坐标聚类：相邻间距超过阈值即断开
func splitLayers(atoms []Atom) [][]Atom {
	sorted := append([]Atom{}, atoms...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Z < sorted[j].Z })

	var layers [][]Atom
	current := []Atom{sorted[0]}
	for _, a := range sorted[1:] {
		if a.Z-current[len(current)-1].Z > layerGapThreshold {
			layers = append(layers, current)
			current = nil
		}
		current = append(current, a)
	}
	return append(layers, current)
}
