package tools

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ConvertResult 投影转换结果
type ConvertResult struct {
	OutDir string   `json:"outDir"`
	Files  []string `json:"files"`
	Report string   `json:"report"`
}

// 标量相对论计算的 state 行：state #   1: atom   1 (Mo ), wfc  1 (l=2 m= 1)
var reStateStd = regexp.MustCompile(`state\s+#\s*(\d+):\s+atom\s+(\d+)\s+\((\w+)\s*\),\s+wfc\s+(\d+)\s+\(l=\s*(\d)\s+m=\s*(\d)\)`)

// 自旋轨道耦合的 state 行：... wfc  1 (j=0.5 l=1 m_j=-0.5)
var reStateSOC = regexp.MustCompile(`state\s+#\s*(\d+):\s+atom\s+(\d+)\s+\((\w+)\s*\),\s+wfc\s+(\d+)\s+\(j=\s*([\d.]+)\s+l=\s*(\d)`)

var (
	reKLine   = regexp.MustCompile(`^\s*k\s*=`)
	reELine   = regexp.MustCompile(`e\(\s*\d+\)\s*=\s*(-?\d+\.\d+)\s*ev`)
	rePsiTerm = regexp.MustCompile(`([\d.]+)\*\[#\s*(\d+)\]`)
)

// QE 的 (l, m) 编号到子轨道标签
var subOrbitalNames = map[int][]string{
	0: {"s"},
	1: {"pz", "px", "py"},
	2: {"dz2", "dzx", "dzy", "dx2y2", "dxy"},
	3: {"f", "f", "f", "f", "f", "f", "f"},
}

type projState struct {
	atomIndex int
	element   string
	wfcIndex  int
	orbital   string
}

// ConvertProjections 把 projwfc.x 的 proj.out 转成逐通道带权能带文件。
// 输出文件名沿用 QE 的 atm#/wfc# 命名，可直接作为 fatbands 的投影目录。
func ConvertProjections(src, outdir string) (*ConvertResult, error) {
	return convert(src, outdir, false)
}

// ConvertProjectionsSOC 自旋轨道耦合版本：state 行携带 j 量子数，
// 同一 (原子, l) 的各 m_j 分量并入同一通道。
func ConvertProjectionsSOC(src, outdir string) (*ConvertResult, error) {
	return convert(src, outdir, true)
}

func convert(src, outdir string, soc bool) (*ConvertResult, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open projection output: %w", err)
	}
	defer f.Close()

	states := map[int]projState{}
	// weights[stateKey][bandIndex][kIndex]
	weights := map[string][][]float64{}
	var energies [][]float64 // [bandIndex][kIndex]

	kIndex := -1
	bandIndex := -1

	ensure := func(m [][]float64) [][]float64 {
		for len(m) <= bandIndex {
			m = append(m, nil)
		}
		for len(m[bandIndex]) <= kIndex {
			m[bandIndex] = append(m[bandIndex], 0)
		}
		return m
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if st, ok := parseState(line, soc); ok {
			states[st.index] = st.projState
			continue
		}
		if reKLine.MatchString(line) {
			kIndex++
			bandIndex = -1
			continue
		}
		if m := reELine.FindStringSubmatch(strings.ToLower(line)); m != nil && kIndex >= 0 {
			bandIndex++
			e, _ := strconv.ParseFloat(m[1], 64)
			energies = ensure(energies)
			energies[bandIndex][kIndex] = e
			continue
		}
		if kIndex < 0 || bandIndex < 0 {
			continue
		}
		for _, term := range rePsiTerm.FindAllStringSubmatch(line, -1) {
			w, err1 := strconv.ParseFloat(term[1], 64)
			idx, err2 := strconv.Atoi(term[2])
			if err1 != nil || err2 != nil {
				continue
			}
			st, ok := states[idx]
			if !ok {
				continue
			}
			key := channelKey(st)
			weights[key] = ensure(weights[key])
			weights[key][bandIndex][kIndex] += w
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan projection output: %w", err)
	}

	if len(states) == 0 || kIndex < 0 {
		return nil, fmt.Errorf("%q does not look like projwfc output", src)
	}

	if err := os.MkdirAll(outdir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	keys := make([]string, 0, len(weights))
	for key := range weights {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	res := &ConvertResult{OutDir: outdir}
	for _, key := range keys {
		path := filepath.Join(outdir, key+".pdos")
		if err := writeWeightFile(path, energies, weights[key]); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, path)
	}

	mode := "standard"
	if soc {
		mode = "spin-orbit"
	}
	res.Report = fmt.Sprintf(
		"Converted %s projections: %d states, %d k-points, %d bands -> %d channel files in %s\n"+
			"Note: the k coordinate in converted files is the k-point index.\n",
		mode, len(states), kIndex+1, len(energies), len(res.Files), outdir)
	return res, nil
}

type indexedState struct {
	index int
	projState
}

func parseState(line string, soc bool) (indexedState, bool) {
	if soc {
		m := reStateSOC.FindStringSubmatch(line)
		if m == nil {
			return indexedState{}, false
		}
		idx, _ := strconv.Atoi(m[1])
		atom, _ := strconv.Atoi(m[2])
		wfc, _ := strconv.Atoi(m[4])
		l, _ := strconv.Atoi(m[6])
		return indexedState{
			index: idx,
			projState: projState{
				atomIndex: atom,
				element:   m[3],
				wfcIndex:  wfc,
				orbital:   orbitalLetter(l),
			},
		}, true
	}

	m := reStateStd.FindStringSubmatch(line)
	if m == nil {
		return indexedState{}, false
	}
	idx, _ := strconv.Atoi(m[1])
	atom, _ := strconv.Atoi(m[2])
	wfc, _ := strconv.Atoi(m[4])
	l, _ := strconv.Atoi(m[5])
	mq, _ := strconv.Atoi(m[6])
	return indexedState{
		index: idx,
		projState: projState{
			atomIndex: atom,
			element:   m[3],
			wfcIndex:  wfc,
			orbital:   subOrbitalName(l, mq),
		},
	}, true
}

func orbitalLetter(l int) string {
	switch l {
	case 0:
		return "s"
	case 1:
		return "p"
	case 2:
		return "d"
	default:
		return "f"
	}
}

func subOrbitalName(l, m int) string {
	names, ok := subOrbitalNames[l]
	if !ok || m < 1 || m > len(names) {
		return orbitalLetter(l)
	}
	return names[m-1]
}

func channelKey(st projState) string {
	return fmt.Sprintf("atm#%d(%s)_wfc#%d(%s)", st.atomIndex, st.element, st.wfcIndex, st.orbital)
}

// writeWeightFile 逐能带块写 “k E w”，块间空行，与能带 .gnu 同构
func writeWeightFile(path string, energies, weights [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create channel file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for bi := range energies {
		for ki := range energies[bi] {
			weight := 0.0
			if bi < len(weights) && ki < len(weights[bi]) {
				weight = weights[bi][ki]
			}
			fmt.Fprintf(w, "%d  %.6f  %.6f\n", ki, energies[bi][ki], weight)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}
