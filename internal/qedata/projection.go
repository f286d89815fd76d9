package qedata

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

// Channel 一个投影通道，由 projwfc 输出文件名标识，
// 形如 mos2.pdos_atm#1(Mo)_wfc#4(d) 或转换器生成的同名 .pdos 文件。
type Channel struct {
	AtomIndex int    // 原子序号（结构内编号，从 1 起）
	Element   string // 元素符号
	Orbital   string // 轨道标签：s/p/d/f 或 px/dxy 等子轨道
	Path      string // 数据文件路径
}

// AtomKey 形如 "Mo1"，用于 layer 模式的原子归属
func (c Channel) AtomKey() string {
	return fmt.Sprintf("%s%d", c.Element, c.AtomIndex)
}

var reChannelName = regexp.MustCompile(`atm#(\d+)\((\w+)\s*\)?_wfc#\d+\((\w+)\s*\)?`)

// ParseChannelName 从文件名提取通道信息
func ParseChannelName(name string) (atomIndex int, element, orbital string, ok bool) {
	matches := reChannelName.FindStringSubmatch(name)
	if len(matches) < 4 {
		return 0, "", "", false
	}
	idx, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", "", false
	}
	return idx, strings.TrimSpace(matches[2]), strings.TrimSpace(matches[3]), true
}

// ScanProjectionDir 扫描投影目录，返回全部可识别通道。
// 无法识别的文件直接跳过，目录里一个通道都没有才算错误。
func ScanProjectionDir(dir string) ([]Channel, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read projection dir: %w", err)
	}

	var channels []Channel
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		idx, element, orbital, ok := ParseChannelName(entry.Name())
		if !ok {
			continue
		}
		channels = append(channels, Channel{
			AtomIndex: idx,
			Element:   element,
			Orbital:   orbital,
			Path:      filepath.Join(dir, entry.Name()),
		})
	}

	if len(channels) == 0 {
		return nil, fmt.Errorf("no projection channels recognized in %q", dir)
	}

	sort.Slice(channels, func(i, j int) bool {
		if channels[i].AtomIndex != channels[j].AtomIndex {
			return channels[i].AtomIndex < channels[j].AtomIndex
		}
		return channels[i].Orbital < channels[j].Orbital
	})
	return channels, nil
}

// GroupKey 通道在给定分组方式下的键。
// subOrbital=false 时子轨道标签折叠为主量子轨道（px→p、dxy→d）。
func (c Channel) GroupKey(grouping string, subOrbital bool) string {
	orbital := c.Orbital
	if !subOrbital && orbital != "" {
		orbital = orbital[:1]
	}
	switch grouping {
	case "orbital":
		return orbital
	case "element_orbital":
		return c.Element + "-" + orbital
	default: // atomic
		return c.Element
	}
}

// ParseProjection 读取通道的 E/密度 数据（与 .dos 同列式）
func ParseProjection(path string) ([]DOSPoint, error) {
	return ParseDOS(path)
}

// WeightPoint 能带点附带投影权重（转换器输出格式：k E w）
type WeightPoint struct {
	K, E, W float64
}

// WeightBand 一条带权能带
type WeightBand []WeightPoint

// ParseWeightBands 解析带权能带文件：每行 “k E w”，空行分带。
// fatbands 渲染用它决定气泡大小与热度。
func ParseWeightBands(path string) ([]WeightBand, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weight file: %w", err)
	}
	defer f.Close()

	var bands []WeightBand
	var current WeightBand

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if len(current) > 0 {
				bands = append(bands, current)
				current = nil
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		k, err1 := strconv.ParseFloat(fields[0], 64)
		e, err2 := strconv.ParseFloat(fields[1], 64)
		w, err3 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		current = append(current, WeightPoint{K: k, E: e, W: w})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan weight file: %w", err)
	}
	if len(current) > 0 {
		bands = append(bands, current)
	}

	if len(bands) == 0 {
		return nil, fmt.Errorf("weight file %q contains no data", path)
	}
	return bands, nil
}
