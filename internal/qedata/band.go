// Package qedata 解析 Quantum ESPRESSO 系列文本数据文件：
// bands.x 输出的 .gnu 能带文件、k 路径描述、.dos 态密度与投影文件。
package qedata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// BandPoint 能带上的一个采样点
type BandPoint struct {
	K float64 // 沿 k 路径的累计距离
	E float64 // 能量 (eV)
}

// Band 一条能带
type Band []BandPoint

// ParseBands 解析 gnuplot 格式能带文件：
// 每行 “k E”，空行分隔不同能带；# 开头为注释。
func ParseBands(path string) ([]Band, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open band file: %w", err)
	}
	defer f.Close()

	var bands []Band
	var current Band

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
		if len(fields) < 2 {
			continue
		}
		k, err1 := strconv.ParseFloat(fields[0], 64)
		e, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		current = append(current, BandPoint{K: k, E: e})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan band file: %w", err)
	}
	if len(current) > 0 {
		bands = append(bands, current)
	}

	if len(bands) == 0 {
		return nil, fmt.Errorf("band file %q contains no band data", path)
	}
	return bands, nil
}

// SplitSpin 自旋极化计算的能带文件前半为 up、后半为 down。
// 奇数条时 down 少一条，不报错。
func SplitSpin(bands []Band) (up, down []Band) {
	half := (len(bands) + 1) / 2
	return bands[:half], bands[half:]
}

// EnergyBounds 全部能带的能量范围（shift 为统一平移量，通常取 -Fermi）
func EnergyBounds(bands []Band, shift float64) (min, max float64) {
	first := true
	for _, band := range bands {
		for _, p := range band {
			e := p.E + shift
			if first {
				min, max = e, e
				first = false
				continue
			}
			if e < min {
				min = e
			}
			if e > max {
				max = e
			}
		}
	}
	return min, max
}
