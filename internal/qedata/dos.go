package qedata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DOSPoint 态密度曲线上的一个采样点
type DOSPoint struct {
	E     float64 // 能量 (eV)
	Value float64 // 态密度
}

// ParseDOS 解析 .dos 文件：首列能量、次列态密度，
// 自旋极化时 up/down 两列相加。# 开头为表头。
func ParseDOS(path string) ([]DOSPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dos file: %w", err)
	}
	defer f.Close()

	var points []DOSPoint
	spinResolved := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			// QE 表头里出现 dosup/dosdw 说明是自旋分辨的两列
			lower := strings.ToLower(line)
			if strings.Contains(lower, "dosup") && strings.Contains(lower, "dosdw") {
				spinResolved = true
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		e, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		if spinResolved && len(fields) >= 3 {
			if down, err := strconv.ParseFloat(fields[2], 64); err == nil {
				v += down
			}
		}
		points = append(points, DOSPoint{E: e, Value: v})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan dos file: %w", err)
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("dos file %q contains no data", path)
	}
	return points, nil
}
