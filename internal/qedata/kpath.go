package qedata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// KPoint k 路径上的一个高对称点
type KPoint struct {
	Label string
	X     float64 // 在能带图横轴上的位置
}

// ParseKPath 解析 k 路径文件：每行一个高对称点，
// “标签 坐标” 或 “坐标 标签” 均接受；# 注释与空行跳过。
// 常见标签写法 G/Gamma 统一归一为 Γ。
func ParseKPath(path string) ([]KPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open k-path file: %w", err)
	}
	defer f.Close()

	var points []KPoint

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		// 哪个 token 是数字，哪个就是坐标
		if x, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
			points = append(points, KPoint{Label: normalizeLabel(fields[0]), X: x})
			continue
		}
		if x, err := strconv.ParseFloat(fields[0], 64); err == nil {
			points = append(points, KPoint{Label: normalizeLabel(fields[1]), X: x})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan k-path file: %w", err)
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("k-path file %q contains no labeled points", path)
	}
	return points, nil
}

func normalizeLabel(raw string) string {
	label := strings.Trim(raw, "'\"")
	switch strings.ToUpper(label) {
	case "G", "GAMMA", "\\GAMMA":
		return "Γ"
	}
	return label
}
