// Package detect 从 SCF 输出文本中提取物理参数。
// 检测只用于预填表单，任何失败都映射为“未找到”，绝不报错。
package detect

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// 两种有序的文本模式：优先金属体系的 Fermi 能，
// 其次绝缘体系的最高占据能级。独立定义便于分别测试回退行为。
var (
	reFermi = regexp.MustCompile(`(?i)the\s+Fermi\s+energy\s+is\s+(-?\d+(?:\.\d+)?)\s*ev`)
	reHOMO  = regexp.MustCompile(`(?i)highest\s+occupied\s+level(?:\s*\(ev\))?[\s:]*(-?\d+(?:\.\d+)?)`)
)

// DetectFermi 扫描文件内容提取 Fermi 能（eV）。
// 文件缺失、权限错误、编码异常一律返回 found=false。
func DetectFermi(path string) (value float64, found bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	// 尽力解码：丢弃无法解码的字节，不让编码问题中断检测
	text := strings.ToValidUTF8(string(data), "")

	if v, ok := MatchFermiEnergy(text); ok {
		return v, true
	}
	return MatchHighestOccupied(text)
}

// MatchFermiEnergy 匹配 “the Fermi energy is <float> eV”
func MatchFermiEnergy(text string) (float64, bool) {
	return firstFloat(reFermi, text)
}

// MatchHighestOccupied 匹配 “highest occupied level <float> eV”
func MatchHighestOccupied(text string) (float64, bool) {
	return firstFloat(reHOMO, text)
}

func firstFloat(re *regexp.Regexp, text string) (float64, bool) {
	matches := re.FindStringSubmatch(text)
	if len(matches) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
