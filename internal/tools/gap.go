// Package tools 实现独立于绘图流程的计算小工具：
// 带隙分析、结构分析、projwfc 投影转换。输出都是文本报告，
// 对应原工具里被捕获展示的后端控制台输出。
package tools

import (
	"fmt"
	"math"
	"strings"

	"qepweb/internal/qedata"
)

// GapResult 带隙分析结果
type GapResult struct {
	Metallic bool    `json:"metallic"`
	Gap      float64 `json:"gap"`
	Direct   bool    `json:"direct"`
	VBM      float64 `json:"vbm"`
	CBM      float64 `json:"cbm"`
	VBMLabel string  `json:"vbmLabel"`
	CBMLabel string  `json:"cbmLabel"`
	Report   string  `json:"report"`
}

// DetectBandGap 从能带文件定位 VBM/CBM 并给出带隙报告。
// fermi 为参考能级（eV），能带数据不做平移。
func DetectBandGap(bandPath, kpathPath string, fermi float64) (*GapResult, error) {
	bands, err := qedata.ParseBands(bandPath)
	if err != nil {
		return nil, err
	}
	kpath, err := qedata.ParseKPath(kpathPath)
	if err != nil {
		return nil, err
	}

	var report strings.Builder
	fmt.Fprintf(&report, "Band gap analysis (%d bands, Fermi %.4f eV)\n", len(bands), fermi)

	res := &GapResult{
		VBM: math.Inf(-1),
		CBM: math.Inf(1),
	}
	var vbmK, cbmK float64

	for _, band := range bands {
		crossesAbove, crossesBelow := false, false
		for _, p := range band {
			if p.E > fermi {
				crossesAbove = true
			} else {
				crossesBelow = true
			}
			if p.E <= fermi && p.E > res.VBM {
				res.VBM, vbmK = p.E, p.K
			}
			if p.E > fermi && p.E < res.CBM {
				res.CBM, cbmK = p.E, p.K
			}
		}
		if crossesAbove && crossesBelow {
			res.Metallic = true
		}
	}

	if res.Metallic {
		fmt.Fprintf(&report, "A band crosses the Fermi level: the system is metallic, no gap.\n")
		res.Gap = 0
		res.Report = report.String()
		return res, nil
	}
	if math.IsInf(res.VBM, -1) || math.IsInf(res.CBM, 1) {
		fmt.Fprintf(&report, "Could not locate both band edges around %.4f eV.\n", fermi)
		res.Report = report.String()
		return res, nil
	}

	res.Gap = res.CBM - res.VBM
	res.Direct = math.Abs(vbmK-cbmK) < 1e-6
	res.VBMLabel = nearestLabel(kpath, vbmK)
	res.CBMLabel = nearestLabel(kpath, cbmK)

	kind := "indirect"
	if res.Direct {
		kind = "direct"
	}
	fmt.Fprintf(&report, "VBM = %.4f eV near %s (k=%.4f)\n", res.VBM, res.VBMLabel, vbmK)
	fmt.Fprintf(&report, "CBM = %.4f eV near %s (k=%.4f)\n", res.CBM, res.CBMLabel, cbmK)
	fmt.Fprintf(&report, "Gap = %.4f eV (%s)\n", res.Gap, kind)
	res.Report = report.String()
	return res, nil
}

// nearestLabel 离给定 k 坐标最近的高对称点标签
func nearestLabel(kpath []qedata.KPoint, k float64) string {
	best := ""
	bestDist := math.Inf(1)
	for _, p := range kpath {
		d := math.Abs(p.X - k)
		if d < bestDist {
			bestDist = d
			best = p.Label
		}
	}
	return best
}
