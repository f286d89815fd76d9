package builder

import (
	"fmt"
	"os"

	"qepweb/internal/model"
)

// MissingInputError 校验失败：缺少必需输入或违反跨字段约束。
// Reason 原样展示给用户，不做泛化。
type MissingInputError struct {
	Reason string
}

func (e *MissingInputError) Error() string {
	return e.Reason
}

func missing(format string, args ...interface{}) error {
	return &MissingInputError{Reason: fmt.Sprintf(format, args...)}
}

// Validate 按 schema 的必需槽位规则逐项检查请求。
// 检查有固定顺序，第一个失败项即刻返回；全部通过才算 Ready。
func Validate(req model.Request) error {
	// 1. 能带类图的主文件对
	switch r := req.(type) {
	case *model.BandRequest:
		if err := checkBandPair(r.BandFile, r.KpathFile); err != nil {
			return err
		}
	case *model.FatbandsRequest:
		if err := checkBandPair(r.BandFile, r.KpathFile); err != nil {
			return err
		}
	case *model.OverlayRequest:
		if err := checkBandPair(r.BandFile, r.KpathFile); err != nil {
			return err
		}
		if r.BandFile2 == "" || r.KpathFile2 == "" {
			return missing("Missing second Band or K-Path file for overlay comparison.")
		}
		if err := checkFileExists(r.BandFile2, "second band file"); err != nil {
			return err
		}
		if err := checkFileExists(r.KpathFile2, "second k-path file"); err != nil {
			return err
		}
	}

	// 2. 投影目录
	switch r := req.(type) {
	case *model.FatbandsRequest:
		if err := checkProjectionDir(r.ProjectionDir); err != nil {
			return err
		}
	case *model.PDOSRequest:
		if err := checkProjectionDir(r.ProjectionDir); err != nil {
			return err
		}
	}

	// 3. 勾选了侧边 DOS 却没上传 DOS 文件
	if r, ok := req.(*model.FatbandsRequest); ok {
		if r.ShowSideDOS && r.DOSFile == "" {
			return missing("You enabled Side DOS but didn't upload a DOS file.")
		}
	}

	// 4. 热图模式必须指定高亮通道
	if r, ok := req.(*model.FatbandsRequest); ok {
		if r.Mode.IsHeat() && len(r.Highlight) == 0 {
			return missing("Heatmap requires a Highlight Channel.")
		}
	}

	// 其余跨字段约束
	if err := validateCrossFields(req); err != nil {
		return err
	}

	return nil
}

func checkBandPair(bandFile, kpathFile string) error {
	if bandFile == "" || kpathFile == "" {
		return missing("Missing Band or K-Path file.")
	}
	if err := checkFileExists(bandFile, "band file"); err != nil {
		return err
	}
	return checkFileExists(kpathFile, "k-path file")
}

func checkProjectionDir(dir string) error {
	if dir == "" {
		return missing("Missing PDOS files.")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return missing("Projection directory %q is not readable.", dir)
	}
	if len(entries) == 0 {
		return missing("Projection directory contains no files.")
	}
	return nil
}

func checkFileExists(path, label string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return missing("Staged %s no longer exists: %q.", label, path)
	}
	return nil
}

func validateCrossFields(req model.Request) error {
	opts := req.Options()
	if opts.YRange != nil && opts.YRange.Min >= opts.YRange.Max {
		return missing("Y range is invalid: min %.4f must be below max %.4f.", opts.YRange.Min, opts.YRange.Max)
	}

	// 可选槽位一旦绑定了路径，文件也必须仍然存在
	switch r := req.(type) {
	case *model.DOSRequest:
		if r.DOSFile != "" {
			return checkFileExists(r.DOSFile, "DOS file")
		}
		return nil
	case *model.BandRequest:
		if r.ProjectionDir != "" {
			if err := checkProjectionDir(r.ProjectionDir); err != nil {
				return err
			}
		}
		if r.DOSFile != "" {
			return checkFileExists(r.DOSFile, "DOS file")
		}
		return nil
	}

	r, ok := req.(*model.FatbandsRequest)
	if !ok {
		return nil
	}

	if !r.Mode.Valid() {
		return missing("Unknown fatband display mode %q.", r.Mode)
	}
	// dual 要求恰好两个非空通道；单 token 字符串显式报错，不做静默降级
	if r.Dual && len(r.Highlight) != 2 {
		return missing("Dual mode needs exactly two channels, e.g. 'Mo,S' (got %d).", len(r.Highlight))
	}
	if r.HeatRange != nil && r.HeatRange.Min >= r.HeatRange.Max {
		return missing("Heat intensity range is invalid: min must be below max.")
	}
	if r.DOSFile != "" {
		if err := checkFileExists(r.DOSFile, "DOS file"); err != nil {
			return err
		}
	}
	return nil
}
