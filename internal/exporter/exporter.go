// Package exporter 把会话里已暂存的数据文件导出为 Excel 工作簿，
// 方便在表格软件里继续处理能带 / DOS 数据。
package exporter

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"qepweb/internal/qedata"
	"qepweb/internal/tools"
)

// Exporter Excel导出器
type Exporter struct{}

// NewExporter 创建导出器
func NewExporter() *Exporter {
	return &Exporter{}
}

// Input 导出输入：各字段为空即跳过对应工作表
type Input struct {
	BandFile      string
	KpathFile     string
	DOSFile       string
	ProjectionDir string
	Fermi         float64
	Grouping      string // atomic / orbital / element_orbital
	SubOrbital    bool
}

// Export 按输入组装工作簿。至少要有一类数据，否则报错。
func (e *Exporter) Export(in Input) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	wrote := false

	if in.BandFile != "" {
		if err := e.writeBands(f, headerStyle, in.BandFile); err != nil {
			return nil, err
		}
		wrote = true
	}
	if in.DOSFile != "" {
		if err := e.writeDOS(f, headerStyle, in.DOSFile); err != nil {
			return nil, err
		}
		wrote = true
	}
	if in.ProjectionDir != "" {
		if err := e.writePDOS(f, headerStyle, in); err != nil {
			return nil, err
		}
		wrote = true
	}
	if in.BandFile != "" && in.KpathFile != "" {
		if err := e.writeGap(f, headerStyle, in); err != nil {
			return nil, err
		}
	}

	if !wrote {
		return nil, fmt.Errorf("nothing to export: no band, DOS or projection data staged")
	}
	return f, nil
}

// writeBands 能带表：第一列 k，之后每条能带一列
func (e *Exporter) writeBands(f *excelize.File, headerStyle int, path string) error {
	bands, err := qedata.ParseBands(path)
	if err != nil {
		return err
	}

	sheetName := "Bands"
	f.SetSheetName("Sheet1", sheetName)

	f.SetCellValue(sheetName, "A1", "k")
	for bi := range bands {
		cell, _ := excelize.CoordinatesToCellName(bi+2, 1)
		f.SetCellValue(sheetName, cell, fmt.Sprintf("band %d (eV)", bi+1))
	}

	for pi, p := range bands[0] {
		row := pi + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), p.K)
		for bi, band := range bands {
			if pi >= len(band) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(bi+2, row)
			f.SetCellValue(sheetName, cell, band[pi].E)
		}
	}

	f.SetRowStyle(sheetName, 1, 1, headerStyle)
	f.SetColWidth(sheetName, "A", "A", 12)
	return nil
}

func (e *Exporter) writeDOS(f *excelize.File, headerStyle int, path string) error {
	points, err := qedata.ParseDOS(path)
	if err != nil {
		return err
	}

	sheetName := "DOS"
	ensureSheet(f, sheetName)

	f.SetCellValue(sheetName, "A1", "E (eV)")
	f.SetCellValue(sheetName, "B1", "DOS (states/eV)")
	for i, p := range points {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), p.E)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), p.Value)
	}

	f.SetRowStyle(sheetName, 1, 1, headerStyle)
	f.SetColWidth(sheetName, "A", "B", 16)
	return nil
}

// writePDOS 投影态密度表：第一列 E，每个分组一列，同组通道逐点求和
func (e *Exporter) writePDOS(f *excelize.File, headerStyle int, in Input) error {
	channels, err := qedata.ScanProjectionDir(in.ProjectionDir)
	if err != nil {
		return err
	}

	grouped := map[string][]qedata.DOSPoint{}
	for _, ch := range channels {
		points, err := qedata.ParseProjection(ch.Path)
		if err != nil {
			return fmt.Errorf("channel %s: %w", ch.AtomKey(), err)
		}
		key := ch.GroupKey(in.Grouping, in.SubOrbital)
		if existing, ok := grouped[key]; ok {
			for i := range existing {
				if i < len(points) {
					existing[i].Value += points[i].Value
				}
			}
		} else {
			grouped[key] = points
		}
	}

	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	sheetName := "PDOS"
	ensureSheet(f, sheetName)

	f.SetCellValue(sheetName, "A1", "E (eV)")
	for ci, key := range keys {
		cell, _ := excelize.CoordinatesToCellName(ci+2, 1)
		f.SetCellValue(sheetName, cell, key)
	}

	first := grouped[keys[0]]
	for pi, p := range first {
		row := pi + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), p.E)
		for ci, key := range keys {
			points := grouped[key]
			if pi >= len(points) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(ci+2, row)
			f.SetCellValue(sheetName, cell, points[pi].Value)
		}
	}

	f.SetRowStyle(sheetName, 1, 1, headerStyle)
	f.SetColWidth(sheetName, "A", "A", 16)
	return nil
}

// writeGap 带隙分析表：键值两列
func (e *Exporter) writeGap(f *excelize.File, headerStyle int, in Input) error {
	res, err := tools.DetectBandGap(in.BandFile, in.KpathFile, in.Fermi)
	if err != nil {
		return err
	}

	sheetName := "Band Gap"
	ensureSheet(f, sheetName)

	rows := [][]interface{}{
		{"Quantity", "Value"},
		{"Metallic", res.Metallic},
	}
	if !res.Metallic {
		kind := "indirect"
		if res.Direct {
			kind = "direct"
		}
		rows = append(rows,
			[]interface{}{"Gap (eV)", res.Gap},
			[]interface{}{"Gap type", kind},
			[]interface{}{"VBM (eV)", res.VBM},
			[]interface{}{"VBM near", res.VBMLabel},
			[]interface{}{"CBM (eV)", res.CBM},
			[]interface{}{"CBM near", res.CBMLabel},
		)
	}

	for i, row := range rows {
		for j, val := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	f.SetRowStyle(sheetName, 1, 1, headerStyle)
	f.SetColWidth(sheetName, "A", "B", 18)
	return nil
}

// ensureSheet 工作簿还停在默认 Sheet1 时改名复用，否则新建
func ensureSheet(f *excelize.File, name string) {
	if idx, _ := f.GetSheetIndex("Sheet1"); idx >= 0 {
		f.SetSheetName("Sheet1", name)
		return
	}
	f.NewSheet(name)
}
