package builder

import (
	"errors"
	"testing"

	"qepweb/internal/model"
	"qepweb/internal/schema"
)

func TestBuild_UnknownPlotType(t *testing.T) {
	t.Parallel()

	_, err := Build(model.PlotType("nope"), Fields{}, Staged{})
	if !errors.Is(err, schema.ErrUnknownPlotType) {
		t.Fatalf("expected ErrUnknownPlotType, got %v", err)
	}
}

func TestBuild_DualHighlightSplit(t *testing.T) {
	t.Parallel()

	req, err := Build(model.PlotFatbands, Fields{
		FatbandMode: "o_atomic",
		Dual:        true,
		Highlight:   "Mo, S",
	}, Staged{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	fat := req.(*model.FatbandsRequest)
	if len(fat.Highlight) != 2 || fat.Highlight[0] != "Mo" || fat.Highlight[1] != "S" {
		t.Fatalf("dual highlight not split/trimmed: %v", fat.Highlight)
	}
}

func TestBuild_DualWithoutCommaStaysSingleToken(t *testing.T) {
	t.Parallel()

	req, err := Build(model.PlotFatbands, Fields{
		FatbandMode: "o_atomic",
		Dual:        true,
		Highlight:   "Mo",
	}, Staged{})
	if err != nil {
		t.Fatalf("build must not crash on comma-less dual input: %v", err)
	}

	fat := req.(*model.FatbandsRequest)
	if len(fat.Highlight) != 1 || fat.Highlight[0] != "Mo" {
		t.Fatalf("single token should survive as-is: %v", fat.Highlight)
	}
	if !fat.Dual {
		t.Fatalf("dual flag should be preserved for the validator to reject")
	}
}

func TestBuild_DualIgnoredOutsideLineModes(t *testing.T) {
	t.Parallel()

	req, err := Build(model.PlotFatbands, Fields{
		FatbandMode: "heat_atomic",
		Dual:        true,
		Highlight:   "Mo,S",
	}, Staged{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	fat := req.(*model.FatbandsRequest)
	if fat.Dual {
		t.Fatalf("dual only applies to line modes")
	}
}

func TestBuild_HeatRangeCollapsesToAuto(t *testing.T) {
	t.Parallel()

	req, err := Build(model.PlotFatbands, Fields{
		FatbandMode: "heat_total",
		Highlight:   "Mo",
		HeatMin:     0.2,
		HeatMax:     0, // 非正上界 → 自动缩放
	}, Staged{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	fat := req.(*model.FatbandsRequest)
	if fat.HeatRange != nil {
		t.Fatalf("non-positive heat max should collapse to auto, got %+v", fat.HeatRange)
	}

	req2, _ := Build(model.PlotFatbands, Fields{
		FatbandMode: "heat_total",
		Highlight:   "Mo",
		HeatMin:     0.1,
		HeatMax:     0.9,
	}, Staged{})
	fat2 := req2.(*model.FatbandsRequest)
	if fat2.HeatRange == nil || fat2.HeatRange.Min != 0.1 || fat2.HeatRange.Max != 0.9 {
		t.Fatalf("positive heat range should be kept: %+v", fat2.HeatRange)
	}
}

func TestBuild_InapplicableFieldsOmitted(t *testing.T) {
	t.Parallel()

	req, err := Build(model.PlotDOS, Fields{
		FatbandMode: "heat_total",
		Highlight:   "Mo",
		PDOSGrouping: "orbital",
	}, Staged{DOSFile: "/tmp/x.dos", BandFile: "/tmp/b.gnu"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	dos, ok := req.(*model.DOSRequest)
	if !ok {
		t.Fatalf("wrong variant: %T", req)
	}
	if dos.DOSFile != "/tmp/x.dos" {
		t.Fatalf("dos file not carried over: %q", dos.DOSFile)
	}
	// DOSRequest 上根本没有 band/highlight 字段——变体类型保证了省略语义
}

func TestBuild_BandProjectionOnlyWhenColoring(t *testing.T) {
	t.Parallel()

	staged := Staged{BandFile: "b", KpathFile: "k", ProjectionDir: "/tmp/proj"}

	plain, _ := Build(model.PlotBand, Fields{BandColorMode: "normal"}, staged)
	if plain.(*model.BandRequest).ProjectionDir != "" {
		t.Fatalf("normal color mode must not bind projection dir")
	}

	colored, _ := Build(model.PlotBand, Fields{BandColorMode: "atomic"}, staged)
	if colored.(*model.BandRequest).ProjectionDir != "/tmp/proj" {
		t.Fatalf("coloring mode should bind projection dir")
	}
}

func TestBuild_YRangeRequiresBothBounds(t *testing.T) {
	t.Parallel()

	min := -3.0
	req, _ := Build(model.PlotBand, Fields{YMin: &min}, Staged{})
	if req.Options().YRange != nil {
		t.Fatalf("half-open y range should be dropped")
	}

	max := 3.0
	req2, _ := Build(model.PlotBand, Fields{YMin: &min, YMax: &max}, Staged{})
	yr := req2.Options().YRange
	if yr == nil || yr.Min != -3.0 || yr.Max != 3.0 {
		t.Fatalf("full y range should be kept: %+v", yr)
	}
}

func TestBuild_PDOSGroupingDefault(t *testing.T) {
	t.Parallel()

	req, _ := Build(model.PlotPDOS, Fields{}, Staged{ProjectionDir: "/tmp/p"})
	if req.(*model.PDOSRequest).Grouping != model.GroupAtomic {
		t.Fatalf("empty grouping should default to atomic")
	}
}

func TestBuild_LayerAssignmentTrimmed(t *testing.T) {
	t.Parallel()

	req, _ := Build(model.PlotFatbands, Fields{
		FatbandMode:     "layer",
		LayerAssignment: map[string]string{" Mo1 ": " top ", "S3": "bottom"},
	}, Staged{})
	fat := req.(*model.FatbandsRequest)
	if fat.LayerAssignment["Mo1"] != "top" || fat.LayerAssignment["S3"] != "bottom" {
		t.Fatalf("layer assignment not normalized: %v", fat.LayerAssignment)
	}
}
