package tools

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qepweb/internal/qedata"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDetectBandGap_Indirect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// 价带顶在 k=0，导带底在 k=1.0：间接带隙 1.0-(-0.5)=1.5
	band := write(t, dir, "bands.gnu", `0.0  -0.5
0.5  -1.0
1.0  -1.5

0.0   2.0
0.5   1.5
1.0   1.0
`)
	kpath := write(t, dir, "kpath.in", "G 0.0\nM 0.5\nK 1.0\n")

	res, err := DetectBandGap(band, kpath, 0.0)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if res.Metallic {
		t.Fatalf("should not be metallic")
	}
	if math.Abs(res.Gap-1.5) > 1e-9 {
		t.Fatalf("gap wrong: %v", res.Gap)
	}
	if res.Direct {
		t.Fatalf("gap should be indirect")
	}
	if res.VBMLabel != "Γ" || res.CBMLabel != "K" {
		t.Fatalf("edge labels wrong: %s %s", res.VBMLabel, res.CBMLabel)
	}
	if !strings.Contains(res.Report, "indirect") {
		t.Fatalf("report should state the gap kind: %s", res.Report)
	}
}

func TestDetectBandGap_Direct(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	band := write(t, dir, "bands.gnu", `0.0  -1.0
0.5  -0.4
1.0  -1.0

0.0   2.0
0.5   1.2
1.0   2.0
`)
	kpath := write(t, dir, "kpath.in", "G 0.0\nM 0.5\nK 1.0\n")

	res, err := DetectBandGap(band, kpath, 0.0)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !res.Direct {
		t.Fatalf("both edges sit at k=0.5: should be direct")
	}
	if math.Abs(res.Gap-1.6) > 1e-9 {
		t.Fatalf("gap wrong: %v", res.Gap)
	}
}

func TestDetectBandGap_Metallic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	band := write(t, dir, "bands.gnu", "0.0 -1.0\n0.5 0.5\n1.0 1.0\n")
	kpath := write(t, dir, "kpath.in", "G 0.0\nK 1.0\n")

	res, err := DetectBandGap(band, kpath, 0.0)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !res.Metallic {
		t.Fatalf("band crossing the Fermi level must report metallic")
	}
	if !strings.Contains(res.Report, "metallic") {
		t.Fatalf("report should say metallic: %s", res.Report)
	}
}

func TestAnalyzeStructure_BilayerInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := write(t, dir, "scf.in", `&control
/
ATOMIC_POSITIONS (angstrom)
Mo  0.0000  0.0000  0.0000
S   0.5000  0.2887  1.5600
S   0.5000  0.2887  -1.5600
Mo  0.0000  0.0000  6.1500
S   0.5000  0.2887  7.7100
S   0.5000  0.2887  4.5900

K_POINTS automatic
12 12 1 0 0 0
`)

	report, err := AnalyzeStructure(input)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(report, "Composition: Mo2S4") {
		t.Fatalf("composition wrong: %s", report)
	}
	if !strings.Contains(report, "Layers along z: 2") {
		t.Fatalf("bilayer should split into two layers: %s", report)
	}
	if !strings.Contains(report, "Interlayer spacing:") {
		t.Fatalf("bilayer report should include spacing: %s", report)
	}
}

func TestAnalyzeStructure_OutputTauLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := write(t, dir, "scf.out", `     site n.     atom                  positions (alat units)
         1           Mo  tau(   1) = (   0.0000000   0.0000000   0.0000000  )
         2           S   tau(   2) = (   0.5000000   0.2886751   0.4100000  )
`)

	report, err := AnalyzeStructure(out)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(report, "Composition: MoS") {
		t.Fatalf("tau-line parsing failed: %s", report)
	}
}

func TestAnalyzeStructure_NoAtoms(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := write(t, dir, "empty.in", "&control\n/\n")
	if _, err := AnalyzeStructure(path); err == nil {
		t.Fatalf("expected error when no positions found")
	}
}

const projOutSample = `
     state #   1: atom   1 (Mo ), wfc  4 (l=2 m= 1)
     state #   2: atom   2 (S  ), wfc  2 (l=1 m= 1)

 k =   0.0000000000  0.0000000000  0.0000000000
==== e(   1) =   -5.10000 eV ====
     psi = 0.900*[#   1]+ 0.100*[#   2]+
    |psi|^2 = 1.000
==== e(   2) =    1.20000 eV ====
     psi = 0.200*[#   1]+ 0.800*[#   2]+
    |psi|^2 = 1.000
 k =   0.5000000000  0.0000000000  0.0000000000
==== e(   1) =   -4.80000 eV ====
     psi = 0.850*[#   1]+ 0.150*[#   2]+
    |psi|^2 = 1.000
==== e(   2) =    1.80000 eV ====
     psi = 0.300*[#   1]+ 0.700*[#   2]+
    |psi|^2 = 1.000
`

func TestConvertProjections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := write(t, dir, "proj.out", projOutSample)
	outdir := filepath.Join(dir, "converted")

	res, err := ConvertProjections(src, outdir)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("expected 2 channel files, got %d", len(res.Files))
	}
	if !strings.Contains(res.Report, "2 states, 2 k-points, 2 bands") {
		t.Fatalf("report counts wrong: %s", res.Report)
	}

	// 产物必须能被投影目录扫描与带权解析直接消费
	channels, err := qedata.ScanProjectionDir(outdir)
	if err != nil {
		t.Fatalf("scan converted dir: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(channels))
	}
	if channels[0].Element != "Mo" || channels[0].Orbital != "dz2" {
		t.Fatalf("sub-orbital channel wrong: %+v", channels[0])
	}

	bands, err := qedata.ParseWeightBands(channels[0].Path)
	if err != nil {
		t.Fatalf("parse converted weights: %v", err)
	}
	if len(bands) != 2 || len(bands[0]) != 2 {
		t.Fatalf("converted shape wrong: %d bands", len(bands))
	}
	if math.Abs(bands[0][0].W-0.9) > 1e-9 || math.Abs(bands[0][0].E+5.1) > 1e-9 {
		t.Fatalf("converted values wrong: %+v", bands[0][0])
	}
}

const projOutSOCSample = `
     state #   1: atom   1 (Mo ), wfc  4 (j=2.5 l=2 m_j=-2.5)
     state #   2: atom   1 (Mo ), wfc  4 (j=2.5 l=2 m_j=-1.5)

 k =   0.0000000000  0.0000000000  0.0000000000
==== e(   1) =   -5.10000 eV ====
     psi = 0.600*[#   1]+ 0.400*[#   2]+
    |psi|^2 = 1.000
`

func TestConvertProjectionsSOC_MergesMJComponents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := write(t, dir, "proj.out", projOutSOCSample)
	outdir := filepath.Join(dir, "soc")

	res, err := ConvertProjectionsSOC(src, outdir)
	if err != nil {
		t.Fatalf("convert soc: %v", err)
	}
	if len(res.Files) != 1 {
		t.Fatalf("m_j components should merge into one channel, got %d files", len(res.Files))
	}

	bands, err := qedata.ParseWeightBands(res.Files[0])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if math.Abs(bands[0][0].W-1.0) > 1e-9 {
		t.Fatalf("merged weight wrong: %v", bands[0][0].W)
	}
}

func TestConvertProjections_NotProjwfcOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := write(t, dir, "random.txt", "nothing to see here\n")
	if _, err := ConvertProjections(src, filepath.Join(dir, "out")); err == nil {
		t.Fatalf("expected error for non-projwfc input")
	}
}
