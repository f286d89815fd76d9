package store

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "qepweb.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRenderHistory(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddRenderRecord(&RenderRecord{
		SessionID:  "s_abc",
		PlotType:   "fatbands",
		Options:    `{"mode":"heat"}`,
		Status:     "ok",
		PNGSize:    2048,
		DurationMS: 15,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id <= 0 {
		t.Fatalf("id not assigned: %d", id)
	}
	if _, err := s.AddRenderRecord(&RenderRecord{
		SessionID: "s_other",
		PlotType:  "band",
		Status:    "rejected",
		Detail:    "Missing Band or K-Path file.",
	}); err != nil {
		t.Fatalf("add second: %v", err)
	}

	records, err := s.ListRenderHistory("s_abc", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("session filter failed, got %d records", len(records))
	}
	if records[0].PlotType != "fatbands" || records[0].PNGSize != 2048 {
		t.Fatalf("record wrong: %+v", records[0])
	}

	all, err := s.ListRenderHistory("", 10)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	// 倒序：最新在前
	if all[0].Status != "rejected" {
		t.Fatalf("order wrong: %+v", all[0])
	}

	counts, err := s.CountRenders()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["ok"] != 1 || counts["rejected"] != 1 {
		t.Fatalf("counts wrong: %v", counts)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetConfig("plot_cmap", "viridis"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetConfig("plot_cmap", "magma"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	v, err := s.GetConfig("plot_cmap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "magma" {
		t.Fatalf("upsert did not overwrite: %q", v)
	}

	if _, err := s.GetConfig("missing"); err == nil {
		t.Fatalf("expected error for missing key")
	}

	all, err := s.GetAllConfig()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if all["plot_cmap"] != "magma" {
		t.Fatalf("all config wrong: %v", all)
	}
}

func TestPlotDefaults(t *testing.T) {
	s := newTestStore(t)

	fallback := PlotDefaults{DPI: 100, Cmap: "tab10", FigWidth: 12, FigHeight: 6}
	if got := s.GetPlotDefaults(fallback); got != fallback {
		t.Fatalf("empty store should return fallback, got %+v", got)
	}

	want := PlotDefaults{DPI: 150, Cmap: "viridis", FigWidth: 10, FigHeight: 5}
	if err := s.SetPlotDefaults(want); err != nil {
		t.Fatalf("set defaults: %v", err)
	}
	if got := s.GetPlotDefaults(fallback); got != want {
		t.Fatalf("defaults not persisted: %+v", got)
	}
}
