package v1

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"qepweb/internal/session"
	"qepweb/internal/store"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "qepweb.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	plotsDir := filepath.Join(dir, "plots")
	toolsDir := filepath.Join(dir, "tools")
	for _, d := range []string{plotsDir, toolsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	sessions := session.NewManager(filepath.Join(dir, "sessions"))
	t.Cleanup(sessions.CleanupAll)

	h := NewHandler(st, sessions, plotsDir, toolsDir, 8)
	router := gin.New()
	h.RegisterRoutes(router.Group("/api"))
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func createSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	id, _ := decode(t, w)["sessionId"].(string)
	if id == "" {
		t.Fatalf("no session id in response")
	}
	return id
}

func upload(t *testing.T, router *gin.Engine, sessionID, slot, filename, content string) []string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("slot", slot)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload %s: %d %s", slot, w.Code, w.Body.String())
	}

	var paths []string
	for _, p := range decode(t, w)["paths"].([]interface{}) {
		paths = append(paths, p.(string))
	}
	return paths
}

const (
	bandFixture  = "0.0 -1.0\n0.5 -1.5\n1.0 -2.0\n\n0.0 1.0\n0.5 1.5\n1.0 2.0\n"
	kpathFixture = "G 0.0\nM 0.5\nK 1.0\n"
)

func TestSessionLifecycle(t *testing.T) {
	router := newTestRouter(t)

	id := createSession(t, router)

	w := doJSON(t, router, http.MethodDelete, "/api/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/api/sessions/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete should 404, got %d", w.Code)
	}
}

func TestGetSchema(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/schema/fatbands", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("schema: %d", w.Code)
	}
	if got := decode(t, w)["plotType"]; got != "fatbands" {
		t.Fatalf("plot type wrong: %v", got)
	}

	w = doJSON(t, router, http.MethodGet, "/api/schema/spaghetti", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown plot type should 400, got %d", w.Code)
	}
}

func TestGeneratePlot_Band(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	band := upload(t, router, id, "band_file", "bands.gnu", bandFixture)[0]
	kpath := upload(t, router, id, "kpath_file", "kpath.in", kpathFixture)[0]

	w := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/plots", map[string]interface{}{
		"plotType": "band",
		"fields":   map[string]interface{}{"fermiLevel": 0.0},
		"staged":   map[string]interface{}{"bandFile": band, "kpathFile": kpath},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["generated"] != true {
		t.Fatalf("expected generated=true: %v", resp)
	}
	url, _ := resp["downloadUrl"].(string)
	if url == "" {
		t.Fatalf("no download url")
	}

	// 下载一次成功，令牌一次性
	dw := doJSON(t, router, http.MethodGet, url, nil)
	if dw.Code != http.StatusOK {
		t.Fatalf("download: %d", dw.Code)
	}
	if !bytes.HasPrefix(dw.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("download is not a PNG")
	}
	dw = doJSON(t, router, http.MethodGet, url, nil)
	if dw.Code != http.StatusNotFound {
		t.Fatalf("second download should 404, got %d", dw.Code)
	}
}

func TestGeneratePlot_MissingInput(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/plots", map[string]interface{}{
		"plotType": "band",
		"fields":   map[string]interface{}{},
		"staged":   map[string]interface{}{},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing input should 422, got %d %s", w.Code, w.Body.String())
	}
	if msg := decode(t, w)["error"]; msg != "Missing Band or K-Path file." {
		t.Fatalf("reason not verbatim: %v", msg)
	}
}

func TestGeneratePlot_UnknownType(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/plots", map[string]interface{}{
		"plotType": "spaghetti",
		"fields":   map[string]interface{}{},
		"staged":   map[string]interface{}{},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown type should 400, got %d", w.Code)
	}
}

func TestGeneratePlot_PathOutsideSession(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	outside := filepath.Join(t.TempDir(), "bands.gnu")
	if err := os.WriteFile(outside, []byte(bandFixture), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/plots", map[string]interface{}{
		"plotType": "band",
		"fields":   map[string]interface{}{},
		"staged":   map[string]interface{}{"bandFile": outside, "kpathFile": outside},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("escaped path should 400, got %d %s", w.Code, w.Body.String())
	}
}

func TestGeneratePlot_HistoryRecorded(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/plots", map[string]interface{}{
		"plotType": "band",
		"fields":   map[string]interface{}{},
		"staged":   map[string]interface{}{},
	})

	w := doJSON(t, router, http.MethodGet, "/api/plots/history?session="+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d", w.Code)
	}
	records, _ := decode(t, w)["records"].([]interface{})
	if len(records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(records))
	}
	rec := records[0].(map[string]interface{})
	if rec["status"] != "rejected" {
		t.Fatalf("rejected render not recorded: %v", rec)
	}
}

func TestDetectFermi(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "scf.out")
	fw.Write([]byte("...\n     the Fermi energy is    -2.1340 ev\n...\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/detect-fermi", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("detect: %d %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["found"] != true {
		t.Fatalf("expected found=true: %v", resp)
	}
	if v := resp["value"].(float64); v != -2.134 {
		t.Fatalf("value wrong: %v", v)
	}
}

func TestDetectFermi_NoMatch(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "scf.out")
	fw.Write([]byte("no energies here\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/detect-fermi", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("detect miss should still 200, got %d", w.Code)
	}
	if resp := decode(t, w); resp["found"] != false {
		t.Fatalf("expected found=false: %v", resp)
	}
}

func TestGapTool(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	band := upload(t, router, id, "band_file", "bands.gnu", bandFixture)[0]
	kpath := upload(t, router, id, "kpath_file", "kpath.in", kpathFixture)[0]

	w := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/tools/gap", map[string]interface{}{
		"bandFile":  band,
		"kpathFile": kpath,
		"fermi":     0.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("gap: %d %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["metallic"] != false {
		t.Fatalf("fixture is gapped: %v", resp)
	}
	if gap := resp["gap"].(float64); gap != 2.0 {
		t.Fatalf("gap wrong: %v", gap)
	}
}

func TestConvertTool(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	projOut := strings.Join([]string{
		"     state #   1: atom   1 (Mo ), wfc  4 (l=2 m= 1)",
		"",
		" k =   0.0000000000  0.0000000000  0.0000000000",
		"==== e(   1) =   -5.10000 eV ====",
		"     psi = 0.900*[#   1]+",
		"",
	}, "\n")
	path := upload(t, router, id, "proj_out", "proj.out", projOut)[0]

	w := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/tools/convert", map[string]interface{}{
		"path": path,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("convert: %d %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["fileCount"].(float64) != 1 {
		t.Fatalf("expected 1 channel file: %v", resp)
	}

	url, _ := resp["downloadUrl"].(string)
	if url == "" {
		t.Fatalf("no zip download url")
	}
	dw := doJSON(t, router, http.MethodGet, url, nil)
	if dw.Code != http.StatusOK {
		t.Fatalf("zip download: %d", dw.Code)
	}
	if !bytes.HasPrefix(dw.Body.Bytes(), []byte("PK")) {
		t.Fatalf("download is not a zip")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPatch, "/api/config", map[string]interface{}{"dpi": 150})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	resp := decode(t, w)
	if resp["dpi"].(float64) != 150 {
		t.Fatalf("dpi not persisted: %v", resp)
	}
	// 未修改的字段保持兜底默认
	if resp["cmap"] != "tab10" {
		t.Fatalf("cmap should keep default: %v", resp)
	}
	// raw 暴露持久化键值
	raw, _ := resp["raw"].(map[string]interface{})
	if raw["plot_dpi"] != "150" {
		t.Fatalf("raw config not exposed: %v", resp["raw"])
	}

	w = doJSON(t, router, http.MethodPatch, "/api/config", map[string]interface{}{"dpi": -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative dpi should 400, got %d", w.Code)
	}
}

func TestStatus(t *testing.T) {
	router := newTestRouter(t)
	createSession(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	resp := decode(t, w)
	if resp["activeSessions"].(float64) != 1 {
		t.Fatalf("active sessions wrong: %v", resp)
	}
	if len(resp["plotTypes"].([]interface{})) != 5 {
		t.Fatalf("plot types wrong: %v", resp["plotTypes"])
	}
}
