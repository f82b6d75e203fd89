package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veridoc/veridoc/internal/audit"
	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/engine"
	"github.com/veridoc/veridoc/internal/report"
)

func newTestServer(t *testing.T) (*httptest.Server, *audit.Memory) {
	t.Helper()
	store := audit.NewMemory()
	e := engine.New(config.Default(), store)
	ts := httptest.NewServer(New(e, store).Routes())
	t.Cleanup(ts.Close)
	return ts, store
}

func analyzeBody(t *testing.T, text string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("file_name", "invoice.txt"); err != nil {
		t.Fatalf("WriteField() error: %v", err)
	}
	if err := mw.WriteField("document_type", "invoice"); err != nil {
		t.Fatalf("WriteField() error: %v", err)
	}
	if err := mw.WriteField("text", text); err != nil {
		t.Fatalf("WriteField() error: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func invoiceText() string {
	var b strings.Builder
	b.WriteString("Invoice Summary\nDate: 2026-08-01\nDescription: services\nAmount: 1250.00\nTotal Amount Due\n")
	for i := 0; i < 30; i++ {
		b.WriteString("The services were performed as agreed between the parties. ")
	}
	return b.String()
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["version"] == "" {
		t.Fatalf("body = %v", body)
	}
}

func TestAnalyzeAndRetrieve(t *testing.T) {
	ts, _ := newTestServer(t)

	buf, ctype := analyzeBody(t, invoiceText())
	resp, err := http.Post(ts.URL+"/api/v1/analyze", ctype, buf)
	if err != nil {
		t.Fatalf("POST /analyze error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var rep report.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.DocumentID == "" {
		t.Fatal("report has no document id")
	}
	if rep.Risk.RiskLevel == "" {
		t.Fatal("report has no risk level")
	}

	get, err := http.Get(ts.URL + "/api/v1/reports/" + rep.DocumentID)
	if err != nil {
		t.Fatalf("GET report error: %v", err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", get.StatusCode)
	}
	var got report.Report
	if err := json.NewDecoder(get.Body).Decode(&got); err != nil {
		t.Fatalf("decode stored report: %v", err)
	}
	if got.Risk.OverallScore != rep.Risk.OverallScore {
		t.Fatalf("stored score %v != analyzed %v", got.Risk.OverallScore, rep.Risk.OverallScore)
	}

	md, err := http.Get(ts.URL + "/api/v1/reports/" + rep.DocumentID + "/markdown")
	if err != nil {
		t.Fatalf("GET markdown error: %v", err)
	}
	defer md.Body.Close()
	if md.StatusCode != http.StatusOK {
		t.Fatalf("markdown status = %d, want 200", md.StatusCode)
	}
	if ct := md.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("markdown content type = %q", ct)
	}

	tr, err := http.Get(ts.URL + "/api/v1/reports/" + rep.DocumentID + "/audit")
	if err != nil {
		t.Fatalf("GET audit error: %v", err)
	}
	defer tr.Body.Close()
	var trail struct {
		DocumentID string        `json:"document_id"`
		Entries    []audit.Entry `json:"entries"`
	}
	if err := json.NewDecoder(tr.Body).Decode(&trail); err != nil {
		t.Fatalf("decode audit trail: %v", err)
	}
	if len(trail.Entries) != 1 || trail.Entries[0].Event != audit.EventAnalysisCompleted {
		t.Fatalf("audit trail = %+v, want one ANALYSIS_COMPLETED entry", trail)
	}
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	ts, _ := newTestServer(t)

	buf, ctype := analyzeBody(t, "")
	resp, err := http.Post(ts.URL+"/api/v1/analyze", ctype, buf)
	if err != nil {
		t.Fatalf("POST /analyze error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetReportNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/reports/nope")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListReportsFiltered(t *testing.T) {
	ts, _ := newTestServer(t)

	buf, ctype := analyzeBody(t, invoiceText())
	resp, err := http.Post(ts.URL+"/api/v1/analyze", ctype, buf)
	if err != nil {
		t.Fatalf("POST /analyze error: %v", err)
	}
	resp.Body.Close()

	list, err := http.Get(ts.URL + "/api/v1/reports?limit=10")
	if err != nil {
		t.Fatalf("GET /reports error: %v", err)
	}
	defer list.Body.Close()
	var reports []report.Report
	if err := json.NewDecoder(list.Body).Decode(&reports); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}

	none, err := http.Get(ts.URL + "/api/v1/reports?level=CRITICAL&min_score=99")
	if err != nil {
		t.Fatalf("GET /reports error: %v", err)
	}
	defer none.Body.Close()
	var empty []report.Report
	if err := json.NewDecoder(none.Body).Decode(&empty); err != nil {
		t.Fatalf("decode empty list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("filtered reports = %d, want 0", len(empty))
	}

	bad, err := http.Get(ts.URL + "/api/v1/reports?min_score=abc")
	if err != nil {
		t.Fatalf("GET /reports error: %v", err)
	}
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", bad.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
