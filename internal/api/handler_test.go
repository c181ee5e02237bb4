package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"mediafetch/internal/cache"
	"mediafetch/internal/notify"
	"mediafetch/internal/selection"
	"mediafetch/internal/source"
)

func newTestServer(t *testing.T, provider *fakeProvider, pipeline *fakePipeline, notifier notify.Notifier) *httptest.Server {
	t.Helper()
	log := quietLogger()
	analyses := cache.NewAnalysisCache(5*time.Minute, 100)
	svc := NewService(provider, analyses, selection.NewEngine(log), pipeline, &fakeTool{available: true, version: "ffmpeg version 6.0"}, nil, nil, log)
	h := NewHandler(svc, notifier, log)

	r := chi.NewRouter()
	h.Routes(r, nil)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestHandler_VideoInfo_lists_streams(t *testing.T) {
	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Test Asset", DurationSeconds: 120},
		streams: testStreams(),
	}
	ts := newTestServer(t, provider, &fakePipeline{}, nil)

	resp := postJSON(t, ts.URL+"/api/video-info", `{"url":"abc123"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	asset := body["asset"].(map[string]any)
	if asset["title"] != "Test Asset" {
		t.Errorf("title = %v", asset["title"])
	}
	streams := body["streams"].([]any)
	if len(streams) != 3 {
		t.Fatalf("streams = %d, want 3", len(streams))
	}
	for _, raw := range streams {
		s := raw.(map[string]any)
		if s["id"] != "v1" {
			continue
		}
		if fr, ok := s["frame_rate"].(float64); !ok || fr != 30 {
			t.Errorf("frame_rate = %v, want 30", s["frame_rate"])
		}
	}
}

func TestHandler_VideoInfo_requires_url(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{}, &fakePipeline{}, nil)

	resp := postJSON(t, ts.URL+"/api/video-info", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	if errObj["code"] != "invalid_reference" {
		t.Errorf("code = %v", errObj["code"])
	}
}

func TestHandler_VideoInfo_not_found(t *testing.T) {
	provider := &fakeProvider{err: source.ErrNotFound}
	ts := newTestServer(t, provider, &fakePipeline{}, nil)

	resp := postJSON(t, ts.URL+"/api/video-info", `{"url":"missing"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHandler_VideoInfo_source_unavailable_is_transient(t *testing.T) {
	provider := &fakeProvider{err: source.ErrUnavailable}
	ts := newTestServer(t, provider, &fakePipeline{}, nil)

	resp := postJSON(t, ts.URL+"/api/video-info", `{"url":"abc123"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	if errObj["transient"] != true {
		t.Errorf("transient = %v, want true", errObj["transient"])
	}
}

func TestHandler_SmartDownloadInfo_returns_plan(t *testing.T) {
	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Test Asset"},
		streams: testStreams(),
	}
	ts := newTestServer(t, provider, &fakePipeline{}, nil)

	resp := postJSON(t, ts.URL+"/api/smart-download-info", `{"url":"abc123"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	plan := body["plan"].(map[string]any)
	if plan["strategy"] != "merge" {
		t.Errorf("strategy = %v, want merge", plan["strategy"])
	}
	if plan["merge_required"] != true {
		t.Errorf("merge_required = %v", plan["merge_required"])
	}
	if body["tool_available"] != true {
		t.Errorf("tool_available = %v", body["tool_available"])
	}
}

func TestHandler_SmartDownload_serves_and_removes_artifact(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "Test Asset_v1.webm")
	if err := os.WriteFile(artifact, []byte("merged media"), 0o644); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Test Asset"},
		streams: testStreams(),
	}
	ts := newTestServer(t, provider, &fakePipeline{artifact: artifact}, nil)

	resp := postJSON(t, ts.URL+"/api/smart-download", `{"url":"abc123"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	defer resp.Body.Close()

	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "Test Asset_v1.webm") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(data) != "merged media" {
		t.Errorf("body = %q", data)
	}

	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Errorf("artifact not removed after serving")
	}
}

func TestHandler_Download_unknown_stream(t *testing.T) {
	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Test Asset"},
		streams: testStreams(),
	}
	ts := newTestServer(t, provider, &fakePipeline{}, nil)

	resp := postJSON(t, ts.URL+"/api/download", `{"url":"abc123","stream_id":"nope"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHandler_SystemInfo(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{}, &fakePipeline{}, nil)

	resp, err := http.Get(ts.URL + "/api/system-info")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["tool_available"] != true {
		t.Errorf("tool_available = %v", body["tool_available"])
	}
	if body["tool_version"] != "ffmpeg version 6.0" {
		t.Errorf("tool_version = %v", body["tool_version"])
	}
}

func TestHandler_Health_and_Status(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{}, &fakePipeline{}, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if _, ok := body["cache"]; !ok {
		t.Errorf("status payload missing cache stats")
	}
}

type captureNotifier struct {
	last notify.Message
}

func (n *captureNotifier) Send(ctx context.Context, msg notify.Message) error {
	n.last = msg
	return nil
}

func TestHandler_Contact_forwards_message(t *testing.T) {
	notifier := &captureNotifier{}
	ts := newTestServer(t, &fakeProvider{}, &fakePipeline{}, notifier)

	resp := postJSON(t, ts.URL+"/api/contact", `{"name":"Ada","email":"ada@example.com","subject":"hi","body":"hello"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	resp.Body.Close()

	if notifier.last.Email != "ada@example.com" || notifier.last.Body != "hello" {
		t.Errorf("message = %+v", notifier.last)
	}
}

func TestHandler_Contact_requires_email_and_body(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{}, &fakePipeline{}, &captureNotifier{})

	resp := postJSON(t, ts.URL+"/api/contact", `{"name":"Ada"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHandler_rejects_malformed_json(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{}, &fakePipeline{}, nil)

	resp := postJSON(t, ts.URL+"/api/video-info", `{"url":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}
