package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediafetch/internal/cache"
	"mediafetch/internal/selection"
	"mediafetch/internal/source"
)

type fakeProvider struct {
	asset    source.AssetInfo
	streams  []selection.StreamDescriptor
	err      error
	resolves int
}

func (p *fakeProvider) Resolve(ctx context.Context, ref string) (source.AssetInfo, []selection.StreamDescriptor, error) {
	p.resolves++
	if p.err != nil {
		return source.AssetInfo{}, nil, p.err
	}
	return p.asset, p.streams, nil
}

func (p *fakeProvider) Fetch(ctx context.Context, stream selection.StreamDescriptor, destPath string) error {
	return os.WriteFile(destPath, []byte("payload"), 0o644)
}

type fakePipeline struct {
	artifact string
	err      error
	plans    []selection.SelectionPlan
}

func (p *fakePipeline) Execute(ctx context.Context, plan selection.SelectionPlan, asset source.AssetInfo) (string, error) {
	p.plans = append(p.plans, plan)
	if p.err != nil {
		return "", p.err
	}
	return p.artifact, nil
}

type fakeTool struct {
	available bool
	version   string
}

func (t *fakeTool) Available() bool { return t.available }
func (t *fakeTool) Version() string { return t.version }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStreams() []selection.StreamDescriptor {
	return []selection.StreamDescriptor{
		{ID: "p1", Kind: selection.KindSingleFile, ResolutionLines: 480, AudioBitrateKbps: 128, ByteSize: 40 << 20, ContainerFormat: "mp4"},
		{ID: "v1", Kind: selection.KindVideoOnly, ResolutionLines: 1080, FrameRate: 30, VideoCodec: "avc1", ByteSize: 120 << 20, ContainerFormat: "mp4"},
		{ID: "a1", Kind: selection.KindAudioOnly, AudioCodec: "opus", AudioBitrateKbps: 160, ByteSize: 8 << 20, ContainerFormat: "webm"},
	}
}

func newTestService(t *testing.T, provider *fakeProvider, pipeline *fakePipeline) *Service {
	t.Helper()
	log := quietLogger()
	analyses := cache.NewAnalysisCache(5*time.Minute, 100)
	return NewService(provider, analyses, selection.NewEngine(log), pipeline, &fakeTool{available: true, version: "ffmpeg version 6.0"}, nil, nil, log)
}

func TestService_VideoInfo_resolves_and_caches(t *testing.T) {
	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Test Asset"},
		streams: testStreams(),
	}
	svc := newTestService(t, provider, &fakePipeline{})

	asset, streams, err := svc.VideoInfo(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("VideoInfo: %v", err)
	}
	if asset.Title != "Test Asset" {
		t.Errorf("title = %q", asset.Title)
	}
	if len(streams) != 3 {
		t.Errorf("streams = %d, want 3", len(streams))
	}

	// Second call must be served from the analysis cache.
	if _, _, err := svc.VideoInfo(context.Background(), "abc123"); err != nil {
		t.Fatalf("cached VideoInfo: %v", err)
	}
	if provider.resolves != 1 {
		t.Errorf("resolves = %d, want 1", provider.resolves)
	}
}

func TestService_SmartPlan_memoizes_decision(t *testing.T) {
	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Test Asset"},
		streams: testStreams(),
	}
	svc := newTestService(t, provider, &fakePipeline{})

	_, plan, err := svc.SmartPlan(context.Background(), "abc123", false)
	if err != nil {
		t.Fatalf("SmartPlan: %v", err)
	}
	if plan.Strategy != selection.StrategyMerge {
		t.Errorf("strategy = %q, want merge", plan.Strategy)
	}

	_, again, err := svc.SmartPlan(context.Background(), "abc123", false)
	if err != nil {
		t.Fatalf("second SmartPlan: %v", err)
	}
	if provider.resolves != 1 {
		t.Errorf("resolves = %d, want 1", provider.resolves)
	}
	if again.QualityLabel != plan.QualityLabel {
		t.Errorf("cached plan label = %q, want %q", again.QualityLabel, plan.QualityLabel)
	}
}

func TestService_SmartPlan_no_viable_streams(t *testing.T) {
	provider := &fakeProvider{
		asset: source.AssetInfo{ID: "abc123", Title: "Silent"},
		streams: []selection.StreamDescriptor{
			{ID: "v1", Kind: selection.KindVideoOnly, ResolutionLines: 1080, ByteSize: 1 << 20},
		},
	}
	svc := newTestService(t, provider, &fakePipeline{})

	_, _, err := svc.SmartPlan(context.Background(), "abc123", false)
	if !errors.Is(err, ErrNoViableStreams) {
		t.Fatalf("err = %v, want ErrNoViableStreams", err)
	}
}

func TestService_SmartDownload_runs_pipeline(t *testing.T) {
	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Test Asset"},
		streams: testStreams(),
	}
	pipeline := &fakePipeline{artifact: "/tmp/out.webm"}
	svc := newTestService(t, provider, pipeline)

	artifact, _, plan, err := svc.SmartDownload(context.Background(), "abc123", false)
	if err != nil {
		t.Fatalf("SmartDownload: %v", err)
	}
	if artifact != "/tmp/out.webm" {
		t.Errorf("artifact = %q", artifact)
	}
	if len(pipeline.plans) != 1 || pipeline.plans[0].Strategy != plan.Strategy {
		t.Errorf("pipeline received %d plans", len(pipeline.plans))
	}
}

func TestService_ManualDownload_unknown_stream(t *testing.T) {
	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Test Asset"},
		streams: testStreams(),
	}
	svc := newTestService(t, provider, &fakePipeline{artifact: "/tmp/out.mp4"})

	_, _, err := svc.ManualDownload(context.Background(), "abc123", "nope", "")
	if !errors.Is(err, ErrStreamNotFound) {
		t.Fatalf("err = %v, want ErrStreamNotFound", err)
	}
}

func TestService_ManualDownload_builds_single_file_plan(t *testing.T) {
	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Test Asset"},
		streams: testStreams(),
	}
	pipeline := &fakePipeline{artifact: "/tmp/out.mp4"}
	svc := newTestService(t, provider, pipeline)

	artifact, _, err := svc.ManualDownload(context.Background(), "abc123", "p1", "")
	if err != nil {
		t.Fatalf("ManualDownload: %v", err)
	}
	if artifact != "/tmp/out.mp4" {
		t.Errorf("artifact = %q", artifact)
	}
	got := pipeline.plans[0]
	if got.Strategy != selection.StrategySingleFile || got.Primary.ID != "p1" || got.Secondary != nil {
		t.Errorf("plan = %+v", got)
	}
}

type fakeConverter struct {
	codec string
	err   error
}

func (c *fakeConverter) ConvertAudio(ctx context.Context, inputPath, outputPath, codec, bitrate string) error {
	c.codec = codec
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(outputPath, []byte("converted"), 0o644)
}

func TestService_ManualDownload_converts_audio(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "track.webm")
	if err := os.WriteFile(artifact, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Track"},
		streams: testStreams(),
	}
	log := quietLogger()
	analyses := cache.NewAnalysisCache(5*time.Minute, 100)
	converter := &fakeConverter{}
	svc := NewService(provider, analyses, selection.NewEngine(log), &fakePipeline{artifact: artifact}, &fakeTool{available: true}, converter, nil, log)

	got, _, err := svc.ManualDownload(context.Background(), "abc123", "a1", "mp3")
	if err != nil {
		t.Fatalf("ManualDownload: %v", err)
	}
	if filepath.Ext(got) != ".mp3" {
		t.Errorf("artifact = %q, want .mp3", got)
	}
	if converter.codec != "mp3" {
		t.Errorf("codec = %q", converter.codec)
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Errorf("pre-conversion artifact still present")
	}
}

func TestService_ManualDownload_failed_conversion_leaves_no_artifact(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "track.webm")
	if err := os.WriteFile(artifact, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{
		asset:   source.AssetInfo{ID: "abc123", Title: "Track"},
		streams: testStreams(),
	}
	log := quietLogger()
	analyses := cache.NewAnalysisCache(5*time.Minute, 100)
	converter := &fakeConverter{err: errors.New("encoder crashed")}
	svc := NewService(provider, analyses, selection.NewEngine(log), &fakePipeline{artifact: artifact}, &fakeTool{available: true}, converter, nil, log)

	if _, _, err := svc.ManualDownload(context.Background(), "abc123", "a1", "mp3"); err == nil {
		t.Fatal("expected conversion error")
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Errorf("un-converted artifact left in output directory")
	}
}

func TestService_SystemInfo_reports_tool(t *testing.T) {
	svc := newTestService(t, &fakeProvider{}, &fakePipeline{})

	info := svc.SystemInfo()
	if !info.ToolAvailable || !info.MergeSupport {
		t.Errorf("info = %+v", info)
	}
	if info.ToolVersion != "ffmpeg version 6.0" {
		t.Errorf("version = %q", info.ToolVersion)
	}
	if info.AudioConvert {
		t.Errorf("audio convert reported without converter")
	}
}
