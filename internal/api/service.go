// Package api exposes the download service over HTTP and glues the
// enumeration boundary, analysis cache, selection engine, and download
// pipeline together.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mediafetch/internal/cache"
	"mediafetch/internal/platform/metrics"
	"mediafetch/internal/selection"
	"mediafetch/internal/source"
)

// ErrNoViableStreams is returned when every selection fallback tier is
// exhausted: the asset exists but no usable stream combination does.
var ErrNoViableStreams = errors.New("no viable stream combination")

// ErrStreamNotFound is returned by the manual download path when the
// requested stream identifier does not exist for the asset.
var ErrStreamNotFound = errors.New("stream not found")

// Pipeline runs a selection plan to a finished artifact.
type Pipeline interface {
	Execute(ctx context.Context, plan selection.SelectionPlan, asset source.AssetInfo) (string, error)
}

// Tool reports merge-tool diagnostics for the system-info surface.
type Tool interface {
	Available() bool
	Version() string
}

// AudioConverter transcodes an artifact to an audio target format.
type AudioConverter interface {
	ConvertAudio(ctx context.Context, inputPath, outputPath, codec, bitrate string) error
}

// Service implements the application operations behind the HTTP handlers.
type Service struct {
	provider  source.Provider
	analyses  *cache.AnalysisCache
	engine    *selection.Engine
	pipeline  Pipeline
	tool      Tool
	converter AudioConverter
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewService wires a Service. metrics may be nil to disable metric recording
// (e.g. in tests); converter may be nil when audio conversion is not offered.
func NewService(
	provider source.Provider,
	analyses *cache.AnalysisCache,
	engine *selection.Engine,
	pipeline Pipeline,
	tool Tool,
	converter AudioConverter,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	return &Service{
		provider:  provider,
		analyses:  analyses,
		engine:    engine,
		pipeline:  pipeline,
		tool:      tool,
		converter: converter,
		metrics:   m,
		log:       log,
	}
}

// VideoInfo resolves an asset reference and returns its metadata and stream
// table, populating the analysis cache as a side effect.
func (s *Service) VideoInfo(ctx context.Context, ref string) (source.AssetInfo, []selection.StreamDescriptor, error) {
	bundle, streams, err := s.analyzedBundle(ctx, ref)
	if err != nil {
		return source.AssetInfo{}, nil, err
	}
	return bundle.Asset, streams, nil
}

// SmartPlan returns the best acquisition plan for the asset, memoized per
// asset identity. A cached plan is served without touching the enumeration
// service.
func (s *Service) SmartPlan(ctx context.Context, ref string, preferSingleFile bool) (source.AssetInfo, selection.SelectionPlan, error) {
	assetID, err := source.AssetID(ref)
	if err != nil {
		return source.AssetInfo{}, selection.SelectionPlan{}, err
	}

	if bundle, ok := s.analyses.Get(assetID); ok && bundle.Plan != nil {
		s.log.Debug("selection served from cache", slog.String("asset", assetID))
		if s.metrics != nil {
			s.metrics.IncCacheHits()
		}
		return bundle.Asset, *bundle.Plan, nil
	}

	bundle, _, err := s.analyzedBundle(ctx, ref)
	if err != nil {
		return source.AssetInfo{}, selection.SelectionPlan{}, err
	}

	plan, ok := s.engine.Select(bundle.Analysis, preferSingleFile)
	if !ok {
		return bundle.Asset, selection.SelectionPlan{}, fmt.Errorf("%w for asset %s", ErrNoViableStreams, assetID)
	}

	s.analyses.SetPlan(assetID, plan)
	if s.metrics != nil {
		s.metrics.IncSelections(string(plan.Strategy))
	}
	return bundle.Asset, plan, nil
}

// SmartDownload runs the full pipeline for the asset's best plan and returns
// the artifact path together with the plan that produced it.
func (s *Service) SmartDownload(ctx context.Context, ref string, preferSingleFile bool) (string, source.AssetInfo, selection.SelectionPlan, error) {
	asset, plan, err := s.SmartPlan(ctx, ref, preferSingleFile)
	if err != nil {
		return "", source.AssetInfo{}, selection.SelectionPlan{}, err
	}

	artifact, err := s.pipeline.Execute(ctx, plan, asset)
	if err != nil {
		return "", source.AssetInfo{}, selection.SelectionPlan{}, err
	}

	if s.metrics != nil {
		s.metrics.IncDownloads()
		if plan.MergeRequired {
			s.metrics.IncMerges()
		}
	}
	return artifact, asset, plan, nil
}

// ManualDownload fetches one explicitly chosen stream. When targetFormat
// names an audio format ("mp3" or "aac") and a converter is configured, the
// artifact is transcoded before being returned.
func (s *Service) ManualDownload(ctx context.Context, ref, streamID, targetFormat string) (string, source.AssetInfo, error) {
	bundle, streams, err := s.analyzedBundle(ctx, ref)
	if err != nil {
		return "", source.AssetInfo{}, err
	}

	var stream *selection.StreamDescriptor
	for i := range streams {
		if streams[i].ID == streamID {
			stream = &streams[i]
			break
		}
	}
	if stream == nil {
		return "", source.AssetInfo{}, fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	}

	plan := selection.SelectionPlan{
		Strategy:        selection.StrategySingleFile,
		Primary:         *stream,
		EstimatedSizeMB: stream.SizeMegabytes(),
		QualityLabel:    "manual selection",
	}

	artifact, err := s.pipeline.Execute(ctx, plan, bundle.Asset)
	if err != nil {
		return "", source.AssetInfo{}, err
	}
	if s.metrics != nil {
		s.metrics.IncDownloads()
	}

	format := strings.ToLower(strings.TrimSpace(targetFormat))
	if (format == "mp3" || format == "aac") && s.converter != nil {
		converted, err := s.convertArtifact(ctx, artifact, format)
		if err != nil {
			return "", source.AssetInfo{}, err
		}
		artifact = converted
	}

	return artifact, bundle.Asset, nil
}

// SystemInfo describes the merge tool and cache state for diagnostics.
type SystemInfo struct {
	ToolAvailable bool        `json:"tool_available"`
	ToolVersion   string      `json:"tool_version,omitempty"`
	MergeSupport  bool        `json:"merge_support"`
	AudioConvert  bool        `json:"audio_convert"`
	CacheStats    cache.Stats `json:"cache_stats"`
}

// SystemInfo reports tool availability, version, and cache statistics.
func (s *Service) SystemInfo() SystemInfo {
	available := s.tool.Available()
	info := SystemInfo{
		ToolAvailable: available,
		MergeSupport:  available,
		AudioConvert:  available && s.converter != nil,
		CacheStats:    s.analyses.Stats(),
	}
	if available {
		info.ToolVersion = s.tool.Version()
	}
	return info
}

// CacheStats exposes the analysis cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.analyses.Stats()
}

// CacheLen reports the number of cached analyses, for the metrics gauge.
func (s *Service) CacheLen() int {
	return s.analyses.Len()
}

// SweepCache removes expired analyses and returns how many were dropped.
func (s *Service) SweepCache() int {
	return s.analyses.SweepExpired()
}

// analyzedBundle returns the cached analysis bundle for ref, resolving and
// analyzing the asset on a miss. The raw stream table is returned alongside
// for surfaces that list streams. A cache-side failure never fails the
// operation; the service just recomputes.
func (s *Service) analyzedBundle(ctx context.Context, ref string) (cache.AnalysisBundle, []selection.StreamDescriptor, error) {
	assetID, err := source.AssetID(ref)
	if err != nil {
		return cache.AnalysisBundle{}, nil, err
	}

	if bundle, ok := s.analyses.Get(assetID); ok {
		if s.metrics != nil {
			s.metrics.IncCacheHits()
		}
		return bundle, rawStreams(bundle.Analysis), nil
	}

	asset, streams, err := s.provider.Resolve(ctx, ref)
	if err != nil {
		return cache.AnalysisBundle{}, nil, err
	}

	bundle := cache.AnalysisBundle{
		Asset:    asset,
		Analysis: selection.Analyze(streams),
	}
	s.analyses.Set(assetID, bundle)

	s.log.Debug("asset analyzed",
		slog.String("asset", assetID),
		slog.Int("single_file", len(bundle.Analysis.SingleFile)),
		slog.Int("video_only", len(bundle.Analysis.VideoOnly)),
		slog.Int("audio_only", len(bundle.Analysis.AudioOnly)))

	return bundle, streams, nil
}

// convertArtifact transcodes artifact to the requested audio format. The
// original is removed either way: replaced by the converted file on success,
// deleted on failure so nothing unreferenced lingers in the output directory.
func (s *Service) convertArtifact(ctx context.Context, artifact, format string) (string, error) {
	converted := strings.TrimSuffix(artifact, filepath.Ext(artifact)) + "." + format

	bitrate := "192k"
	if err := s.converter.ConvertAudio(ctx, artifact, converted, format, bitrate); err != nil {
		// Nothing references the un-converted artifact after a failure here,
		// so it must not linger in the output directory.
		if rmErr := os.Remove(artifact); rmErr != nil {
			s.log.Warn("removing artifact after failed conversion", slog.String("path", artifact), slog.String("error", rmErr.Error()))
		}
		return "", err
	}
	if err := os.Remove(artifact); err != nil {
		s.log.Warn("removing pre-conversion artifact failed", slog.String("path", artifact), slog.String("error", err.Error()))
	}
	return converted, nil
}

func rawStreams(a selection.Analysis) []selection.StreamDescriptor {
	out := make([]selection.StreamDescriptor, 0, len(a.SingleFile)+len(a.VideoOnly)+len(a.AudioOnly))
	for _, s := range a.SingleFile {
		out = append(out, s.Stream)
	}
	for _, s := range a.VideoOnly {
		out = append(out, s.Stream)
	}
	for _, s := range a.AudioOnly {
		out = append(out, s.Stream)
	}
	return out
}
