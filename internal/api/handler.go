package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"mediafetch/internal/fetch"
	"mediafetch/internal/notify"
	"mediafetch/internal/selection"
	"mediafetch/internal/source"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Handler serves the HTTP API.
type Handler struct {
	svc      *Service
	notifier notify.Notifier
	log      *slog.Logger
	started  time.Time
}

// NewHandler builds the HTTP layer on top of svc. notifier may be nil to
// disable the contact endpoint.
func NewHandler(svc *Service, notifier notify.Notifier, log *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		notifier: notifier,
		log:      log,
		started:  time.Now(),
	}
}

// Routes mounts all API routes on r. downloadLimit, when non-nil, is applied
// to the endpoints that run the download pipeline.
func (h *Handler) Routes(r chi.Router, downloadLimit func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)
	r.Get("/status", h.Status)

	r.Route("/api", func(r chi.Router) {
		r.Post("/video-info", h.VideoInfo)
		r.Post("/smart-download-info", h.SmartDownloadInfo)
		r.Get("/system-info", h.SystemInfo)
		r.Post("/contact", h.Contact)

		r.Group(func(r chi.Router) {
			if downloadLimit != nil {
				r.Use(downloadLimit)
			}
			r.Post("/smart-download", h.SmartDownload)
			r.Post("/download", h.Download)
		})
	})
}

type infoRequest struct {
	URL string `json:"url"`
}

type smartRequest struct {
	URL              string `json:"url"`
	PreferSingleFile bool   `json:"prefer_single_file"`
}

type downloadRequest struct {
	URL      string `json:"url"`
	StreamID string `json:"stream_id"`
	Format   string `json:"format,omitempty"`
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type assetResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	DurationSeconds int64  `json:"duration_seconds"`
	ViewCount       int64  `json:"view_count,omitempty"`
}

type streamResponse struct {
	ID               string  `json:"id"`
	Kind             string  `json:"kind"`
	ResolutionLines  int     `json:"resolution_lines,omitempty"`
	FrameRate        int     `json:"frame_rate,omitempty"`
	VideoCodec       string  `json:"video_codec,omitempty"`
	AudioCodec       string  `json:"audio_codec,omitempty"`
	AudioBitrateKbps int     `json:"audio_bitrate_kbps,omitempty"`
	SizeMB           float64 `json:"size_mb"`
	ContainerFormat  string  `json:"container_format,omitempty"`
}

type planResponse struct {
	Strategy        string  `json:"strategy"`
	QualityLabel    string  `json:"quality_label"`
	EstimatedSizeMB float64 `json:"estimated_size_mb"`
	MergeRequired   bool    `json:"merge_required"`
	PrimaryStream   string  `json:"primary_stream"`
	SecondaryStream string  `json:"secondary_stream,omitempty"`
}

// VideoInfo resolves an asset reference and lists its metadata and streams.
func (h *Handler) VideoInfo(w http.ResponseWriter, r *http.Request) {
	var req infoRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_reference", "url is required", false)
		return
	}

	asset, streams, err := h.svc.VideoInfo(r.Context(), req.URL)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	out := make([]streamResponse, 0, len(streams))
	for _, s := range streams {
		out = append(out, toStreamResponse(s))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"asset":   toAssetResponse(asset),
		"streams": out,
	})
}

// SmartDownloadInfo previews the plan a smart download would execute.
func (h *Handler) SmartDownloadInfo(w http.ResponseWriter, r *http.Request) {
	var req smartRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_reference", "url is required", false)
		return
	}

	asset, plan, err := h.svc.SmartPlan(r.Context(), req.URL, req.PreferSingleFile)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	info := h.svc.SystemInfo()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"asset":          toAssetResponse(asset),
		"plan":           toPlanResponse(plan),
		"tool_available": info.ToolAvailable,
	})
}

// SmartDownload runs the full pipeline and streams the finished artifact.
func (h *Handler) SmartDownload(w http.ResponseWriter, r *http.Request) {
	var req smartRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_reference", "url is required", false)
		return
	}

	artifact, _, _, err := h.svc.SmartDownload(r.Context(), req.URL, req.PreferSingleFile)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.serveArtifact(w, r, artifact)
}

// Download fetches one explicitly chosen stream, optionally transcoding it
// to an audio format.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.URL == "" || req.StreamID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_reference", "url and stream_id are required", false)
		return
	}

	artifact, _, err := h.svc.ManualDownload(r.Context(), req.URL, req.StreamID, req.Format)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.serveArtifact(w, r, artifact)
}

// SystemInfo reports merge-tool diagnostics and cache statistics.
func (h *Handler) SystemInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.SystemInfo())
}

// Status reports service liveness details alongside cache counters.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	stats := h.svc.CacheStats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"cache":          stats,
	})
}

// Health is a bare liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Contact forwards a user message to the configured notifier.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		h.writeError(w, http.StatusNotImplemented, "not_configured", "contact endpoint is not configured", false)
		return
	}

	var req contactRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Body == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_reference", "email and body are required", false)
		return
	}

	msg := notify.Message{Name: req.Name, Email: req.Email, Subject: req.Subject, Body: req.Body}
	if err := h.notifier.Send(r.Context(), msg); err != nil {
		h.log.Error("contact notification failed", slog.String("error", err.Error()))
		h.writeError(w, http.StatusBadGateway, "notify_failed", "could not deliver message", true)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// serveArtifact streams the artifact as an attachment and removes it after
// the response completes.
func (h *Handler) serveArtifact(w http.ResponseWriter, r *http.Request, artifact string) {
	f, err := os.Open(artifact)
	if err != nil {
		h.log.Error("opening artifact failed", slog.String("path", artifact), slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "artifact_unavailable", "artifact could not be read", true)
		return
	}
	defer f.Close()
	defer func() {
		if err := os.Remove(artifact); err != nil {
			h.log.Warn("removing served artifact failed", slog.String("path", artifact), slog.String("error", err.Error()))
		}
	}()

	name := filepath.Base(artifact)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if fi, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", fi.Size()))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.log.Warn("streaming artifact interrupted", slog.String("path", artifact), slog.String("error", err.Error()))
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON", false)
		return false
	}
	return true
}

// serviceError maps service-level failures to HTTP responses.
func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	var pe *fetch.PipelineError
	switch {
	case errors.Is(err, source.ErrInvalidReference):
		h.writeError(w, http.StatusBadRequest, "invalid_reference", err.Error(), false)
	case errors.Is(err, source.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error(), false)
	case errors.Is(err, ErrStreamNotFound), errors.Is(err, ErrNoViableStreams):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error(), false)
	case errors.Is(err, source.ErrUnavailable):
		h.writeError(w, http.StatusBadGateway, "source_unavailable", err.Error(), true)
	case errors.As(err, &pe):
		h.pipelineError(w, pe)
	default:
		h.log.Error("unhandled service error", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "internal", "internal error", false)
	}
}

func (h *Handler) pipelineError(w http.ResponseWriter, pe *fetch.PipelineError) {
	status := http.StatusInternalServerError
	switch pe.Code {
	case fetch.CodeToolUnavailable:
		status = http.StatusServiceUnavailable
	case fetch.CodeAcquisitionFailed, fetch.CodeMergeFailed:
		status = http.StatusBadGateway
	case fetch.CodeUnknownStrategy:
		status = http.StatusInternalServerError
	}
	h.writeError(w, status, string(pe.Code), pe.Message, pe.Transient())
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, transient bool) {
	h.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":      code,
			"message":   message,
			"transient": transient,
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("encoding response failed", slog.String("error", err.Error()))
	}
}

func toAssetResponse(a source.AssetInfo) assetResponse {
	return assetResponse{
		ID:              a.ID,
		Title:           a.Title,
		Author:          a.Author,
		ThumbnailURL:    a.ThumbnailURL,
		DurationSeconds: a.DurationSeconds,
		ViewCount:       a.ViewCount,
	}
}

func toStreamResponse(s selection.StreamDescriptor) streamResponse {
	return streamResponse{
		ID:               s.ID,
		Kind:             string(s.Kind),
		ResolutionLines:  s.ResolutionLines,
		FrameRate:        s.FrameRate,
		VideoCodec:       s.VideoCodec,
		AudioCodec:       s.AudioCodec,
		AudioBitrateKbps: s.AudioBitrateKbps,
		SizeMB:           s.SizeMegabytes(),
		ContainerFormat:  s.ContainerFormat,
	}
}

func toPlanResponse(p selection.SelectionPlan) planResponse {
	out := planResponse{
		Strategy:        string(p.Strategy),
		QualityLabel:    p.QualityLabel,
		EstimatedSizeMB: p.EstimatedSizeMB,
		MergeRequired:   p.MergeRequired,
		PrimaryStream:   p.Primary.ID,
	}
	if p.Secondary != nil {
		out.SecondaryStream = p.Secondary.ID
	}
	return out
}
