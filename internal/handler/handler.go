package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"fabricviz/internal/codec"
	"fabricviz/internal/domain"
	"fabricviz/internal/ingest"
)

const (
	maxSnapshotBytes     = 8 << 20
	defaultTelemetryRows = 50
	maxTelemetryRows     = 1000
)

// FrameSource provides the most recently published frame
type FrameSource interface {
	Frame() *domain.Frame
}

// Submitter queues snapshots for reconciliation
type Submitter interface {
	Submit(ctx context.Context, snap domain.Snapshot) error
}

// TelemetryReader reads stored metrics samples
type TelemetryReader interface {
	Recent(ctx context.Context, limit int) ([]domain.Sample, error)
}

// SourceLister reports the state of the ingest sources
type SourceLister interface {
	List() []ingest.SourceInfo
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TopologyHandler serves the topology API
type TopologyHandler struct {
	frames    FrameSource
	submitter Submitter
	telemetry TelemetryReader
	sources   SourceLister
	logger    *log.Logger
}

// NewTopologyHandler creates a handler. submitter and telemetry may be nil,
// which disables the corresponding routes.
func NewTopologyHandler(frames FrameSource, submitter Submitter, telemetry TelemetryReader, logger *log.Logger) *TopologyHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &TopologyHandler{
		frames:    frames,
		submitter: submitter,
		telemetry: telemetry,
		logger:    logger,
	}
}

// GetTopology returns the current frame
func (h *TopologyHandler) GetTopology(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.frames.Frame(), http.StatusOK)
}

// ExportDOT returns the current frame as Graphviz DOT
func (h *TopologyHandler) ExportDOT(w http.ResponseWriter, r *http.Request) {
	h.export(w, "dot")
}

// ExportSVG returns the current frame rendered as SVG
func (h *TopologyHandler) ExportSVG(w http.ResponseWriter, r *http.Request) {
	h.export(w, "svg")
}

func (h *TopologyHandler) export(w http.ResponseWriter, format string) {
	exp, err := codec.ExporterFor(format)
	if err != nil {
		h.writeError(w, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := exp.Export(h.frames.Frame(), &buf); err != nil {
		h.logger.Error("failed to export frame", "format", format, "err", err)
		h.writeError(w, "Failed to export topology", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", exp.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// PostSnapshot decodes a snapshot and queues it
func (h *TopologyHandler) PostSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.submitter == nil {
		h.writeError(w, "Snapshot submission disabled", "", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		h.writeError(w, "Failed to read request body", err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	snap, err := codec.DecodeSnapshot(body)
	if err != nil {
		h.writeError(w, "Invalid snapshot", err.Error(), http.StatusBadRequest)
		return
	}
	if snap.Source == "" {
		snap.Source = "http"
	}

	if err := h.submitter.Submit(r.Context(), snap); err != nil {
		h.logger.Warn("failed to submit snapshot", "err", err)
		h.writeError(w, "Runtime unavailable", err.Error(), http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(w, map[string]string{"status": "accepted"}, http.StatusAccepted)
}

// GetTelemetry returns the most recent metrics samples
func (h *TopologyHandler) GetTelemetry(w http.ResponseWriter, r *http.Request) {
	if h.telemetry == nil {
		h.writeError(w, "Telemetry disabled", "", http.StatusNotFound)
		return
	}

	limit := defaultTelemetryRows
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, "Invalid limit", "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxTelemetryRows)
	}

	samples, err := h.telemetry.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read telemetry", "err", err)
		h.writeError(w, "Failed to read telemetry", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, samples, http.StatusOK)
}

// SetSources sets the lister behind GET /api/sources
func (h *TopologyHandler) SetSources(sources SourceLister) {
	h.sources = sources
}

// GetSources returns the ingest source states
func (h *TopologyHandler) GetSources(w http.ResponseWriter, r *http.Request) {
	infos := []ingest.SourceInfo{}
	if h.sources != nil {
		infos = h.sources.List()
	}
	h.writeJSON(w, infos, http.StatusOK)
}

// Healthz reports liveness
func (h *TopologyHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *TopologyHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "err", err)
	}
}

func (h *TopologyHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		h.logger.Error("failed to encode error response", "err", err)
	}
}
