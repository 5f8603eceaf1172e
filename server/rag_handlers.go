package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/EyalShechtman/open-ai-video-understanding/core"
	"github.com/EyalShechtman/open-ai-video-understanding/processors"
	"github.com/EyalShechtman/open-ai-video-understanding/storage"
)

// RAGHandlers exposes the orchestration engine over one multiplexed JSON
// endpoint plus listing, deletion and health routes.
type RAGHandlers struct {
	pipelines    *processors.Pipelines
	store        storage.VectorStore
	provisioner  *storage.Provisioner
	defaultIndex string
	backend      string
	startedAt    time.Time
	logger       *slog.Logger
}

func NewRAGHandlers(pipelines *processors.Pipelines, store storage.VectorStore, prov *storage.Provisioner, defaultIndex, backend string, logger *slog.Logger) *RAGHandlers {
	return &RAGHandlers{
		pipelines:    pipelines,
		store:        store,
		provisioner:  prov,
		defaultIndex: defaultIndex,
		backend:      backend,
		startedAt:    time.Now(),
		logger:       logger,
	}
}

// ragRequest is the multiplexed request body. The extraction collaborator
// posts frames under either "records" or "frames".
type ragRequest struct {
	Action        string       `json:"action"`
	IndexName     string       `json:"indexName"`
	VideoFile     string       `json:"videoFile"`
	VideoID       string       `json:"videoId"`
	SkipEnsure    bool         `json:"skipEnsure"`
	Records       []core.Frame `json:"records"`
	Frames        []core.Frame `json:"frames"`
	Summary       string       `json:"summary"`
	VideoFilename string       `json:"videoFilename"`
	Question      string       `json:"question"`
	TopK          int          `json:"topK"`
}

func (r *ragRequest) frames() []core.Frame {
	if len(r.Records) > 0 {
		return r.Records
	}
	return r.Frames
}

// RAGHandler serves /api/rag: POST multiplexed by action, GET for listings,
// DELETE for collection removal.
func (h *RAGHandlers) RAGHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	case http.MethodPost:
		h.handleAction(w, r)
	default:
		core.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *RAGHandlers) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	switch req.Action {
	case "ingest", "ingest_final":
		h.handleIngest(w, r, &req)
	case "query":
		h.handleQuery(w, r, &req)
	case "analyze":
		h.handleAnalyze(w, r, &req)
	case "overview":
		h.handleOverview(w, r, &req)
	default:
		core.WriteError(w, http.StatusBadRequest, "unknown action: "+req.Action)
	}
}

// resolveIndex picks the collection name: explicit indexName, else the
// video filename, else the configured default. Whatever the source, the
// name is sanitized before it reaches the store.
func (h *RAGHandlers) resolveIndex(req *ragRequest) string {
	raw := req.IndexName
	if raw == "" {
		raw = req.VideoFile
	}
	return core.SanitizeIndexName(raw, h.defaultIndex)
}

func (h *RAGHandlers) handleIngest(w http.ResponseWriter, r *http.Request, req *ragRequest) {
	if req.IndexName == "" && req.VideoFile == "" {
		core.WriteError(w, http.StatusBadRequest, "indexName or videoFile required")
		return
	}
	index := h.resolveIndex(req)
	namespace := core.NamespaceForVideo(req.VideoID)

	res, err := h.pipelines.Ingest(r.Context(), processors.IngestParams{
		Collection:    index,
		Namespace:     namespace,
		Frames:        req.frames(),
		Summary:       req.Summary,
		VideoID:       req.VideoID,
		VideoFilename: req.VideoFilename,
		SkipEnsure:    req.SkipEnsure,
	})
	if err != nil {
		h.writeFailure(w, "ingest", err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"upserted":  res.Upserted,
		"namespace": namespace,
		"index":     index,
		"warnings":  res.Warnings,
	})
}

func (h *RAGHandlers) handleQuery(w http.ResponseWriter, r *http.Request, req *ragRequest) {
	index := h.resolveIndex(req)
	matches, err := h.pipelines.Search(r.Context(), processors.SearchParams{
		Collection: index,
		Namespace:  core.NamespaceForVideo(req.VideoID),
		Question:   req.Question,
		TopK:       req.TopK,
		SkipEnsure: req.SkipEnsure,
	})
	if err != nil {
		h.writeFailure(w, "query", err)
		return
	}
	if matches == nil {
		matches = []core.Match{}
	}
	core.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"matches": matches,
		"index":   index,
	})
}

func (h *RAGHandlers) handleAnalyze(w http.ResponseWriter, r *http.Request, req *ragRequest) {
	index := h.resolveIndex(req)
	res, err := h.pipelines.Analyze(r.Context(), processors.AnalyzeParams{
		Collection: index,
		Namespace:  core.NamespaceForVideo(req.VideoID),
		Question:   req.Question,
		TopK:       req.TopK,
		SkipEnsure: req.SkipEnsure,
	})
	if err != nil {
		h.writeFailure(w, "analyze", err)
		return
	}
	citations := res.Citations
	if citations == nil {
		citations = []core.Match{}
	}
	core.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"answer":    res.Answer,
		"citations": citations,
		"index":     index,
		"warnings":  res.Warnings,
	})
}

func (h *RAGHandlers) handleOverview(w http.ResponseWriter, r *http.Request, req *ragRequest) {
	index := h.resolveIndex(req)
	namespace := core.NamespaceForVideo(req.VideoID)
	res, err := h.pipelines.Overview(r.Context(), processors.OverviewParams{
		Collection: index,
		Namespace:  namespace,
		TopK:       req.TopK,
		SkipEnsure: req.SkipEnsure,
	})
	if err != nil {
		h.writeFailure(w, "overview", err)
		return
	}
	frames := res.Frames
	if frames == nil {
		frames = []core.OverviewFrame{}
	}
	body := map[string]interface{}{
		"status":    "ok",
		"frames":    frames,
		"index":     index,
		"namespace": namespace,
		"warnings":  res.Warnings,
	}
	if res.Summary != "" {
		body["summary"] = res.Summary
	}
	core.WriteJSON(w, http.StatusOK, body)
}

func (h *RAGHandlers) handleList(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("list") {
	case "indexes":
		cols, err := h.store.ListCollections(r.Context())
		if err != nil {
			h.writeFailure(w, "list-indexes", err)
			return
		}
		if cols == nil {
			cols = []storage.CollectionInfo{}
		}
		core.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"indexes": cols,
		})
	case "namespaces":
		index := r.URL.Query().Get("indexName")
		if index == "" {
			core.WriteError(w, http.StatusBadRequest, "indexName required")
			return
		}
		index = core.SanitizeIndexName(index, h.defaultIndex)
		namespaces, err := h.store.ListNamespaces(r.Context(), index)
		if err != nil {
			h.writeFailure(w, "list-namespaces", err)
			return
		}
		if namespaces == nil {
			namespaces = []string{}
		}
		core.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"index":      index,
			"namespaces": namespaces,
		})
	default:
		core.WriteError(w, http.StatusBadRequest, "list must be one of: indexes, namespaces")
	}
}

func (h *RAGHandlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	index := r.URL.Query().Get("indexName")
	if index == "" {
		core.WriteError(w, http.StatusBadRequest, "indexName required")
		return
	}
	index = core.SanitizeIndexName(index, h.defaultIndex)
	if err := h.store.DeleteCollection(r.Context(), index); err != nil {
		h.writeFailure(w, "delete", err)
		return
	}
	// A deleted collection must not look provisioned to later callers.
	h.provisioner.Forget(index)
	core.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"index":  index,
	})
}

// HealthHandler reports liveness and which vector backend is wired in.
func (h *RAGHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"backend":        h.backend,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

func (h *RAGHandlers) writeFailure(w http.ResponseWriter, op string, err error) {
	h.logger.Error("request failed", "op", op, "error", err)

	var (
		validationErr *core.ValidationError
		provisionErr  *core.ProvisionError
		embeddingErr  *core.EmbeddingError
		storeErr      *core.StoreError
		generationErr *core.GenerationError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &provisionErr):
		status = http.StatusGatewayTimeout
	case errors.As(err, &embeddingErr), errors.As(err, &storeErr), errors.As(err, &generationErr):
		status = http.StatusBadGateway
	}
	core.WriteError(w, status, strings.TrimSpace(err.Error()))
}
