package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/rag"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// KnowledgeHandler manages the knowledge base behind the support and
// qualification bots.
type KnowledgeHandler struct {
	store        *rag.MemoryStore
	snapshotPath string
	embedModel   string
	logger       *logging.Logger
}

func NewKnowledgeHandler(store *rag.MemoryStore, snapshotPath, embedModel string, logger *logging.Logger) *KnowledgeHandler {
	if store == nil {
		panic("handlers: rag store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &KnowledgeHandler{
		store:        store,
		snapshotPath: snapshotPath,
		embedModel:   embedModel,
		logger:       logger,
	}
}

// GetStats handles GET /admin/knowledge.
func (h *KnowledgeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"documents":     h.store.Len(),
		"snapshot_path": h.snapshotPath,
	})
}

// AddDocumentsRequest carries new knowledge chunks to embed and store.
type AddDocumentsRequest struct {
	Documents []string `json:"documents"`
}

// AddDocuments handles POST /admin/knowledge.
func (h *KnowledgeHandler) AddDocuments(w http.ResponseWriter, r *http.Request) {
	var req AddDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	docs := make([]string, 0, len(req.Documents))
	for _, d := range req.Documents {
		if d = strings.TrimSpace(d); d != "" {
			docs = append(docs, d)
		}
	}
	if len(docs) == 0 {
		jsonError(w, "documents are required", http.StatusBadRequest)
		return
	}

	if err := h.store.AddDocuments(r.Context(), docs); err != nil {
		h.logger.Error("failed to add documents", "error", err)
		jsonError(w, "embedding failed", http.StatusBadGateway)
		return
	}

	if h.snapshotPath != "" {
		if err := rag.SaveSnapshot(h.snapshotPath, h.embedModel, h.store.Documents()); err != nil {
			h.logger.Error("failed to persist snapshot", "path", h.snapshotPath, "error", err)
		}
	}

	h.logger.Info("knowledge documents added", "count", len(docs), "total", h.store.Len())
	writeJSON(w, http.StatusCreated, map[string]any{"added": len(docs), "documents": h.store.Len()})
}

// Search handles GET /admin/knowledge/search?q=...; useful for checking
// what the bots will actually retrieve.
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		jsonError(w, "q is required", http.StatusBadRequest)
		return
	}

	results, err := h.store.Retrieve(r.Context(), query, 5)
	if err != nil {
		h.logger.Error("knowledge search failed", "error", err)
		jsonError(w, "search failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": results})
}
