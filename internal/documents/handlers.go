package documents

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

func NewHandlers(store *Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, logger: logger, now: time.Now}
}

type LookupResponse struct {
	Found      bool   `json:"found"`
	PartNumber string `json:"partNumber,omitempty"`
	Filename   string `json:"filename,omitempty"`
	URL        string `json:"url,omitempty"`
	Message    string `json:"message,omitempty"`
}

type ListResponse struct {
	Documents []Document `json:"documents"`
	Count     int        `json:"count"`
}

// Lookup answers GET /api/documents/{part}.
func (h *Handlers) Lookup(w http.ResponseWriter, r *http.Request) {
	part := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(part); err == nil {
		part = decoded
	}

	filename, ok := h.store.Find(part)
	if !ok {
		h.logger.Info("document not found", "part", part)
		writeJSON(w, http.StatusNotFound, LookupResponse{Found: false, Message: "document not found"})
		return
	}

	h.logger.Info("document lookup", "part", part, "filename", filename)
	writeJSON(w, http.StatusOK, LookupResponse{
		Found:      true,
		PartNumber: part,
		Filename:   filename,
		URL:        "/documents/" + url.PathEscape(filename) + "?v=" + h.now().UTC().Format("20060102150405"),
	})
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Documents: docs, Count: len(docs)})
}

// Serve streams a PDF from GET /documents/{filename}.
func (h *Handlers) Serve(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimPrefix(chi.URLParam(r, "*"), "/")

	full, err := h.store.Path(filename)
	if err != nil {
		h.logger.Warn("invalid document access attempt", "filename", filename)
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, full)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
