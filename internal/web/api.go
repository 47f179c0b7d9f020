package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rankboard/internal/mutate"
	"rankboard/internal/store"
)

const maxBody = 1 << 20

// Error codes carried in JSON error bodies.
const (
	CodeConflict = "conflict"
	CodeInvalid  = "invalid"
	CodeNotFound = "not_found"
	CodeInternal = "internal"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ReorderBody is the request body of the option reorder route.
type ReorderBody struct {
	Order []string `json:"order"`
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, ErrorBody{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	var (
		conflict *store.ConflictError
		notFound mutate.NotFoundError
	)
	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict, CodeConflict
	case errors.As(err, &notFound), errors.Is(err, store.ErrNoBoard):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, mutate.ErrInvalidOption), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, CodeInvalid
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.backend.Board(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	items, err := s.backend.ListObjects(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	it, err := s.backend.GetObject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req mutate.MoveRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if req.ItemID != "" && req.ItemID != id {
		s.writeError(w, fmt.Errorf("%w: body item %q does not match path %q", errBadRequest, req.ItemID, id))
		return
	}
	req.ItemID = id
	if err := s.backend.MoveObject(r.Context(), req); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd mutate.ObjectUpdate
	if err := decode(w, r, &upd); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.backend.UpdateObject(r.Context(), chi.URLParam(r, "id"), upd); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReorderOptions(w http.ResponseWriter, r *http.Request) {
	var body ReorderBody
	if err := decode(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	classID := chi.URLParam(r, "class")
	if classID == "-" {
		classID = ""
	}
	if err := s.backend.ReorderOptions(r.Context(), classID, chi.URLParam(r, "field"), body.Order); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
