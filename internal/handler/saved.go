package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/health-companion/internal/apperror"
	"github.com/sakif/health-companion/internal/auth"
	"github.com/sakif/health-companion/internal/validation"
)

// SavedItems is the slice of service.SavedService the handlers use.
type SavedItems interface {
	List(ctx context.Context, userID, kind string) ([]string, error)
	Save(ctx context.Context, userID, kind, itemID string) error
	Remove(ctx context.Context, userID, kind, itemID string) error
}

// SavedHandler serves /api/saved/{kind} for kind "tips" or "resources".
type SavedHandler struct {
	svc    SavedItems
	logger *slog.Logger
}

func NewSavedHandler(svc SavedItems, logger *slog.Logger) *SavedHandler {
	return &SavedHandler{svc: svc, logger: logger}
}

// SavedListResponse is the body of GET /api/saved/{kind}.
type SavedListResponse struct {
	IDs []string `json:"ids"`
}

// HandleList returns the caller's saved ids, oldest first.
//
// HTTP: GET /api/saved/{kind}
// RESPONSE: {"ids": ["t1", "t2"]}
func (h *SavedHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ids, err := h.svc.List(r.Context(), userID, chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SavedListResponse{IDs: ids})
}

// HandleSave records one item.
//
// HTTP: POST /api/saved/{kind}
// REQUEST BODY: {"itemId": "t1"}
//
// 201 on success; 409 with code "already_saved" when it was saved before.
func (h *SavedHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	v, ok := validatedValues(w, r)
	if !ok {
		return
	}

	kind, itemID := chi.URLParam(r, "kind"), v.String("itemId")
	if err := h.svc.Save(r.Context(), userID, kind, itemID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"itemId": itemID})
}

// HandleRemove deletes one item.
//
// HTTP: DELETE /api/saved/{kind}?itemId=t1
//
// The query value goes through SaveItemSchema, so it is sanitized exactly as
// the id stored by HandleSave was. 404 with code "not_found" when the item
// wasn't saved.
func (h *SavedHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	v, err := validation.Validate(SaveItemSchema, map[string]any{"itemId": r.URL.Query().Get("itemId")})
	if err != nil {
		writeError(w, err)
		return
	}

	itemID := v.String("itemId")
	if err := h.svc.Remove(r.Context(), userID, chi.URLParam(r, "kind"), itemID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "removed"})
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
	}
	return userID, ok
}
