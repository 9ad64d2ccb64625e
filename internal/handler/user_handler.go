package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"identity-service/internal/middleware"
	"identity-service/internal/model"
	"identity-service/internal/service"
	"identity-service/pkg/apierror"
)

type UserHandler struct {
	directory *service.Directory
	sessions  *service.RefreshTokenStore
}

func NewUserHandler(directory *service.Directory, sessions *service.RefreshTokenStore) *UserHandler {
	return &UserHandler{directory: directory, sessions: sessions}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, claims)
}

func (h *UserHandler) Find(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "idOrEmail")
	if key == "" {
		writeError(w, apierror.New("BAD_REQUEST", "id or email is required", "", http.StatusBadRequest))
		return
	}

	user, err := h.directory.FindByIDOrEmail(r.Context(), key, false)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.NewUserResponse(user))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	id, err := h.directory.Delete(r.Context(), chi.URLParam(r, "id"), claims)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.sessions.RevokeAllForUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"id": id})
}

// Block toggles the blocked flag on an account. Admin only; a blocked user
// fails every subsequent login and refresh.
func (h *UserHandler) Block(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	target, err := h.directory.FindByIDOrEmail(r.Context(), chi.URLParam(r, "id"), true)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.directory.Upsert(r.Context(), model.UserUpsert{
		Email:     target.Email,
		IsBlocked: &payload.Blocked,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// Blocking also drops every live session, across devices.
	if payload.Blocked {
		if err := h.sessions.RevokeAllForUser(r.Context(), user.ID); err != nil {
			writeError(w, err)
			return
		}
	}

	writeSuccess(w, http.StatusOK, model.NewUserResponse(user))
}
