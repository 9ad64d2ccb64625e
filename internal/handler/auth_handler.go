package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"identity-service/internal/model"
	"identity-service/internal/provider"
	"identity-service/internal/service"
	"identity-service/pkg/apierror"
)

// The refresh token is delivered only in this cookie: httpOnly keeps it
// away from client-side scripts, and the access token travels in the
// response body instead.
const (
	refreshCookieName = "refreshtoken"
	stateCookieName   = "oauthstate"
	stateCookieTTL    = 10 * time.Minute
)

type AuthHandler struct {
	service      *service.AuthService
	providers    *provider.Registry
	accessTTL    time.Duration
	secureCookie bool
}

func NewAuthHandler(svc *service.AuthService, providers *provider.Registry, accessTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: svc, providers: providers, accessTTL: accessTTL, secureCookie: secureCookie}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email == "" || payload.Password == "" {
		writeError(w, apierror.New("BAD_REQUEST", "email and password are required", "", http.StatusBadRequest))
		return
	}
	if payload.Password != payload.PasswordRepeat {
		writeError(w, apierror.New("BAD_REQUEST", "passwords do not match", "password_repeat", http.StatusBadRequest))
		return
	}

	user, err := h.service.Register(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, model.NewUserResponse(user))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	tokens, err := h.service.Login(r.Context(), payload.Email, payload.Password, r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	h.writeTokens(w, tokens)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := refreshTokenFromCookie(r)
	if presented == "" {
		writeError(w, model.ErrUnauthorized)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), presented, r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	h.writeTokens(w, tokens)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	presented := refreshTokenFromCookie(r)
	if presented != "" {
		if err := h.service.Logout(r.Context(), presented); err != nil {
			writeError(w, err)
			return
		}
	}

	h.clearRefreshCookie(w)
	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true})
}

// ProviderRedirect starts the authorization-code flow: the state token is
// pinned in a short-lived cookie and echoed back by the callback.
func (h *AuthHandler) ProviderRedirect(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Get(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := provider.StateToken()
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
		Expires:  time.Now().Add(stateCookieTTL),
	})

	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// ProviderCallback finishes the flow: code -> provider access token ->
// introspected email -> local session.
func (h *AuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Get(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, err)
		return
	}

	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || state == "" || stateCookie.Value != state {
		writeError(w, apierror.New("BAD_REQUEST", "oauth state mismatch", "", http.StatusBadRequest))
		return
	}

	// The state value is single-use: expire the cookie as soon as it has
	// been matched so the callback cannot be replayed within its TTL.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apierror.New("BAD_REQUEST", "authorization code is required", "code", http.StatusBadRequest))
		return
	}

	providerToken, err := p.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	email, err := p.ResolveEmail(r.Context(), providerToken)
	if err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.service.ProviderAuth(r.Context(), email, r.UserAgent(), p.Name())
	if err != nil {
		writeError(w, err)
		return
	}

	h.writeTokens(w, tokens)
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, tokens model.Tokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    tokens.RefreshToken.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
		Expires:  tokens.RefreshToken.ExpiresAt,
	})

	writeSuccess(w, http.StatusCreated, model.AccessTokenResponse{
		AccessToken: tokens.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.accessTTL.Seconds()),
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func refreshTokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
