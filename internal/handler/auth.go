package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/taberna/internal/domain/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AcceptTerms     bool   `json:"acceptTerms"`
}

type sessionResponse struct {
	User     auth.User `json:"user"`
	Redirect string    `json:"redirect,omitempty"`
}

// login handles POST /api/auth/login.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sid := newSessionID()
	sess, err := h.auth.Login(r.Context(), sid, auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		mapAuthError(w, r, err)
		return
	}
	h.startSession(w, r, sid)
	writeJSON(w, http.StatusOK, sessionResponse{User: sess.User, Redirect: auth.ProfilePath})
}

// register handles POST /api/auth/register.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sid := newSessionID()
	sess, err := h.auth.Register(r.Context(), sid, auth.RegisterRequest{
		Username:        req.Username,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		AcceptTerms:     req.AcceptTerms,
	})
	if err != nil {
		mapAuthError(w, r, err)
		return
	}
	h.startSession(w, r, sid)
	writeJSON(w, http.StatusCreated, sessionResponse{User: sess.User, Redirect: auth.ProfilePath})
}

// logout handles POST /api/auth/logout.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if sid, ok := cookieID(r, sessionCookie); ok {
		if err := h.auth.Logout(r.Context(), sid); err != nil {
			zctx.From(r.Context()).Warn("Delete session", zap.Error(err))
		}
	}
	h.clearCookie(w, sessionCookie)
	w.WriteHeader(http.StatusNoContent)
}

// session handles GET /api/auth/session.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	sid, _ := cookieID(r, sessionCookie)
	sess, err := h.auth.Current(r.Context(), sid)
	if err != nil {
		mapAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: sess.User})
}

// startSession replaces any previous session of the browser with sid.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, sid string) {
	if old, ok := cookieID(r, sessionCookie); ok && old != sid {
		if err := h.auth.Logout(r.Context(), old); err != nil {
			zctx.From(r.Context()).Warn("Delete previous session", zap.Error(err))
		}
	}
	h.setCookie(w, sessionCookie, sid, h.cookies.SessionMaxAge)
}

// mapAuthError converts auth errors to responses.
func mapAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrNoSession) {
		writeError(w, http.StatusUnauthorized, "No hay una sesión activa")
		return
	}

	var ve *auth.ValidationError
	if errors.As(err, &ve) {
		writeFieldError(w, http.StatusBadRequest, ve.Field, ve.Message)
		return
	}

	var ae *auth.Error
	if errors.As(err, &ae) {
		switch ae.Status {
		case http.StatusBadRequest:
			writeError(w, http.StatusBadRequest, ae.Message)
		case http.StatusTooManyRequests:
			writeError(w, http.StatusTooManyRequests, ae.Message)
		default:
			zctx.From(r.Context()).Error("Identity provider failure", zap.Error(err))
			writeError(w, http.StatusBadGateway, ae.Message)
		}
		return
	}

	zctx.From(r.Context()).Error("Auth request", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Error interno del servidor")
}
