package main

import (
	"encoding/json"
	"net/http"
	"strings"

	authgate "github.com/e202/authgate"
	"github.com/e202/authgate/middleware"
)

type handlers struct {
	engine *authgate.Engine
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	VerificationToken string `json:"verificationToken"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type changePasswordRequest struct {
	CurrentPassword   string `json:"currentPassword"`
	NewPassword       string `json:"newPassword"`
	VerificationToken string `json:"verificationToken"`
}

type resetPasswordRequest struct {
	Email             string `json:"email"`
	NewPassword       string `json:"newPassword"`
	VerificationToken string `json:"verificationToken"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, `{"code":"E400-001","message":"malformed request body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// requestToken re-reads the bearer token: engine session operations act on
// the presented token itself, expired or not.
func requestToken(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+res.AccessToken)
	respond(w, http.StatusOK, map[string]string{"accountId": res.AccountID})
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.engine.Signup(r.Context(), req.Email, req.Password, req.VerificationToken); err != nil {
		middleware.WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, nil)
}

func (h *handlers) checkEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	taken, err := h.engine.CheckEmail(r.Context(), email)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]bool{"taken": taken})
}

func (h *handlers) sendCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.engine.SendCode(r.Context(), req.Email); err != nil {
		middleware.WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (h *handlers) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !decode(w, r, &req) {
		return
	}

	tok, err := h.engine.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"verificationToken": tok})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	tok, err := h.engine.Refresh(r.Context(), requestToken(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+tok)
	respond(w, http.StatusOK, nil)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Logout(r.Context(), requestToken(r)); err != nil {
		middleware.WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.engine.ChangePassword(r.Context(), requestToken(r), req.CurrentPassword, req.NewPassword, req.VerificationToken)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (h *handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.engine.ResetPassword(r.Context(), req.Email, req.NewPassword, req.VerificationToken)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (h *handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteAccount(r.Context(), requestToken(r)); err != nil {
		middleware.WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}
