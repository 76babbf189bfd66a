package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"gigboard/internal/auth"
)

type AuthHandler struct {
	Svc *auth.Service
}

type userDTO struct {
	ID          uint64    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoURL"`
	Role        string    `json:"role"`
	Provider    string    `json:"provider"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toUserDTO(u auth.User) userDTO {
	return userDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Role:        u.Role,
		Provider:    u.Provider,
		CreatedAt:   u.CreatedAt,
	}
}

type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

type federatedReq struct {
	Provider string `json:"provider"`
	IDToken  string `json:"idToken"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	sess, err := h.Svc.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSession(w, http.StatusCreated, sess)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	sess, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSession(w, http.StatusOK, sess)
}

func (h *AuthHandler) Federated(w http.ResponseWriter, r *http.Request) {
	var req federatedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	sess, err := h.Svc.LoginFederated(r.Context(), req.Provider, req.IDToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSession(w, http.StatusOK, sess)
}

func writeSession(w http.ResponseWriter, status int, sess auth.Session) {
	writeJSON(w, status, map[string]any{
		"success": true,
		"token":   sess.Token,
		"user":    toUserDTO(sess.User),
	})
}
