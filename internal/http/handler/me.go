package handler

import (
	"net/http"

	"gigboard/internal/auth"
)

type MeHandler struct {
	Svc *auth.Service
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	u, err := h.Svc.Get(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOne(w, http.StatusOK, toUserDTO(u))
}

type profileReq struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

func (h *MeHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var req profileReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	u, err := h.Svc.UpdateProfile(r.Context(), claims.UserID, req.DisplayName, req.PhotoURL)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOne(w, http.StatusOK, toUserDTO(u))
}
