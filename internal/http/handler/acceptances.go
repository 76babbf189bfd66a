package handler

import (
	"net/http"
	"strings"
	"time"

	"gigboard/internal/acceptance"
	"gigboard/internal/auth"

	"github.com/go-chi/chi/v5"
)

type AcceptanceHandler struct {
	Svc *acceptance.Service
}

type acceptanceDTO struct {
	ID         string    `json:"_id"`
	JobID      string    `json:"jobId"`
	UserEmail  string    `json:"userEmail"`
	UserName   string    `json:"userName"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

func toAcceptanceDTO(a acceptance.Acceptance) acceptanceDTO {
	return acceptanceDTO{
		ID:         a.ID,
		JobID:      a.JobID,
		UserEmail:  a.UserEmail,
		UserName:   a.UserName,
		AcceptedAt: a.AcceptedAt,
	}
}

type eventDTO struct {
	ID           uint64    `json:"id"`
	AcceptanceID string    `json:"acceptanceId"`
	JobID        string    `json:"jobId"`
	JobTitle     string    `json:"jobTitle"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"createdAt"`
}

type acceptReq struct {
	JobID     string `json:"jobId"`
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`
}

func (h *AcceptanceHandler) Accept(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var req acceptReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if strings.TrimSpace(req.JobID) == "" {
		writeError(w, http.StatusBadRequest, "jobId required")
		return
	}
	if !sessionEmailMatches(claims, req.UserEmail) {
		writeError(w, http.StatusForbidden, "userEmail does not match the signed-in user")
		return
	}

	a, err := h.Svc.Accept(r.Context(), acceptance.AcceptInput{
		JobID:     req.JobID,
		UserEmail: claims.Email,
		UserName:  req.UserName,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOne(w, http.StatusCreated, toAcceptanceDTO(a))
}

func (h *AcceptanceHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	email := chi.URLParam(r, "email")
	if !strings.EqualFold(email, claims.Email) {
		writeError(w, http.StatusForbidden, "can only list your own accepted tasks")
		return
	}

	rows, err := h.Svc.ListByEmail(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]acceptanceDTO, 0, len(rows))
	for _, a := range rows {
		out = append(out, toAcceptanceDTO(a))
	}
	writeList(w, out)
}

type removeReq struct {
	UserEmail  string `json:"userEmail"`
	Resolution string `json:"resolution"`
}

func (h *AcceptanceHandler) Remove(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var req removeReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if !sessionEmailMatches(claims, req.UserEmail) {
		writeError(w, http.StatusForbidden, "userEmail does not match the signed-in user")
		return
	}
	res, err := acceptance.ParseResolution(req.Resolution)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	a, err := h.Svc.Remove(r.Context(), chi.URLParam(r, "id"), claims.Email, res)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOne(w, http.StatusOK, toAcceptanceDTO(a))
}

func (h *AcceptanceHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	email := chi.URLParam(r, "email")
	if !strings.EqualFold(email, claims.Email) {
		writeError(w, http.StatusForbidden, "can only read your own history")
		return
	}

	evs, err := h.Svc.History(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]eventDTO, 0, len(evs))
	for _, e := range evs {
		out = append(out, eventDTO{
			ID:           e.ID,
			AcceptanceID: e.AcceptanceID,
			JobID:        e.JobID,
			JobTitle:     e.JobTitle,
			Type:         e.Type,
			CreatedAt:    e.CreatedAt,
		})
	}
	writeList(w, out)
}
