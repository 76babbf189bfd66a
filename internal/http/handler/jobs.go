package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gigboard/internal/auth"
	"gigboard/internal/job"
	"gigboard/internal/observability"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type JobHandler struct {
	Svc   *job.Service
	Users *auth.Service
}

type jobDTO struct {
	ID         string           `json:"_id"`
	Title      string           `json:"title"`
	Category   string           `json:"category"`
	Summary    string           `json:"summary"`
	CoverImage string           `json:"coverImage"`
	PostedBy   string           `json:"postedBy"`
	UserEmail  string           `json:"userEmail"`
	Budget     *decimal.Decimal `json:"budget,omitempty"`
	Tags       []string         `json:"tags"`
	PostedDate time.Time        `json:"postedDate"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func toJobDTO(j job.Job) jobDTO {
	d := jobDTO{
		ID:         j.ID,
		Title:      j.Title,
		Category:   j.Category,
		Summary:    j.Summary,
		CoverImage: j.CoverImage,
		PostedBy:   j.PostedBy,
		UserEmail:  j.UserEmail,
		Tags:       []string(j.Tags),
		PostedDate: j.PostedDate,
		UpdatedAt:  j.UpdatedAt,
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if j.Budget.Valid {
		b := j.Budget.Decimal
		d.Budget = &b
	}
	return d
}

func toJobDTOs(in []job.Job) []jobDTO {
	out := make([]jobDTO, 0, len(in))
	for _, j := range in {
		out = append(out, toJobDTO(j))
	}
	return out
}

type jobReq struct {
	Title      string           `json:"title"`
	Category   string           `json:"category"`
	Summary    string           `json:"summary"`
	CoverImage string           `json:"coverImage"`
	Budget     *decimal.Decimal `json:"budget"`
	PostedBy   string           `json:"postedBy"`
	UserEmail  string           `json:"userEmail"`
}

func (req jobReq) input() job.Input {
	return job.Input{
		Title:      req.Title,
		Category:   req.Category,
		Summary:    req.Summary,
		CoverImage: req.CoverImage,
		Budget:     req.Budget,
	}
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st := observability.StartServerTiming(r.Context(), "db")
	jobs, err := h.Svc.List(r.Context(), job.ListOptions{
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Tag:       q.Get("tag"),
	})
	st.Stop()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, toJobDTOs(jobs))
}

func (h *JobHandler) Latest(w http.ResponseWriter, r *http.Request) {
	limit := job.DefaultLatest
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	jobs, err := h.Svc.Latest(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, toJobDTOs(jobs))
}

func (h *JobHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Svc.ByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, toJobDTOs(jobs))
}

func (h *JobHandler) Mine(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Svc.ByOwner(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, toJobDTOs(jobs))
}

// Get serves a single job with a content ETag so pollers can revalidate.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	st := observability.StartServerTiming(r.Context(), "db")
	j, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	st.Stop()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]any{"success": true, "data": toJobDTO(j)}); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(buf.Bytes()))
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	req, ok := readJobReq(w, r)
	if !ok {
		return
	}
	if !sessionEmailMatches(claims, req.UserEmail) {
		writeError(w, http.StatusForbidden, "userEmail does not match the signed-in user")
		return
	}

	name := strings.TrimSpace(req.PostedBy)
	if name == "" {
		u, err := h.Users.Get(r.Context(), claims.UserID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		name = u.Name()
	}

	j, err := h.Svc.Create(r.Context(), job.Owner{Email: claims.Email, Name: name}, req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOne(w, http.StatusCreated, toJobDTO(j))
}

func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	req, ok := readJobReq(w, r)
	if !ok {
		return
	}
	j, err := h.Svc.Update(r.Context(), chi.URLParam(r, "id"), claims.Email, req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOne(w, http.StatusOK, toJobDTO(j))
}

type ownerReq struct {
	UserEmail string `json:"userEmail"`
}

func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var req ownerReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if !sessionEmailMatches(claims, req.UserEmail) {
		writeError(w, http.StatusForbidden, "userEmail does not match the signed-in user")
		return
	}
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id"), claims.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "job deleted"})
}

func readJobReq(w http.ResponseWriter, r *http.Request) (jobReq, bool) {
	var req jobReq
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return req, false
	}
	if err := job.ValidateDocument(b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if err := json.Unmarshal(b, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return req, false
	}
	return req, true
}
