package handler

import (
	"net/http"

	"gigboard/internal/acceptance"
	"gigboard/internal/job"
)

type StatsHandler struct {
	Jobs        *job.Service
	Acceptances *acceptance.Service
}

func (h *StatsHandler) All(w http.ResponseWriter, r *http.Request) {
	byCat, total, err := h.Jobs.CountByCategory(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	accepted, err := h.Acceptances.Count(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if byCat == nil {
		byCat = []job.CategoryCount{}
	}
	writeOne(w, http.StatusOK, map[string]any{
		"totalJobs":        total,
		"totalAcceptances": accepted,
		"byCategory":       byCat,
	})
}
