package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gigboard/internal/auth"
	"gigboard/internal/config"
	"gigboard/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiHarness struct {
	t *testing.T
	h http.Handler
}

func newHarness(t *testing.T) *apiHarness {
	t.Helper()
	gdb, err := db.Connect("sqlite://"+filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateAndIndexes(gdb))

	cfg := config.Config{JWTSecret: "test", AdminEmails: []string{"demoadmin@example.com"}}
	return &apiHarness{t: t, h: NewRouter(cfg, gdb, auth.NewJWT(cfg.JWTSecret), nil, nil)}
}

func (a *apiHarness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func (a *apiHarness) register(email, name string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/register", "", map[string]any{
		"email": email, "password": "hunter22", "displayName": name,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Token
}

type envelope struct {
	Success bool            `json:"success"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

var logoJob = map[string]any{
	"title":      "Professional Logo Design",
	"category":   "Graphics Design",
	"summary":    "A crisp logo for a bakery, vector deliverables included. #branding",
	"coverImage": "https://img.example.com/logo.png",
	"budget":     "250.00",
}

func TestHealthAndFallback(t *testing.T) {
	a := newHarness(t)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", "", nil).Code)

	rec := a.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestJobLifecycle(t *testing.T) {
	a := newHarness(t)
	owner := a.register("owner@x.com", "Owner")
	other := a.register("other@x.com", "Other")

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/api/jobs", "", logoJob).Code)

	rec := a.do(http.MethodPost, "/api/jobs", owner, logoJob)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID       string   `json:"_id"`
		PostedBy string   `json:"postedBy"`
		Budget   string   `json:"budget"`
		Tags     []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &created))
	assert.Equal(t, "Owner", created.PostedBy)
	assert.Equal(t, "250", created.Budget)
	assert.Equal(t, []string{"branding"}, created.Tags)

	get := a.do(http.MethodGet, "/api/jobs/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, get.Code)
	etag := get.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+created.ID, nil)
	req.Header.Set("If-None-Match", etag)
	cached := httptest.NewRecorder()
	a.h.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)

	list := decodeEnvelope(t, a.do(http.MethodGet, "/api/jobs?sortBy=postedDate&sortOrder=asc", "", nil))
	require.NotNil(t, list.Count)
	assert.Equal(t, 1, *list.Count)

	cat := decodeEnvelope(t, a.do(http.MethodGet, "/api/jobs/category/graphics-design", "", nil))
	assert.Equal(t, 1, *cat.Count)

	mine := decodeEnvelope(t, a.do(http.MethodGet, "/api/jobs/my-jobs/owner@x.com", "", nil))
	assert.Equal(t, 1, *mine.Count)

	edit := map[string]any{}
	for k, v := range logoJob {
		edit[k] = v
	}
	edit["title"] = "Logo v2"
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, "/api/jobs/"+created.ID, other, edit).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodPut, "/api/jobs/"+created.ID, owner, edit).Code)

	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodDelete, "/api/jobs/"+created.ID, owner, map[string]any{"userEmail": "other@x.com"}).Code)
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodDelete, "/api/jobs/"+created.ID, other, map[string]any{"userEmail": "other@x.com"}).Code)
	assert.Equal(t, http.StatusOK,
		a.do(http.MethodDelete, "/api/jobs/"+created.ID, owner, map[string]any{"userEmail": "owner@x.com"}).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/jobs/"+created.ID, "", nil).Code)
}

func TestCreateJob_SchemaErrors(t *testing.T) {
	a := newHarness(t)
	owner := a.register("owner@x.com", "Owner")

	rec := a.do(http.MethodPost, "/api/jobs", owner, map[string]any{"title": "only a title"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := map[string]any{}
	for k, v := range logoJob {
		bad[k] = v
	}
	bad["category"] = "Cooking"
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/jobs", owner, bad).Code)

	bad["category"] = "Graphics Design"
	bad["userEmail"] = "someone-else@x.com"
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/jobs", owner, bad).Code)
}

func TestAcceptFlow(t *testing.T) {
	a := newHarness(t)
	owner := a.register("owner@x.com", "Owner")
	worker := a.register("a@x.com", "Ann")

	rec := a.do(http.MethodPost, "/api/jobs", owner, logoJob)
	require.Equal(t, http.StatusCreated, rec.Code)
	var j struct {
		ID string `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &j))

	accept := map[string]any{"jobId": j.ID, "userEmail": "a@x.com", "userName": "Ann"}
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/jobs/accept", owner,
		map[string]any{"jobId": j.ID, "userEmail": "owner@x.com"}).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/jobs/accept", owner, accept).Code)

	rec = a.do(http.MethodPost, "/api/jobs/accept", worker, accept)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var acc struct {
		ID    string `json:"_id"`
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &acc))
	assert.Equal(t, j.ID, acc.JobID)

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/jobs/accept", worker, accept).Code)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/jobs/accepted/a@x.com", owner, nil).Code)
	list := decodeEnvelope(t, a.do(http.MethodGet, "/api/jobs/accepted/a@x.com", worker, nil))
	assert.Equal(t, 1, *list.Count)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodDelete, "/api/jobs/accepted/"+acc.ID, worker,
		map[string]any{"userEmail": "a@x.com", "resolution": "archived"}).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/api/jobs/accepted/"+acc.ID, worker,
		map[string]any{"userEmail": "a@x.com", "resolution": "done"}).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, "/api/jobs/accepted/"+acc.ID, worker,
		map[string]any{"userEmail": "a@x.com", "resolution": "cancelled"}).Code)

	hist := decodeEnvelope(t, a.do(http.MethodGet, "/api/jobs/history/a@x.com", worker, nil))
	assert.Equal(t, 2, *hist.Count)

	stats := decodeEnvelope(t, a.do(http.MethodGet, "/api/jobs/stats/all", "", nil))
	var s struct {
		TotalJobs        int64 `json:"totalJobs"`
		TotalAcceptances int64 `json:"totalAcceptances"`
	}
	require.NoError(t, json.Unmarshal(stats.Data, &s))
	assert.Equal(t, int64(1), s.TotalJobs)
	assert.Equal(t, int64(0), s.TotalAcceptances)
}

func TestMeAndProfile(t *testing.T) {
	a := newHarness(t)
	tok := a.register("demoadmin@example.com", "")

	me := decodeEnvelope(t, a.do(http.MethodGet, "/me", tok, nil))
	var u struct {
		Role        string `json:"role"`
		DisplayName string `json:"displayName"`
	}
	require.NoError(t, json.Unmarshal(me.Data, &u))
	assert.Equal(t, "admin", u.Role)

	upd := decodeEnvelope(t, a.do(http.MethodPatch, "/me", tok, map[string]any{"displayName": "Boss"}))
	require.NoError(t, json.Unmarshal(upd.Data, &u))
	assert.Equal(t, "Boss", u.DisplayName)

	assert.Equal(t, http.StatusNotImplemented,
		a.do(http.MethodPost, "/auth/federated", "", map[string]any{"provider": "google", "idToken": "x"}).Code)
}
