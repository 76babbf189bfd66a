package http

import (
	"log/slog"
	"net/http"

	"gigboard/internal/acceptance"
	"gigboard/internal/auth"
	"gigboard/internal/config"
	"gigboard/internal/http/handler"
	mw "gigboard/internal/http/middleware"
	"gigboard/internal/job"
	"gigboard/internal/observability"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT, logger *slog.Logger, metrics *observability.Metrics) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(observability.Middleware(metrics))

	r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	users := &auth.Service{
		DB:          db,
		JWT:         jwtSvc,
		Federated:   auth.NewFederatedVerifier(cfg.FederatedJWTSecret),
		AdminEmails: cfg.AdminEmails,
	}
	requireAuth := auth.RequireAuth(jwtSvc)

	ah := &handler.AuthHandler{Svc: users}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)
	r.Post("/auth/federated", ah.Federated)

	me := &handler.MeHandler{Svc: users}
	r.With(requireAuth).Get("/me", me.Me)
	r.With(requireAuth).Patch("/me", me.UpdateProfile)

	jobSvc := &job.Service{DB: db, Logger: logger}
	accSvc := &acceptance.Service{DB: db, Logger: logger, Recorder: metrics}
	jobH := &handler.JobHandler{Svc: jobSvc, Users: users}
	accH := &handler.AcceptanceHandler{Svc: accSvc}
	statsH := &handler.StatsHandler{Jobs: jobSvc, Acceptances: accSvc}

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", jobH.List)
		r.Get("/latest", jobH.Latest)
		r.Get("/category/{category}", jobH.ByCategory)
		r.Get("/my-jobs/{email}", jobH.Mine)
		r.Get("/stats/all", statsH.All)
		r.Get("/{id}", jobH.Get)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/", jobH.Create)
			r.Put("/{id}", jobH.Update)
			r.Delete("/{id}", jobH.Delete)

			r.Post("/accept", accH.Accept)
			r.Get("/accepted/{email}", accH.List)
			r.Delete("/accepted/{id}", accH.Remove)
			r.Get("/history/{email}", accH.History)
		})
	})

	return r
}
