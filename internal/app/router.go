package app

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"examportal/internal/app/apiresp"
	"examportal/internal/app/observability"
	"examportal/internal/attempt"
	"examportal/internal/auth"
	"examportal/internal/exam"
	"examportal/internal/question"
	"examportal/internal/report"
)

func NewRouter(cfg Config, db *sql.DB, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(logger)
	r.Use(collector.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	authSvc := auth.NewService(db, tokens, auth.ServiceConfig{
		BcryptCost:      cfg.BcryptCost,
		RefreshTokenTTL: time.Duration(cfg.RefreshTokenTTLDays) * 24 * time.Hour,
	})
	authHandler := auth.NewHandler(authSvc)

	examHandler := exam.NewHandler(exam.NewService(db))
	questionHandler := question.NewHandler(question.NewService(db))
	attemptHandler := attempt.NewHandler(attempt.NewService(db))
	reportHandler := report.NewHandler(report.NewService(db))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		apiresp.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"message": "Exam Portal API is running",
		})
	})
	r.Get("/metrics", collector.MetricsHandler)

	limiter := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)

	r.Route("/api", func(api chi.Router) {
		api.Group(func(pub chi.Router) {
			pub.Use(RateLimitMiddleware(limiter))
			pub.Post("/auth/register", authHandler.Register)
			pub.Post("/auth/login", authHandler.Login)
			pub.Post("/auth/refresh", authHandler.Refresh)
		})

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)

			secure.Post("/auth/logout", authHandler.Logout)

			secure.Get("/exams", examHandler.List)
			secure.Post("/exams", examHandler.Create)
			secure.Put("/exams/{id}", examHandler.Update)
			secure.Delete("/exams/{id}", examHandler.Delete)

			secure.Get("/exams/{id}/questions", questionHandler.ListByExam)
			secure.Post("/questions", questionHandler.Create)
			secure.Put("/questions/{id}", questionHandler.Update)
			secure.Delete("/questions/{id}", questionHandler.Delete)

			secure.Post("/exams/{id}/start", attemptHandler.Start)
			secure.Post("/attempts/{id}/submit-answer", attemptHandler.SubmitAnswer)
			secure.Post("/attempts/{id}/submit", attemptHandler.Submit)
			secure.Get("/my-attempts", attemptHandler.ListMine)
			secure.Get("/attempts/{id}", attemptHandler.Detail)

			secure.Group(func(staff chi.Router) {
				staff.Use(auth.RequireRoles("instructor", "admin"))
				staff.Get("/exams/{id}/results", reportHandler.Results)
				staff.Get("/exams/{id}/results/export", reportHandler.Export)
			})
		})
	})

	return r
}
