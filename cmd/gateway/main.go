package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	api "github.com/invigilo/invigilo/internal/api/http"
	"github.com/invigilo/invigilo/internal/attempt"
	"github.com/invigilo/invigilo/internal/audit"
	auth "github.com/invigilo/invigilo/internal/auth/middleware"
	"github.com/invigilo/invigilo/internal/config"
	"github.com/invigilo/invigilo/internal/db"
	"github.com/invigilo/invigilo/internal/exam"
	"github.com/invigilo/invigilo/internal/grading"
	"github.com/invigilo/invigilo/internal/metrics"
	"github.com/invigilo/invigilo/internal/rbac"
	"github.com/invigilo/invigilo/internal/session"
)

func main() {
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	exams := exam.NewSQLStore(dbh)
	assignments := attempt.NewSQLStore(dbh)
	answers := attempt.NewAnswerSQLStore(dbh)
	auditLog := audit.NewLog(dbh)
	svc := session.NewService(exams, assignments, answers,
		session.WithAuditLog(auditLog))
	corrector := grading.NewCorrector(assignments, answers)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if cfg.EnableMetrics {
		r.Use(metrics.RequestDuration)
	}

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// Protected API (JWT -> role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Exam authoring (data access only; the engine treats exams as
		// immutable during an attempt)
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.UploadExamHandler(exams))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(exams))
		pr.With(rbac.RequireAny("exam:delete-own")).
			Delete("/exams/{examID}", api.DeleteExamHandler(exams))

		// Student attempt flow
		pr.With(rbac.Require("session:enter")).
			Post("/exams/{examID}/session", api.EnterExamHandler(svc, exams))
		pr.With(rbac.Require("session:save")).
			Put("/session/{assignmentID}/answers", api.SaveAnswersHandler(svc, exams))
		pr.With(rbac.Require("session:submit")).
			Post("/session/{assignmentID}/submit", api.SubmitHandler(svc))
		pr.With(rbac.Require("session:submit")).
			Post("/session/{assignmentID}/abandon", api.AbandonHandler(svc))
		pr.With(rbac.Require("session:save")).
			Post("/session/{assignmentID}/violation", api.ReportViolationHandler(svc, exams))
		pr.With(rbac.RequireAny("session:view-own", "session:view-all")).
			Get("/session/{assignmentID}", api.GetSessionHandler(svc, exams))

		// Teacher surfaces
		pr.With(rbac.RequireAny("session:view-own", "session:view-all")).
			Get("/attempts", api.ListAttemptsHandler(assignments))
		pr.With(rbac.Require("session:grade")).
			Post("/exams/{examID}/students/{studentID}/correction", api.ApplyCorrectionHandler(corrector))
		pr.With(rbac.Require("session:view-all")).
			Get("/session/{assignmentID}/audit", api.AuditTrailHandler(auditLog))
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	log.Printf("gateway listening on %s (driver=%s mode=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.Mode)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}
