package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/auth"
	"github.com/talentcontrolhr/talentcontrol/internal/company"
	"github.com/talentcontrolhr/talentcontrol/internal/metrics"
	"github.com/talentcontrolhr/talentcontrol/internal/ratelimit"
	"github.com/talentcontrolhr/talentcontrol/internal/schedule"
	"github.com/talentcontrolhr/talentcontrol/internal/session"
)

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Accounts *account.Service
	Lookup   auth.AccountLookup
	Sessions *session.Manager
	Cookie   session.Cookie
	Editor   *company.Editor
	Schedule *schedule.Service
	Limiter  *ratelimit.Limiter

	// Metrics and DB are optional.
	Metrics *metrics.Metrics
	DB      Pinger

	AllowedOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only enable it when every request arrives through a proxy that sets them.
	TrustProxy bool
	Logger     *slog.Logger
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware.
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(requestLogger(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	var (
		authRec       AuthRecorder
		onAuthFailure []auth.FailureFunc
		onRateLimited []func()
	)
	if m := deps.Metrics; m != nil {
		authRec = m
		onAuthFailure = append(onAuthFailure, func(_ *http.Request, _ string) { m.IncAuthFailure("session") })
		onRateLimited = append(onRateLimited, func() { m.IncRateLimitRejection("auth") })
	}

	acc := access{lookup: deps.Lookup, editor: deps.Editor}
	authH := newAuthHandler(deps.Accounts, deps.Sessions, deps.Cookie, authRec)
	users := newUsersHandler(deps.Accounts, deps.Editor, acc)
	companies := newCompaniesHandler(deps.Editor, acc)
	sched := newScheduleHandler(deps.Schedule, acc)

	requireSession := auth.SessionMiddleware(deps.Sessions, deps.Cookie, onAuthFailure...)
	requireAdmin := auth.RequireRole(deps.Lookup, account.RoleAdmin)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/health", healthHandler(deps.DB))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.ExpositionHandler())
	}

	r.Route("/api/auth", func(ar chi.Router) {
		ar.Group(func(lr chi.Router) {
			if deps.Limiter != nil {
				lr.Use(ratelimit.Middleware(deps.Limiter, onRateLimited...))
			}
			lr.Post("/register", authH.Register)
			lr.Post("/login", authH.Login)
		})
		ar.Post("/logout", authH.Logout)
		ar.With(requireSession).Get("/verify", authH.Verify)
	})

	r.Route("/api", func(ar chi.Router) {
		ar.Use(requireSession)

		if deps.Metrics != nil {
			ar.With(requireAdmin).Get("/metrics/summary", deps.Metrics.Handler())
		}

		ar.Route("/users", func(ur chi.Router) {
			ur.Get("/", users.ListUsers)
			ur.Get("/me", users.Me)
			ur.With(requireAdmin).Post("/", users.CreateUser)
			ur.Get("/{id}", users.GetUser)
			ur.Put("/{id}", users.UpdateUser)
			ur.With(requireAdmin).Delete("/{id}", users.DeleteUser)
			ur.Patch("/{id}/reset-password", users.ResetPassword)
		})

		ar.Route("/companies", func(cr chi.Router) {
			cr.Get("/", companies.ListCompanies)
			cr.With(requireAdmin).Post("/", companies.CreateCompany)
			cr.Get("/{id}", companies.GetCompany)
			cr.Put("/{id}", companies.UpdateCompany)
			cr.With(requireAdmin).Delete("/{id}", companies.DeleteCompany)

			cr.Get("/{id}/users", companies.ListMembers)
			cr.Patch("/{id}/users/{userId}", companies.AddMember)
			cr.Put("/{id}/users/{userId}/roles", companies.UpdateMemberRoles)
			cr.Delete("/{id}/users/{userId}", companies.RemoveMember)

			cr.Get("/{id}/teams", companies.ListTeams)
			cr.Post("/{id}/teams", companies.AddTeam)
			cr.Get("/{id}/teams/{teamId}", companies.GetTeam)
			cr.Put("/{id}/teams/{teamId}", companies.UpdateTeam)
			cr.Delete("/{id}/teams/{teamId}", companies.RemoveTeam)
			cr.Get("/{id}/teams/{teamId}/users", companies.ListTeamMembers)
			cr.Patch("/{id}/teams/{teamId}/users/{userId}", companies.AddTeamMember)
			cr.Delete("/{id}/teams/{teamId}/users/{userId}", companies.RemoveTeamMember)
		})

		ar.Route("/shifts", func(sr chi.Router) {
			sr.Get("/", sched.ListShifts)
			sr.Post("/", sched.CreateShift)
			sr.Get("/{id}", sched.GetShift)
			sr.Put("/{id}", sched.UpdateShift)
			sr.Delete("/{id}", sched.DeleteShift)
		})

		ar.Route("/vacations", func(vr chi.Router) {
			vr.Get("/", sched.ListVacations)
			vr.Post("/", sched.RequestVacation)
			vr.Patch("/{id}/status", sched.UpdateVacationStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

// healthHandler reports liveness and, when db is set, backend reachability.
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":   "degraded",
					"database": "unreachable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"database": "connected",
		})
	}
}
