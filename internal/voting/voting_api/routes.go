package voting_api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"ms-voting/internal/apperr"
	"ms-voting/internal/auth"
	"ms-voting/internal/utils"
)

// Routes builds the router. Numeric id params keep /clubs/all and
// /students/all apart from /clubs/{id} and /students/{id}.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	// Results are read by every screen and stay outside the general limiter.
	r.Get("/health", h.Health)
	r.Get("/results", h.ListResults)
	r.Get("/results/stream", h.ResultsStream)

	// --- Public Routes ---
	r.Group(func(r chi.Router) {
		r.Use(h.limiter("api", h.RateLimit.APIPerWindow, h.RateLimit.APIWindow))

		r.Get("/clubs", h.ListClubs)
		r.Get("/stands", h.ListStands)
		r.Post("/admin/login", h.Login)

		r.Route("/vote", func(r chi.Router) {
			r.Use(h.limiter("vote", h.RateLimit.VotesPerWindow, h.RateLimit.VoteWindow))
			r.Post("/verify", h.VerifyTicket)
			r.Post("/submit", h.SubmitVote)
		})
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(h.limiter("admin", h.RateLimit.AdminPerWindow, h.RateLimit.APIWindow))
		r.Use(auth.Middleware(h.Tokens, h.Logger))

		r.Get("/admin/statistics", h.Statistics)
		r.Get("/admin/integrity", h.Integrity)

		r.Post("/clubs", h.CreateClub)
		r.Post("/clubs/bulk", h.CreateClubsBulk)
		r.Delete("/clubs/{id:[0-9]+}", h.DeleteClub)
		r.Put("/clubs/{id:[0-9]+}/stand", h.AssignStand)

		r.Get("/students", h.ListStudents)
		r.Get("/students/count", h.CountStudents)
		r.Post("/students", h.CreateStudent)
		r.Post("/students/bulk", h.CreateStudentsBulk)
		r.Post("/students/batch-generate", h.BatchGenerateStudents)
		r.Delete("/students/{id:[0-9]+}", h.DeleteStudent)

		r.Patch("/stands/{id:[0-9]+}", h.UpdateStand)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSuperadmin)
			r.Post("/admin/reset-votes", h.ResetVotes)
			r.Delete("/clubs/all", h.DeleteAllClubs)
			r.Delete("/students/all", h.DeleteAllStudents)
		})
	})

	return r
}

// limiter caps requests per client IP over a fixed window.
func (h *Handler) limiter(name string, requests int, window time.Duration) func(http.Handler) http.Handler {
	if !h.RateLimit.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			h.Logger.LogSecurity("RATE_LIMITED", fmt.Sprintf("%s limiter: %s %s from %s", name, r.Method, r.URL.Path, clientIP(r)))
			utils.WriteError(w, apperr.ErrRateLimited)
		}),
	)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.Logger.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", status), time.Since(start).String())
	})
}
