package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abrezinsky/electionvote/internal/identity"
	"github.com/abrezinsky/electionvote/internal/ratelimit"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// voteLimit throttles vote submissions per origin
func (h *Handlers) voteLimit() func(http.Handler) http.Handler {
	if h.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimit.Middleware(h.Limiter, identity.Origin, h.Log, h.OnLimited)
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)

	r.Get("/healthz", h.handleHealth)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}
	// Long-lived connection, outside the request timeout
	if h.WS != nil {
		r.Get("/ws", h.WS)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Candidates (public). The statistics route precedes {id}.
		r.Get("/api/candidates", h.handleListCandidates)
		r.Get("/api/candidates/votes/statistics", h.handleStatistics)
		r.Get("/api/candidates/{id}", h.handleGetCandidate)
		r.Get("/api/candidates/{id}/vote/check", h.handleCheckVote)
		r.Get("/api/candidates/{id}/votes/count", h.handleVoteCount)
		r.Delete("/api/candidates/{id}/vote", h.handleRemoveVote)
		r.Post("/api/candidates/{id}/like", h.handleToggleLike)
		r.Post("/api/candidates/{id}/share", h.handleShare)
		r.Get("/api/candidates/{id}/qr", h.handleCandidateQR)

		// Polls (public)
		r.Get("/api/polls", h.handleListPolls)
		r.Get("/api/polls/{id}", h.handleGetPoll)
		r.Get("/api/polls/{id}/results", h.handlePollResults)
		r.Get("/api/polls/{id}/check", h.handleCheckPollVote)
		r.Get("/api/polls/{id}/qr", h.handlePollQR)

		// Vote submissions (rate limited)
		r.Group(func(r chi.Router) {
			r.Use(h.voteLimit())
			r.Post("/api/candidates/{id}/vote", h.handleCastVote)
			r.Post("/api/polls/{id}/vote", h.handlePollVote)
		})

		// Auth (public)
		r.Post("/api/admin/login", h.handleLogin)
		r.Post("/api/admin/logout", h.handleLogout)

		// Admin API (protected)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAuthAPI)

			// Candidates
			r.Post("/api/admin/candidates", h.handleCreateCandidate)
			r.Put("/api/admin/candidates/{id}/voting", h.handleSetVoting)
			r.Put("/api/admin/candidates/{id}/active", h.handleSetCandidateActive)
			r.Get("/api/admin/candidates/{id}/voters", h.handleListVoters)
			r.Put("/api/admin/candidates/{id}/votes/{voteId}/verify", h.handleVerifyVote)
			r.Post("/api/admin/candidates/{id}/reconcile", h.handleReconcileCandidate)
			r.Post("/api/admin/sync-candidates", h.handleSyncCandidates)

			// Polls
			r.Post("/api/admin/polls", h.handleCreatePoll)
			r.Put("/api/admin/polls/{id}/toggle", h.handleTogglePoll)
			r.Post("/api/admin/polls/{id}/reconcile", h.handleReconcilePoll)

			// Maintenance
			r.Post("/api/admin/reconcile", h.handleReconcileAll)
			r.Put("/api/admin/logging", h.handleSetLogging)
		})
	})

	return r
}
