package handlers

import (
	"context"
	"net/http"

	"github.com/abrezinsky/electionvote/internal/auth"
	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/ratelimit"
	"github.com/abrezinsky/electionvote/internal/services"
)

// Pinger reports storage reachability for /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Candidates services.CandidateVotingServicer
	Polls      services.PollServicer
	Tally      services.TallyServicer
	Feed       services.FeedServicer
	Share      services.ShareServicer
	Auth       *auth.Auth
	Log        logger.Logger

	// Optional collaborators; nil disables the corresponding route or middleware
	WS        http.HandlerFunc
	Metrics   http.Handler
	Health    Pinger
	Limiter   ratelimit.Limiter
	OnLimited func()
}

// New creates a new Handlers instance with the required dependencies
func New(
	candidates services.CandidateVotingServicer,
	polls services.PollServicer,
	tally services.TallyServicer,
	feed services.FeedServicer,
	share services.ShareServicer,
	adminAuth *auth.Auth,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Candidates: candidates,
		Polls:      polls,
		Tally:      tally,
		Feed:       feed,
		Share:      share,
		Auth:       adminAuth,
		Log:        log,
	}
}

func (h *Handlers) error(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, h.Log, r, err)
}
