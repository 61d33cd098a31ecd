package handlers

import (
	"net/http"
	"strings"

	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/services"
)

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// ==================== Candidate Handlers ====================

func (h *Handlers) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	var req CreateCandidateRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.error(w, r, err)
		return
	}

	c, err := h.Candidates.CreateCandidate(r.Context(), models.Candidate{
		FullName:       req.FullName,
		ProfilePhoto:   req.ProfilePhoto,
		Gender:         req.Gender,
		District:       req.District,
		PartyName:      req.PartyName,
		Constituency:   req.Constituency,
		CandidacyLevel: req.CandidacyLevel,
		VotingEnabled:  boolOr(req.VotingEnabled, true),
		IsActive:       boolOr(req.IsActive, true),
	})
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondCreated(w, "Candidate created", c)
}

// handleSetVoting sets or flips a candidate's voting gate
func (h *Handlers) handleSetVoting(w http.ResponseWriter, r *http.Request) {
	var req SetVotingRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.error(w, r, err)
		return
	}

	c, err := h.Candidates.SetVotingEnabled(r.Context(), idParam(r, "id"), req.VotingEnabled)
	if err != nil {
		h.error(w, r, err)
		return
	}

	msg := "Voting disabled"
	if c.VotingEnabled {
		msg = "Voting enabled"
	}
	respondMessage(w, msg, c)
}

func (h *Handlers) handleSetCandidateActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.error(w, r, err)
		return
	}

	c, err := h.Candidates.SetActive(r.Context(), idParam(r, "id"), req.IsActive)
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, c)
}

// handleListVoters pages through a candidate's ledger
func (h *Handlers) handleListVoters(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		h.error(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.error(w, r, err)
		return
	}
	verified, err := queryBool(r, "verified")
	if err != nil {
		h.error(w, r, err)
		return
	}

	result, err := h.Candidates.ListVoters(r.Context(), idParam(r, "id"), models.VoterQuery{
		Page:     page,
		Limit:    limit,
		Verified: verified,
	})
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleVerifyVote(w http.ResponseWriter, r *http.Request) {
	var req VerifyVoteRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.error(w, r, err)
		return
	}

	if err := h.Candidates.VerifyVote(r.Context(), idParam(r, "id"), idParam(r, "voteId"), *req.IsVerified); err != nil {
		h.error(w, r, err)
		return
	}
	respondMessage(w, "Vote verification updated", map[string]bool{"isVerified": *req.IsVerified})
}

// handleSyncCandidates imports the roster from the election feed
func (h *Handlers) handleSyncCandidates(w http.ResponseWriter, r *http.Request) {
	var req SyncCandidatesRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.error(w, r, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		h.error(w, r, err)
		return
	}

	result, err := h.Feed.SyncFromFeed(r.Context(), req.FeedURL)
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondMessage(w, "Candidates synced", result)
}

// ==================== Poll Handlers ====================

func (h *Handlers) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req CreatePollRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.error(w, r, err)
		return
	}

	poll, err := h.Polls.CreatePoll(r.Context(), services.CreatePollInput{
		Title:            req.Title,
		Description:      req.Description,
		Choices:          req.Choices,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		IsActive:         req.IsActive,
		AllowAnonymous:   req.AllowAnonymous,
		MaxVotesPerVoter: req.MaxVotesPerVoter,
	})
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondCreated(w, "Poll created", poll)
}

// handleTogglePoll sets or flips the poll's admin override
func (h *Handlers) handleTogglePoll(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.error(w, r, err)
		return
	}

	poll, err := h.Polls.SetActive(r.Context(), idParam(r, "id"), req.IsActive)
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, poll)
}

// ==================== Maintenance Handlers ====================

func (h *Handlers) handleReconcileCandidate(w http.ResponseWriter, r *http.Request) {
	res, err := h.Candidates.Reconcile(r.Context(), idParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, res)
}

func (h *Handlers) handleReconcilePoll(w http.ResponseWriter, r *http.Request) {
	results, err := h.Polls.Reconcile(r.Context(), idParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, map[string]interface{}{"results": results})
}

// handleReconcileAll repairs every counter from its ledger
func (h *Handlers) handleReconcileAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.Tally.ReconcileAll(r.Context())
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.Log.Info("Reconciliation completed", "checked", report.Checked, "corrected", report.Corrected)
	respondOK(w, report)
}

// handleSetLogging changes the log level and HTTP request logging at runtime
func (h *Handlers) handleSetLogging(w http.ResponseWriter, r *http.Request) {
	var req SetLoggingRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.error(w, r, err)
		return
	}
	if err := validateStruct(&req); err != nil {
		h.error(w, r, err)
		return
	}

	if req.Level != "" {
		h.Log.SetLevel(logger.ParseLevel(req.Level))
	}
	if req.HTTP != nil {
		if *req.HTTP {
			h.Log.EnableHTTPLogging()
		} else {
			h.Log.DisableHTTPLogging()
		}
	}

	respondOK(w, LoggingResponse{
		Level: strings.ToLower(h.Log.GetLevel().String()),
		HTTP:  h.Log.IsHTTPLoggingEnabled(),
	})
}
