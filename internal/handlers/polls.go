package handlers

import (
	"net/http"

	"github.com/abrezinsky/electionvote/internal/identity"
)

func (h *Handlers) handleListPolls(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "activeOnly")
	if err != nil {
		h.error(w, r, err)
		return
	}

	polls, err := h.Polls.ListPolls(r.Context(), activeOnly != nil && *activeOnly)
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, map[string]interface{}{
		"polls": polls,
		"count": len(polls),
	})
}

func (h *Handlers) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.Polls.GetPoll(r.Context(), idParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, poll)
}

// handlePollVote records a poll vote. A voterId in the body makes the vote
// authenticated, otherwise the caller's origin identifies it.
func (h *Handlers) handlePollVote(w http.ResponseWriter, r *http.Request) {
	var req PollVoteRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.error(w, r, err)
		return
	}

	voter := identity.FromRequest(r, req.VoterID)
	result, err := h.Polls.Vote(r.Context(), idParam(r, "id"), req.ChoiceID, voter, r.UserAgent())
	if err != nil {
		h.error(w, r, err)
		return
	}

	respondCreated(w, "Vote recorded successfully", result)
}

// handlePollResults returns per-choice counts and percentages
func (h *Handlers) handlePollResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Polls.Results(r.Context(), idParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, results)
}

// handleCheckPollVote reports whether the caller has voted on the poll
func (h *Handlers) handleCheckPollVote(w http.ResponseWriter, r *http.Request) {
	voter := identity.FromRequest(r, r.URL.Query().Get("voterId"))
	voted, err := h.Polls.CheckVote(r.Context(), idParam(r, "id"), voter)
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, PollCheckResponse{HasVoted: voted})
}

func (h *Handlers) handlePollQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Share.PollQR(r.Context(), idParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondPNG(w, png)
}
