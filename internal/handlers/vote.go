package handlers

import (
	"net/http"
	"strings"

	"github.com/abrezinsky/electionvote/internal/identity"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/services"
)

// candidateFilter reads the statistics/listing filters from the query string
func candidateFilter(r *http.Request) models.CandidateFilter {
	q := r.URL.Query()
	return models.CandidateFilter{
		Constituency:   strings.TrimSpace(q.Get("constituency")),
		CandidacyLevel: strings.TrimSpace(q.Get("candidacyLevel")),
		PartyName:      strings.TrimSpace(q.Get("partyName")),
	}
}

// handleCastVote records a vote for a candidate
func (h *Handlers) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.error(w, r, err)
		return
	}

	result, err := h.Candidates.CastVote(r.Context(), idParam(r, "id"), services.CastVoteRequest{
		VoterID:      req.VoterID,
		VoterEmail:   req.VoterEmail,
		VoterName:    req.VoterName,
		Constituency: req.Constituency,
		IPAddress:    identity.Origin(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.error(w, r, err)
		return
	}

	respondCreated(w, "Vote recorded successfully", result)
}

// handleRemoveVote retracts a vote. voterId may come from the body or the query.
func (h *Handlers) handleRemoveVote(w http.ResponseWriter, r *http.Request) {
	var req RemoveVoteRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.error(w, r, err)
		return
	}
	if req.VoterID == "" {
		req.VoterID = r.URL.Query().Get("voterId")
	}

	result, err := h.Candidates.RemoveVote(r.Context(), idParam(r, "id"), req.VoterID)
	if err != nil {
		h.error(w, r, err)
		return
	}

	respondMessage(w, "Vote removed successfully", result)
}

// handleCheckVote reports whether a voter has voted for a candidate
func (h *Handlers) handleCheckVote(w http.ResponseWriter, r *http.Request) {
	check, err := h.Candidates.CheckVote(r.Context(), idParam(r, "id"), r.URL.Query().Get("voterId"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, check)
}

// handleVoteCount returns a candidate's counter and ledger breakdown
func (h *Handlers) handleVoteCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.Candidates.VoteCount(r.Context(), idParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, count)
}

// handleStatistics returns the voting group with fresh percentages
func (h *Handlers) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Candidates.Statistics(r.Context(), candidateFilter(r))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, stats)
}

// handleListCandidates lists candidates matching the query filters
func (h *Handlers) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	f := candidateFilter(r)
	activeOnly, err := queryBool(r, "activeOnly")
	if err != nil {
		h.error(w, r, err)
		return
	}
	if activeOnly != nil {
		f.ActiveOnly = *activeOnly
	}

	candidates, err := h.Candidates.ListCandidates(r.Context(), f)
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, map[string]interface{}{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

func (h *Handlers) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := h.Candidates.GetCandidate(r.Context(), idParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, c)
}

// handleToggleLike likes or unlikes a candidate for the caller's origin
func (h *Handlers) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	res, err := h.Candidates.ToggleLike(r.Context(), idParam(r, "id"), identity.Origin(r))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, LikeResponse{Likes: res.Likes, IsLiked: res.IsLiked})
}

func (h *Handlers) handleShare(w http.ResponseWriter, r *http.Request) {
	id := idParam(r, "id")
	shares, err := h.Candidates.Share(r.Context(), id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondOK(w, ShareResponse{Shares: shares, URL: h.Share.CandidateURL(id)})
}

// handleCandidateQR serves a QR code linking to the candidate page
func (h *Handlers) handleCandidateQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Share.CandidateQR(r.Context(), idParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	respondPNG(w, png)
}
