package handlers_test

import (
	"bytes"
	stderrors "errors"
	"net/http"
	"strings"
	"testing"

	"github.com/abrezinsky/electionvote/internal/services"
	"github.com/abrezinsky/electionvote/internal/testutil"
)

func TestCastVote_Success(t *testing.T) {
	s := newTestServer(t)
	c := testutil.SeedCandidate(t, s.repo, "Ram Bahadur")

	rec := s.do("POST", "/api/candidates/"+c.ID+"/vote", map[string]string{
		"voterId":    "voter-1",
		"voterEmail": "Voter@Example.org",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result services.CastVoteResult
	resp := decodeData(t, rec, &result)
	if !resp.Success || resp.Message == "" {
		t.Errorf("unexpected envelope %+v", resp)
	}
	if result.CandidateID != c.ID || result.CandidateName != "Ram Bahadur" || result.TotalVotes != 1 || result.VoteID == "" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestCastVote_Duplicate(t *testing.T) {
	s := newTestServer(t)
	c := testutil.SeedCandidate(t, s.repo, "A")
	path := "/api/candidates/" + c.ID + "/vote"

	if rec := s.do("POST", path, map[string]string{"voterId": "v1"}); rec.Code != http.StatusCreated {
		t.Fatalf("first vote: %d", rec.Code)
	}
	expectError(t, s.do("POST", path, map[string]string{"voterId": "v1"}), http.StatusBadRequest, "ALREADY_VOTED")

	count := s.do("GET", "/api/candidates/"+c.ID+"/votes/count", nil)
	var vc services.VoteCount
	decodeData(t, count, &vc)
	if vc.Votes != 1 || vc.Stats.TotalVotes != 1 {
		t.Errorf("duplicate must not change the counters, got %+v", vc)
	}
}

func TestCastVote_Rejections(t *testing.T) {
	s := newTestServer(t)
	open := testutil.SeedCandidate(t, s.repo, "Open")
	disabled := testutil.SeedCandidate(t, s.repo, "Disabled", testutil.VotingDisabled())
	inactive := testutil.SeedCandidate(t, s.repo, "Inactive", testutil.Inactive())

	tests := []struct {
		name   string
		id     string
		body   interface{}
		status int
		code   string
	}{
		{"missing voterId", open.ID, map[string]string{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"blank voterId", open.ID, map[string]string{"voterId": "   "}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty body", open.ID, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed JSON", open.ID, "{not json", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"voting disabled", disabled.ID, map[string]string{"voterId": "v1"}, http.StatusForbidden, "FORBIDDEN"},
		// The gate is evaluated before the voter id
		{"disabled without voterId", disabled.ID, map[string]string{}, http.StatusForbidden, "FORBIDDEN"},
		{"inactive", inactive.ID, map[string]string{"voterId": "v1"}, http.StatusForbidden, "FORBIDDEN"},
		{"unknown candidate", "does-not-exist", map[string]string{"voterId": "v1"}, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do("POST", "/api/candidates/"+tt.id+"/vote", tt.body)
			expectError(t, rec, tt.status, tt.code)
		})
	}

	stats, _ := s.repo.VoteStats(t.Context(), disabled.ID)
	if stats.TotalVotes != 0 {
		t.Errorf("rejected votes must not reach the ledger, got %+v", stats)
	}
}

func TestCastVote_StorageFailureHidesCause(t *testing.T) {
	s := newTestServer(t)
	c := testutil.SeedCandidate(t, s.repo, "A")
	s.mock.RecordVoteError = stderrors.New("disk I/O error at /var/lib/voting.db")

	rec := s.do("POST", "/api/candidates/"+c.ID+"/vote", map[string]string{"voterId": "v1"})
	expectError(t, rec, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR")
	if strings.Contains(rec.Body.String(), "disk I/O") {
		t.Errorf("storage details leaked: %s", rec.Body.String())
	}
}

func TestRemoveVote(t *testing.T) {
	s := newTestServer(t)
	c := testutil.SeedCandidate(t, s.repo, "A")
	path := "/api/candidates/" + c.ID + "/vote"
	s.do("POST", path, map[string]string{"voterId": "v1"})
	s.do("POST", path, map[string]string{"voterId": "v2"})

	rec := s.do("DELETE", path, map[string]string{"voterId": "v1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result services.RemoveVoteResult
	decodeData(t, rec, &result)
	if result.TotalVotes != 1 {
		t.Errorf("expected 1 remaining vote, got %d", result.TotalVotes)
	}

	// Query string fallback
	if rec := s.do("DELETE", path+"?voterId=v2", nil); rec.Code != http.StatusOK {
		t.Errorf("expected query voterId to work, got %d", rec.Code)
	}

	expectError(t, s.do("DELETE", path, map[string]string{"voterId": "v1"}), http.StatusNotFound, "NOT_FOUND")
	expectError(t, s.do("DELETE", path, map[string]string{}), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestCheckVote(t *testing.T) {
	s := newTestServer(t)
	c := testutil.SeedCandidate(t, s.repo, "A")
	s.do("POST", "/api/candidates/"+c.ID+"/vote", map[string]string{"voterId": "v1"})

	var check services.VoteCheck
	decodeData(t, s.do("GET", "/api/candidates/"+c.ID+"/vote/check?voterId=v1", nil), &check)
	if !check.HasVoted || check.TotalVotes != 1 || !check.VotingEnabled || check.CandidateName != "A" {
		t.Errorf("unexpected check %+v", check)
	}

	decodeData(t, s.do("GET", "/api/candidates/"+c.ID+"/vote/check?voterId=v2", nil), &check)
	if check.HasVoted {
		t.Error("v2 has not voted")
	}

	expectError(t, s.do("GET", "/api/candidates/"+c.ID+"/vote/check", nil), http.StatusBadRequest, "VALIDATION_ERROR")
	expectError(t, s.do("GET", "/api/candidates/missing/vote/check?voterId=v1", nil), http.StatusNotFound, "NOT_FOUND")
}

func TestStatistics(t *testing.T) {
	s := newTestServer(t)
	a := testutil.SeedCandidate(t, s.repo, "A", testutil.WithVotes(3), testutil.WithConstituency("Kathmandu-1"), testutil.WithParty("Nepali Congress"))
	testutil.SeedCandidate(t, s.repo, "B", testutil.WithVotes(1), testutil.WithConstituency("Kathmandu-1"), testutil.WithParty("UML"))
	testutil.SeedCandidate(t, s.repo, "C", testutil.WithVotes(5), testutil.WithConstituency("Lalitpur-2"))

	rec := s.do("GET", "/api/candidates/votes/statistics?constituency=kathmandu", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats services.Statistics
	decodeData(t, rec, &stats)
	if stats.TotalVotes != 4 || stats.TotalCandidates != 2 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.Candidates[0].ID != a.ID || stats.Candidates[0].VotePercentage != "75.00" {
		t.Errorf("expected A first at 75.00, got %+v", stats.Candidates[0])
	}

	decodeData(t, s.do("GET", "/api/candidates/votes/statistics?partyName=congress", nil), &stats)
	if stats.TotalCandidates != 1 || stats.Candidates[0].VotePercentage != "100.00" {
		t.Errorf("party filter failed: %+v", stats)
	}

	s.mock.ListCandidatesError = stderrors.New("no such table: candidates")
	expectError(t, s.do("GET", "/api/candidates/votes/statistics", nil), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR")
}

func TestListAndGetCandidates(t *testing.T) {
	s := newTestServer(t)
	a := testutil.SeedCandidate(t, s.repo, "A")
	testutil.SeedCandidate(t, s.repo, "B", testutil.Inactive())

	var list struct {
		Count int `json:"count"`
	}
	decodeData(t, s.do("GET", "/api/candidates", nil), &list)
	if list.Count != 2 {
		t.Errorf("expected 2 candidates, got %d", list.Count)
	}
	decodeData(t, s.do("GET", "/api/candidates?activeOnly=true", nil), &list)
	if list.Count != 1 {
		t.Errorf("expected 1 active candidate, got %d", list.Count)
	}
	expectError(t, s.do("GET", "/api/candidates?activeOnly=maybe", nil), http.StatusBadRequest, "VALIDATION_ERROR")

	if rec := s.do("GET", "/api/candidates/"+a.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	expectError(t, s.do("GET", "/api/candidates/missing", nil), http.StatusNotFound, "NOT_FOUND")
}

func TestLikeShareAndQR(t *testing.T) {
	s := newTestServer(t)
	c := testutil.SeedCandidate(t, s.repo, "A")

	var like struct {
		Likes   int  `json:"likes"`
		IsLiked bool `json:"isLiked"`
	}
	decodeData(t, s.do("POST", "/api/candidates/"+c.ID+"/like", nil), &like)
	if like.Likes != 1 || !like.IsLiked {
		t.Errorf("expected liked, got %+v", like)
	}
	decodeData(t, s.do("POST", "/api/candidates/"+c.ID+"/like", nil), &like)
	if like.Likes != 0 || like.IsLiked {
		t.Errorf("second like from the same origin must unlike, got %+v", like)
	}

	var share struct {
		Shares int    `json:"shares"`
		URL    string `json:"url"`
	}
	decodeData(t, s.do("POST", "/api/candidates/"+c.ID+"/share", nil), &share)
	if share.Shares != 1 || share.URL != "http://vote.example.org/candidates/"+c.ID {
		t.Errorf("unexpected share %+v", share)
	}

	rec := s.do("GET", "/api/candidates/"+c.ID+"/qr", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected PNG, got %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
	expectError(t, s.do("GET", "/api/candidates/missing/qr", nil), http.StatusNotFound, "NOT_FOUND")
}
