package services_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/abrezinsky/electionvote/internal/errors"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/services"
	"github.com/abrezinsky/electionvote/internal/testutil"
)

// TestCastVote_DuplicateScenario casts v1, v1 again, then v2
func TestCastVote_DuplicateScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "Sita Sharma")

	res, err := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1"})
	if err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if res.TotalVotes != 1 || res.VoteID == "" || res.CandidateName != "Sita Sharma" {
		t.Errorf("unexpected result %+v", res)
	}

	_, err = f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1"})
	if err != services.ErrAlreadyVotedCandidate {
		t.Fatalf("expected duplicate, got %v", err)
	}
	got, _ := f.repo.GetCandidate(ctx, c.ID)
	if got.Votes != 1 {
		t.Errorf("duplicate must not change counter, got %d", got.Votes)
	}

	res, err = f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v2"})
	if err != nil {
		t.Fatalf("second voter failed: %v", err)
	}
	if res.TotalVotes != 2 {
		t.Errorf("expected 2 votes, got %d", res.TotalVotes)
	}
	if f.broadcaster.tallies[c.ID] != 2 {
		t.Errorf("expected broadcast of 2, got %d", f.broadcaster.tallies[c.ID])
	}
	if f.recorder.count("accepted:candidate") != 2 || f.recorder.count("rejected:candidate:duplicate_precheck") != 1 {
		t.Errorf("unexpected recorder events %v", f.recorder.events)
	}
}

// TestCastVote_GateLeavesNoLedgerRow checks disabled and inactive candidates
func TestCastVote_GateLeavesNoLedgerRow(t *testing.T) {
	tests := []struct {
		name    string
		opts    []testutil.CandidateOption
		wantErr error
	}{
		{"voting disabled", []testutil.CandidateOption{testutil.VotingDisabled()}, services.ErrVotingDisabled},
		{"inactive", []testutil.CandidateOption{testutil.Inactive()}, services.ErrCandidateInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			c := testutil.SeedCandidate(t, f.repo, "Gated", tt.opts...)

			_, err := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1"})
			if err != tt.wantErr {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if errors.KindOf(err) != errors.ErrForbidden {
				t.Errorf("expected forbidden kind, got %s", errors.KindOf(err))
			}
			if n, _ := f.repo.CountVotes(ctx, c.ID); n != 0 {
				t.Errorf("expected no ledger rows, got %d", n)
			}
		})
	}
}

func TestCastVote_GateCheckedBeforeVoterID(t *testing.T) {
	f := newFixture(t)
	c := testutil.SeedCandidate(t, f.repo, "Gated", testutil.VotingDisabled())

	_, err := f.candidates.CastVote(context.Background(), c.ID, services.CastVoteRequest{})
	if err != services.ErrVotingDisabled {
		t.Errorf("expected gate error before validation, got %v", err)
	}
}

func TestCastVote_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")

	if _, err := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "   "}); err != services.ErrVoterIDRequired {
		t.Errorf("expected ErrVoterIDRequired, got %v", err)
	}
	if _, err := f.candidates.CastVote(ctx, "missing", services.CastVoteRequest{VoterID: "v1"}); err != services.ErrCandidateNotFound {
		t.Errorf("expected ErrCandidateNotFound, got %v", err)
	}
}

func TestCastVote_NormalizesEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")

	_, err := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1", VoterEmail: "  Voter@Example.COM "})
	if err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	votes, _, _ := f.repo.ListVotes(ctx, c.ID, models.VoterQuery{Page: 1, Limit: 10})
	if len(votes) != 1 || votes[0].VoterEmail != "voter@example.com" {
		t.Errorf("expected normalized email, got %+v", votes)
	}
}

// TestCastVote_ConstraintCatchesLostPrecheck simulates the pre-check race
func TestCastVote_ConstraintCatchesLostPrecheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")

	if _, err := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1"}); err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}

	f.mock.HasVotedAlwaysFalse = true
	_, err := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1"})
	if err != services.ErrAlreadyVotedCandidate {
		t.Fatalf("expected constraint to map to duplicate, got %v", err)
	}
	if f.recorder.count("rejected:candidate:duplicate_constraint") != 1 {
		t.Errorf("expected constraint rejection event, got %v", f.recorder.events)
	}
	got, _ := f.repo.GetCandidate(ctx, c.ID)
	if got.Votes != 1 {
		t.Errorf("expected counter 1, got %d", got.Votes)
	}
}

// TestCastVote_ConcurrentSameVoter fires many casts for one voter at once
func TestCastVote_ConcurrentSameVoter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")
	f.mock.HasVotedAlwaysFalse = true

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, duplicates := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "same"})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				accepted++
			case services.ErrAlreadyVotedCandidate:
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 || duplicates != workers-1 {
		t.Errorf("expected 1 accepted and %d duplicates, got %d / %d", workers-1, accepted, duplicates)
	}
	got, _ := f.repo.GetCandidate(ctx, c.ID)
	if n, _ := f.repo.CountVotes(ctx, c.ID); n != 1 || got.Votes != 1 {
		t.Errorf("expected ledger=1 counter=1, got %d / %d", n, got.Votes)
	}
}

// TestCastVote_ConcurrentDistinctVoters checks counters stay exact under load
func TestCastVote_ConcurrentDistinctVoters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")

	const workers = 30
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: fmt.Sprintf("voter-%d", i)}); err != nil {
				t.Errorf("CastVote failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := f.repo.GetCandidate(ctx, c.ID)
	if got.Votes != workers {
		t.Errorf("expected %d votes, got %d", workers, got.Votes)
	}
}

// TestCastVote_IncrementFailureKeepsLedger checks the accepted drift path
func TestCastVote_IncrementFailureKeepsLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A", testutil.WithVotes(4))

	f.mock.IncrementVotesError = stderrors.New("database is locked")
	res, err := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1"})
	if err != nil {
		t.Fatalf("vote must succeed when only the counter fails, got %v", err)
	}
	if res.TotalVotes != 5 {
		t.Errorf("expected reported total 5, got %d", res.TotalVotes)
	}
	if f.recorder.count("drift:candidate") != 1 {
		t.Errorf("expected drift event, got %v", f.recorder.events)
	}
	if n, _ := f.repo.CountVotes(ctx, c.ID); n != 1 {
		t.Errorf("expected ledger row to remain, got %d", n)
	}
}

func TestCastVote_RecordFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	c := testutil.SeedCandidate(t, f.repo, "A")
	f.mock.RecordVoteError = stderrors.New("disk full")

	_, err := f.candidates.CastVote(context.Background(), c.ID, services.CastVoteRequest{VoterID: "v1"})
	if err == nil || errors.KindOf(err) != errors.ErrInternal {
		t.Errorf("expected internal error, got %v", err)
	}
}

// TestRemoveVote_Symmetry checks cast then remove returns the counter to its prior value
func TestRemoveVote_Symmetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")

	f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1"})
	f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v2"})

	res, err := f.candidates.RemoveVote(ctx, c.ID, "v1")
	if err != nil {
		t.Fatalf("RemoveVote failed: %v", err)
	}
	if res.TotalVotes != 1 {
		t.Errorf("expected 1, got %d", res.TotalVotes)
	}

	if _, err := f.candidates.RemoveVote(ctx, c.ID, "v1"); err != services.ErrVoteNotFound {
		t.Errorf("expected ErrVoteNotFound, got %v", err)
	}
	if _, err := f.candidates.RemoveVote(ctx, c.ID, ""); err != services.ErrVoterIDRequired {
		t.Errorf("expected ErrVoterIDRequired, got %v", err)
	}

	// The voter may vote again after retracting
	if _, err := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1"}); err != nil {
		t.Errorf("re-vote after removal failed: %v", err)
	}
}

func TestRemoveVote_FloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")

	// Ledger row without a counter bump: counter is already 0
	f.repo.RecordVote(ctx, &models.Vote{CandidateID: c.ID, VoterID: "v1"})

	res, err := f.candidates.RemoveVote(ctx, c.ID, "v1")
	if err != nil {
		t.Fatalf("RemoveVote failed: %v", err)
	}
	if res.TotalVotes != 0 {
		t.Errorf("expected counter floored at 0, got %d", res.TotalVotes)
	}
}

func TestCheckVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")
	f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1"})

	check, err := f.candidates.CheckVote(ctx, c.ID, "v1")
	if err != nil {
		t.Fatalf("CheckVote failed: %v", err)
	}
	if !check.HasVoted || check.TotalVotes != 1 || !check.VotingEnabled || check.CandidateName != "A" {
		t.Errorf("unexpected check %+v", check)
	}

	check, _ = f.candidates.CheckVote(ctx, c.ID, "v2")
	if check.HasVoted {
		t.Error("v2 has not voted")
	}

	if _, err := f.candidates.CheckVote(ctx, "missing", "v1"); err != services.ErrCandidateNotFound {
		t.Errorf("expected ErrCandidateNotFound, got %v", err)
	}
	if _, err := f.candidates.CheckVote(ctx, c.ID, ""); err != services.ErrVoterIDRequired {
		t.Errorf("expected ErrVoterIDRequired, got %v", err)
	}
}

func TestVoteCount_IncludesLedgerStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")

	res, _ := f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v1"})
	f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: "v2"})
	if err := f.candidates.VerifyVote(ctx, c.ID, res.VoteID, true); err != nil {
		t.Fatalf("VerifyVote failed: %v", err)
	}

	count, err := f.candidates.VoteCount(ctx, c.ID)
	if err != nil {
		t.Fatalf("VoteCount failed: %v", err)
	}
	want := models.VoteStats{TotalVotes: 2, VerifiedVotes: 1, UnverifiedVotes: 1}
	if count.Votes != 2 || count.Stats != want {
		t.Errorf("unexpected count %+v", count)
	}

	if err := f.candidates.VerifyVote(ctx, c.ID, "missing", true); err != services.ErrVoteNotFound {
		t.Errorf("expected ErrVoteNotFound, got %v", err)
	}
}

func TestSetVotingEnabled_ToggleAndExplicit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")

	got, err := f.candidates.SetVotingEnabled(ctx, c.ID, nil)
	if err != nil || got.VotingEnabled {
		t.Fatalf("expected flip to disabled, got %+v (%v)", got, err)
	}
	got, _ = f.candidates.SetVotingEnabled(ctx, c.ID, nil)
	if !got.VotingEnabled {
		t.Error("expected flip back to enabled")
	}
	got, _ = f.candidates.SetVotingEnabled(ctx, c.ID, boolPtr(true))
	if !got.VotingEnabled {
		t.Error("explicit true must keep enabled")
	}

	got, _ = f.candidates.SetActive(ctx, c.ID, boolPtr(false))
	if got.IsActive {
		t.Error("expected inactive")
	}
	stored, _ := f.repo.GetCandidate(ctx, c.ID)
	if stored.IsActive || !stored.VotingEnabled {
		t.Errorf("unexpected stored gates %+v", stored)
	}
}

func TestListVoters_Defaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")
	for i := 0; i < 3; i++ {
		f.candidates.CastVote(ctx, c.ID, services.CastVoteRequest{VoterID: fmt.Sprintf("v%d", i)})
	}

	page, err := f.candidates.ListVoters(ctx, c.ID, models.VoterQuery{})
	if err != nil {
		t.Fatalf("ListVoters failed: %v", err)
	}
	if page.Page != 1 || page.Limit != services.DefaultVoterPageSize || page.Total != 3 || page.Pages != 1 || len(page.Votes) != 3 {
		t.Errorf("unexpected page %+v", page)
	}

	page, _ = f.candidates.ListVoters(ctx, c.ID, models.VoterQuery{Page: 2, Limit: 2})
	if len(page.Votes) != 1 || page.Pages != 2 {
		t.Errorf("unexpected second page %+v", page)
	}

	page, _ = f.candidates.ListVoters(ctx, c.ID, models.VoterQuery{Limit: 10000})
	if page.Limit != services.MaxVoterPageSize {
		t.Errorf("expected limit clamp, got %d", page.Limit)
	}
}

func TestToggleLikeAndShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testutil.SeedCandidate(t, f.repo, "A")

	like, err := f.candidates.ToggleLike(ctx, c.ID, "1.1.1.1")
	if err != nil || like.Likes != 1 || !like.IsLiked {
		t.Fatalf("unexpected like %+v (%v)", like, err)
	}
	like, _ = f.candidates.ToggleLike(ctx, c.ID, "1.1.1.1")
	if like.Likes != 0 || like.IsLiked {
		t.Errorf("expected unlike, got %+v", like)
	}
	if _, err := f.candidates.ToggleLike(ctx, "missing", "1.1.1.1"); err != services.ErrCandidateNotFound {
		t.Errorf("expected ErrCandidateNotFound, got %v", err)
	}

	shares, err := f.candidates.Share(ctx, c.ID)
	if err != nil || shares != 1 {
		t.Errorf("expected 1 share, got %d (%v)", shares, err)
	}
	if _, err := f.candidates.Share(ctx, "missing"); err != services.ErrCandidateNotFound {
		t.Errorf("expected ErrCandidateNotFound, got %v", err)
	}
}

func TestCreateCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.candidates.CreateCandidate(ctx, models.Candidate{FullName: "  New  ", Votes: 99, VotingEnabled: true, IsActive: true})
	if err != nil {
		t.Fatalf("CreateCandidate failed: %v", err)
	}
	if c.ID == "" || c.FullName != "New" || c.Votes != 0 || c.VotePercentage != "0.00" {
		t.Errorf("unexpected candidate %+v", c)
	}

	if _, err := f.candidates.CreateCandidate(ctx, models.Candidate{}); err != services.ErrCandidateNameRequired {
		t.Errorf("expected ErrCandidateNameRequired, got %v", err)
	}

	list, _ := f.candidates.ListCandidates(ctx, models.CandidateFilter{})
	if len(list) != 1 {
		t.Errorf("expected 1 candidate, got %d", len(list))
	}
}

func TestListCandidates_EmptyIsNotNil(t *testing.T) {
	f := newFixture(t)
	list, err := f.candidates.ListCandidates(context.Background(), models.CandidateFilter{})
	if err != nil || list == nil {
		t.Errorf("expected empty non-nil slice, got %v (%v)", list, err)
	}
}
