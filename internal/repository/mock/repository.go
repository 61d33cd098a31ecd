package mock

import (
	"context"
	"sync/atomic"

	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.IncrementVotesError = errors.New("database error")
//	svc := services.NewCandidateVotingService(log, mockRepo, tally)
//	_, err := svc.CastVote(ctx, req)
//	// the ledger row exists, the counter lags
type Repository struct {
	repository.FullRepository

	// ===== Candidate Errors =====
	CreateCandidateError    error
	GetCandidateError       error
	ListCandidatesError     error
	UpsertCandidateError    error
	SetVotingEnabledError   error
	SetCandidateActiveError error
	IncrementSharesError    error
	ToggleLikeError         error

	// ===== Tally Errors =====
	IncrementVotesError        error
	DecrementVotesError        error
	ReconcileVoteCountError    error
	UpdateVotePercentagesError error
	IncrementChoiceError       error
	SetChoiceCountError        error
	ReconcileChoiceCountError  error

	// ===== Ledger Errors =====
	RecordVoteError      error
	HasVotedError        error
	RemoveVoteError      error
	CountVotesError      error
	VoteStatsError       error
	ListVotesError       error
	SetVoteVerifiedError error

	// ===== Poll Errors =====
	CreatePollError     error
	GetPollError        error
	ListPollsError      error
	SetPollActiveError  error
	RecordPollVoteError error
	HasPollVoteError    error
	CountPollVotesError error

	// HasVotedAlwaysFalse simulates the pre-check losing a race: the guard
	// sees no vote and the storage constraint must catch the duplicate.
	HasVotedAlwaysFalse bool

	// UpdateVotePercentagesCalls counts batched percentage writes
	UpdateVotePercentagesCalls atomic.Int64
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== Candidate Methods =====

func (m *Repository) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	if m.CreateCandidateError != nil {
		return m.CreateCandidateError
	}
	return m.FullRepository.CreateCandidate(ctx, c)
}

func (m *Repository) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	if m.GetCandidateError != nil {
		return nil, m.GetCandidateError
	}
	return m.FullRepository.GetCandidate(ctx, id)
}

func (m *Repository) ListCandidates(ctx context.Context, f models.CandidateFilter) ([]models.Candidate, error) {
	if m.ListCandidatesError != nil {
		return nil, m.ListCandidatesError
	}
	return m.FullRepository.ListCandidates(ctx, f)
}

func (m *Repository) UpsertCandidateByExternalID(ctx context.Context, c *models.Candidate) (bool, error) {
	if m.UpsertCandidateError != nil {
		return false, m.UpsertCandidateError
	}
	return m.FullRepository.UpsertCandidateByExternalID(ctx, c)
}

func (m *Repository) SetVotingEnabled(ctx context.Context, id string, enabled bool) error {
	if m.SetVotingEnabledError != nil {
		return m.SetVotingEnabledError
	}
	return m.FullRepository.SetVotingEnabled(ctx, id, enabled)
}

func (m *Repository) SetCandidateActive(ctx context.Context, id string, active bool) error {
	if m.SetCandidateActiveError != nil {
		return m.SetCandidateActiveError
	}
	return m.FullRepository.SetCandidateActive(ctx, id, active)
}

func (m *Repository) IncrementShares(ctx context.Context, id string) (int, error) {
	if m.IncrementSharesError != nil {
		return 0, m.IncrementSharesError
	}
	return m.FullRepository.IncrementShares(ctx, id)
}

func (m *Repository) ToggleLike(ctx context.Context, candidateID, clientID string) (int, bool, error) {
	if m.ToggleLikeError != nil {
		return 0, false, m.ToggleLikeError
	}
	return m.FullRepository.ToggleLike(ctx, candidateID, clientID)
}

// ===== Tally Methods =====

func (m *Repository) IncrementVotes(ctx context.Context, candidateID string) (int, error) {
	if m.IncrementVotesError != nil {
		return 0, m.IncrementVotesError
	}
	return m.FullRepository.IncrementVotes(ctx, candidateID)
}

func (m *Repository) DecrementVotes(ctx context.Context, candidateID string) (int, error) {
	if m.DecrementVotesError != nil {
		return 0, m.DecrementVotesError
	}
	return m.FullRepository.DecrementVotes(ctx, candidateID)
}

func (m *Repository) ReconcileVoteCount(ctx context.Context, candidateID string) (int, bool, error) {
	if m.ReconcileVoteCountError != nil {
		return 0, false, m.ReconcileVoteCountError
	}
	return m.FullRepository.ReconcileVoteCount(ctx, candidateID)
}

func (m *Repository) UpdateVotePercentages(ctx context.Context, percentages map[string]string) error {
	m.UpdateVotePercentagesCalls.Add(1)
	if m.UpdateVotePercentagesError != nil {
		return m.UpdateVotePercentagesError
	}
	return m.FullRepository.UpdateVotePercentages(ctx, percentages)
}

func (m *Repository) IncrementChoice(ctx context.Context, pollID, choiceID string) (int, error) {
	if m.IncrementChoiceError != nil {
		return 0, m.IncrementChoiceError
	}
	return m.FullRepository.IncrementChoice(ctx, pollID, choiceID)
}

func (m *Repository) SetChoiceCount(ctx context.Context, pollID, choiceID string, votes int) error {
	if m.SetChoiceCountError != nil {
		return m.SetChoiceCountError
	}
	return m.FullRepository.SetChoiceCount(ctx, pollID, choiceID, votes)
}

func (m *Repository) ReconcileChoiceCount(ctx context.Context, pollID, choiceID string) (int, bool, error) {
	if m.ReconcileChoiceCountError != nil {
		return 0, false, m.ReconcileChoiceCountError
	}
	return m.FullRepository.ReconcileChoiceCount(ctx, pollID, choiceID)
}

// ===== Ledger Methods =====

func (m *Repository) RecordVote(ctx context.Context, v *models.Vote) error {
	if m.RecordVoteError != nil {
		return m.RecordVoteError
	}
	return m.FullRepository.RecordVote(ctx, v)
}

func (m *Repository) HasVoted(ctx context.Context, candidateID, voterID string) (bool, error) {
	if m.HasVotedError != nil {
		return false, m.HasVotedError
	}
	if m.HasVotedAlwaysFalse {
		return false, nil
	}
	return m.FullRepository.HasVoted(ctx, candidateID, voterID)
}

func (m *Repository) RemoveVote(ctx context.Context, candidateID, voterID string) (bool, error) {
	if m.RemoveVoteError != nil {
		return false, m.RemoveVoteError
	}
	return m.FullRepository.RemoveVote(ctx, candidateID, voterID)
}

func (m *Repository) CountVotes(ctx context.Context, candidateID string) (int, error) {
	if m.CountVotesError != nil {
		return 0, m.CountVotesError
	}
	return m.FullRepository.CountVotes(ctx, candidateID)
}

func (m *Repository) VoteStats(ctx context.Context, candidateID string) (models.VoteStats, error) {
	if m.VoteStatsError != nil {
		return models.VoteStats{}, m.VoteStatsError
	}
	return m.FullRepository.VoteStats(ctx, candidateID)
}

func (m *Repository) ListVotes(ctx context.Context, candidateID string, q models.VoterQuery) ([]models.Vote, int, error) {
	if m.ListVotesError != nil {
		return nil, 0, m.ListVotesError
	}
	return m.FullRepository.ListVotes(ctx, candidateID, q)
}

func (m *Repository) SetVoteVerified(ctx context.Context, candidateID, voteID string, verified bool) error {
	if m.SetVoteVerifiedError != nil {
		return m.SetVoteVerifiedError
	}
	return m.FullRepository.SetVoteVerified(ctx, candidateID, voteID, verified)
}

// ===== Poll Methods =====

func (m *Repository) CreatePoll(ctx context.Context, p *models.Poll) error {
	if m.CreatePollError != nil {
		return m.CreatePollError
	}
	return m.FullRepository.CreatePoll(ctx, p)
}

func (m *Repository) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	if m.GetPollError != nil {
		return nil, m.GetPollError
	}
	return m.FullRepository.GetPoll(ctx, id)
}

func (m *Repository) ListPolls(ctx context.Context, activeOnly bool) ([]models.Poll, error) {
	if m.ListPollsError != nil {
		return nil, m.ListPollsError
	}
	return m.FullRepository.ListPolls(ctx, activeOnly)
}

func (m *Repository) SetPollActive(ctx context.Context, id string, active bool) error {
	if m.SetPollActiveError != nil {
		return m.SetPollActiveError
	}
	return m.FullRepository.SetPollActive(ctx, id, active)
}

func (m *Repository) RecordPollVote(ctx context.Context, v *models.PollVote) error {
	if m.RecordPollVoteError != nil {
		return m.RecordPollVoteError
	}
	return m.FullRepository.RecordPollVote(ctx, v)
}

func (m *Repository) HasPollVote(ctx context.Context, pollID string, voter models.VoterIdentity) (bool, error) {
	if m.HasPollVoteError != nil {
		return false, m.HasPollVoteError
	}
	if m.HasVotedAlwaysFalse {
		return false, nil
	}
	return m.FullRepository.HasPollVote(ctx, pollID, voter)
}

func (m *Repository) CountPollVotes(ctx context.Context, pollID string) (map[string]int, error) {
	if m.CountPollVotesError != nil {
		return nil, m.CountPollVotesError
	}
	return m.FullRepository.CountPollVotes(ctx, pollID)
}
