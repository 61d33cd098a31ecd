package repository

import (
	"context"

	"github.com/abrezinsky/electionvote/internal/models"
)

// CandidateRepository defines candidate subject operations
type CandidateRepository interface {
	CreateCandidate(ctx context.Context, c *models.Candidate) error
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	ListCandidates(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, error)
	UpsertCandidateByExternalID(ctx context.Context, c *models.Candidate) (created bool, err error)
	SetVotingEnabled(ctx context.Context, id string, enabled bool) error
	SetCandidateActive(ctx context.Context, id string, active bool) error
	IncrementShares(ctx context.Context, id string) (int, error)
	ToggleLike(ctx context.Context, candidateID, clientID string) (likes int, liked bool, err error)
}

// TallyRepository defines the denormalized counter operations
type TallyRepository interface {
	IncrementVotes(ctx context.Context, candidateID string) (int, error)
	DecrementVotes(ctx context.Context, candidateID string) (int, error)
	ReconcileVoteCount(ctx context.Context, candidateID string) (votes int, corrected bool, err error)
	UpdateVotePercentages(ctx context.Context, percentages map[string]string) error
	IncrementChoice(ctx context.Context, pollID, choiceID string) (int, error)
	SetChoiceCount(ctx context.Context, pollID, choiceID string, votes int) error
	ReconcileChoiceCount(ctx context.Context, pollID, choiceID string) (votes int, corrected bool, err error)
}

// VoteLedger defines candidate ledger operations
type VoteLedger interface {
	RecordVote(ctx context.Context, v *models.Vote) error
	HasVoted(ctx context.Context, candidateID, voterID string) (bool, error)
	RemoveVote(ctx context.Context, candidateID, voterID string) (bool, error)
	CountVotes(ctx context.Context, candidateID string) (int, error)
	VoteStats(ctx context.Context, candidateID string) (models.VoteStats, error)
	ListVotes(ctx context.Context, candidateID string, q models.VoterQuery) ([]models.Vote, int, error)
	SetVoteVerified(ctx context.Context, candidateID, voteID string, verified bool) error
}

// PollRepository defines poll subject operations
type PollRepository interface {
	CreatePoll(ctx context.Context, p *models.Poll) error
	GetPoll(ctx context.Context, id string) (*models.Poll, error)
	ListPolls(ctx context.Context, activeOnly bool) ([]models.Poll, error)
	SetPollActive(ctx context.Context, id string, active bool) error
}

// PollLedger defines poll ledger operations
type PollLedger interface {
	RecordPollVote(ctx context.Context, v *models.PollVote) error
	HasPollVote(ctx context.Context, pollID string, voter models.VoterIdentity) (bool, error)
	CountPollVotes(ctx context.Context, pollID string) (map[string]int, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	CandidateRepository
	TallyRepository
	VoteLedger
	PollRepository
	PollLedger
	Ping(ctx context.Context) error
	Close() error
}

// Ensure both stores implement all interfaces
var (
	_ FullRepository = (*Repository)(nil)
	_ FullRepository = (*MongoRepository)(nil)
)
