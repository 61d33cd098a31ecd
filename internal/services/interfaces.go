package services

import (
	"context"
	"time"

	"github.com/abrezinsky/electionvote/internal/models"
)

// Subject kinds used in metrics labels and reconciliation reports
const (
	KindCandidate = "candidate"
	KindPoll      = "poll"
)

// Broadcaster defines the interface for broadcasting messages to clients
type Broadcaster interface {
	BroadcastVoteTally(candidateID string, totalVotes int)
	BroadcastPollTally(results *PollResults)
	BroadcastPollState(pollID string, state models.PollState)
}

// Recorder receives vote path events for metrics
type Recorder interface {
	VoteAccepted(kind string)
	VoteRejected(kind, reason string)
	CounterDrift(kind string)
	Reconciled(kind string)
	ObserveRecompute(d time.Duration)
}

// NopRecorder discards every event
type NopRecorder struct{}

func (NopRecorder) VoteAccepted(string)             {}
func (NopRecorder) VoteRejected(string, string)     {}
func (NopRecorder) CounterDrift(string)             {}
func (NopRecorder) Reconciled(string)               {}
func (NopRecorder) ObserveRecompute(time.Duration) {}

// CandidateVotingServicer defines the interface for candidate voting operations
type CandidateVotingServicer interface {
	CastVote(ctx context.Context, candidateID string, req CastVoteRequest) (*CastVoteResult, error)
	RemoveVote(ctx context.Context, candidateID, voterID string) (*RemoveVoteResult, error)
	CheckVote(ctx context.Context, candidateID, voterID string) (*VoteCheck, error)
	VoteCount(ctx context.Context, candidateID string) (*VoteCount, error)
	Statistics(ctx context.Context, f models.CandidateFilter) (*Statistics, error)
	SetVotingEnabled(ctx context.Context, candidateID string, enabled *bool) (*models.Candidate, error)
	SetActive(ctx context.Context, candidateID string, active *bool) (*models.Candidate, error)
	ListVoters(ctx context.Context, candidateID string, q models.VoterQuery) (*VoterPage, error)
	VerifyVote(ctx context.Context, candidateID, voteID string, verified bool) error
	ToggleLike(ctx context.Context, candidateID, origin string) (*LikeResult, error)
	Share(ctx context.Context, candidateID string) (int, error)
	CreateCandidate(ctx context.Context, c models.Candidate) (*models.Candidate, error)
	GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error)
	ListCandidates(ctx context.Context, f models.CandidateFilter) ([]models.Candidate, error)
	Reconcile(ctx context.Context, candidateID string) (*ReconcileResult, error)
	SetBroadcaster(b Broadcaster)
}

// PollServicer defines the interface for poll operations
type PollServicer interface {
	CreatePoll(ctx context.Context, in CreatePollInput) (*PollView, error)
	ListPolls(ctx context.Context, activeOnly bool) ([]PollView, error)
	GetPoll(ctx context.Context, id string) (*PollView, error)
	Vote(ctx context.Context, pollID, choiceID string, voter models.VoterIdentity, userAgent string) (*PollVoteResult, error)
	Results(ctx context.Context, pollID string) (*PollResults, error)
	CheckVote(ctx context.Context, pollID string, voter models.VoterIdentity) (bool, error)
	SetActive(ctx context.Context, pollID string, active *bool) (*PollView, error)
	Reconcile(ctx context.Context, pollID string) ([]ReconcileResult, error)
	PollStates(ctx context.Context) (map[string]models.PollState, error)
	SetBroadcaster(b Broadcaster)
}

// TallyServicer defines the interface for counter maintenance
type TallyServicer interface {
	RecomputeGroup(ctx context.Context, f models.CandidateFilter) (*Statistics, error)
	ReconcileCandidate(ctx context.Context, candidateID string) (*ReconcileResult, error)
	ReconcilePoll(ctx context.Context, pollID string) ([]ReconcileResult, error)
	ReconcileAll(ctx context.Context) (*ReconcileReport, error)
}

// FeedServicer defines the interface for roster import
type FeedServicer interface {
	SyncFromFeed(ctx context.Context, feedURL string) (*FeedSyncResult, error)
}

// ShareServicer defines the interface for share links and QR codes
type ShareServicer interface {
	CandidateURL(candidateID string) string
	PollURL(pollID string) string
	CandidateQR(ctx context.Context, candidateID string) ([]byte, error)
	PollQR(ctx context.Context, pollID string) ([]byte, error)
}

// Ensure concrete types implement interfaces
var (
	_ CandidateVotingServicer = (*CandidateVotingService)(nil)
	_ PollServicer            = (*PollService)(nil)
	_ TallyServicer           = (*TallyService)(nil)
	_ FeedServicer            = (*FeedService)(nil)
	_ ShareServicer           = (*ShareService)(nil)
	_ Recorder                = NopRecorder{}
)
