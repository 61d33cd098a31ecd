package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/repository"
)

// CandidateVotingRepository defines the repository methods needed by CandidateVotingService
type CandidateVotingRepository interface {
	repository.CandidateRepository
	repository.VoteLedger
}

// Voter listing bounds
const (
	DefaultVoterPageSize = 50
	MaxVoterPageSize     = 200
)

// CandidateVotingService handles candidate vote casting and its read models
type CandidateVotingService struct {
	log         logger.Logger
	repo        CandidateVotingRepository
	guard       *Guard
	tally       *TallyService
	recorder    Recorder
	broadcaster Broadcaster
}

// NewCandidateVotingService creates a new CandidateVotingService
func NewCandidateVotingService(log logger.Logger, repo CandidateVotingRepository, guard *Guard, tally *TallyService, recorder Recorder) *CandidateVotingService {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &CandidateVotingService{
		log:      log,
		repo:     repo,
		guard:    guard,
		tally:    tally,
		recorder: recorder,
	}
}

// SetBroadcaster sets the broadcaster for sending tally updates to clients
func (s *CandidateVotingService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// CastVoteRequest carries the voter-supplied fields plus request metadata
type CastVoteRequest struct {
	VoterID      string
	VoterEmail   string
	VoterName    string
	Constituency string
	IPAddress    string
	UserAgent    string
}

// CastVoteResult is returned for an accepted candidate vote
type CastVoteResult struct {
	CandidateID   string `json:"candidateId"`
	CandidateName string `json:"candidateName"`
	TotalVotes    int    `json:"totalVotes"`
	VoteID        string `json:"voteId"`
}

// RemoveVoteResult is returned after a vote is retracted
type RemoveVoteResult struct {
	CandidateID string `json:"candidateId"`
	TotalVotes  int    `json:"totalVotes"`
}

// VoteCheck reports whether a voter has voted for a candidate
type VoteCheck struct {
	HasVoted      bool   `json:"hasVoted"`
	CandidateID   string `json:"candidateId"`
	CandidateName string `json:"candidateName"`
	TotalVotes    int    `json:"totalVotes"`
	VotingEnabled bool   `json:"votingEnabled"`
}

// VoteCount is a candidate's counter with its ledger breakdown
type VoteCount struct {
	CandidateID    string           `json:"candidateId"`
	CandidateName  string           `json:"candidateName"`
	Votes          int              `json:"votes"`
	VotePercentage string           `json:"votePercentage"`
	VotingEnabled  bool             `json:"votingEnabled"`
	Stats          models.VoteStats `json:"stats"`
}

// VoterPage is one page of a candidate's ledger
type VoterPage struct {
	Votes []models.Vote `json:"votes"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Pages int           `json:"pages"`
}

// LikeResult is the outcome of a like toggle
type LikeResult struct {
	Likes   int  `json:"likes"`
	IsLiked bool `json:"isLiked"`
}

func (s *CandidateVotingService) loadCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	c, err := s.repo.GetCandidate(ctx, id)
	if err == repository.ErrNotFound {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading candidate: %w", err)
	}
	return c, nil
}

// CastVote runs gate, guard, ledger and tally in that order
func (s *CandidateVotingService) CastVote(ctx context.Context, candidateID string, req CastVoteRequest) (*CastVoteResult, error) {
	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	if err := CheckCandidateGate(c); err != nil {
		s.recorder.VoteRejected(KindCandidate, "gate")
		return nil, err
	}

	voterID := strings.TrimSpace(req.VoterID)
	if voterID == "" {
		s.recorder.VoteRejected(KindCandidate, "validation")
		return nil, ErrVoterIDRequired
	}

	if err := s.guard.CheckCandidate(ctx, c.ID, voterID); err != nil {
		return nil, err
	}

	vote := &models.Vote{
		CandidateID:  c.ID,
		VoterID:      voterID,
		VoterEmail:   strings.ToLower(strings.TrimSpace(req.VoterEmail)),
		VoterName:    strings.TrimSpace(req.VoterName),
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		Constituency: strings.TrimSpace(req.Constituency),
	}
	if err := s.repo.RecordVote(ctx, vote); err != nil {
		return nil, s.guard.TranslateCandidate(err, c.ID, voterID)
	}

	total := s.tally.CandidateVoted(ctx, c)
	s.recorder.VoteAccepted(KindCandidate)
	s.log.Info("Vote recorded", "candidate_id", c.ID, "voter_id", voterID, "total_votes", total)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastVoteTally(c.ID, total)
	}

	return &CastVoteResult{
		CandidateID:   c.ID,
		CandidateName: c.FullName,
		TotalVotes:    total,
		VoteID:        vote.ID,
	}, nil
}

// RemoveVote retracts a voter's vote and decrements the counter
func (s *CandidateVotingService) RemoveVote(ctx context.Context, candidateID, voterID string) (*RemoveVoteResult, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return nil, ErrVoterIDRequired
	}

	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	removed, err := s.repo.RemoveVote(ctx, c.ID, voterID)
	if err != nil {
		return nil, fmt.Errorf("removing vote: %w", err)
	}
	if !removed {
		return nil, ErrVoteNotFound
	}

	total := s.tally.CandidateUnvoted(ctx, c)
	s.log.Info("Vote removed", "candidate_id", c.ID, "voter_id", voterID, "total_votes", total)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastVoteTally(c.ID, total)
	}
	return &RemoveVoteResult{CandidateID: c.ID, TotalVotes: total}, nil
}

// CheckVote reports whether voterID has voted for the candidate
func (s *CandidateVotingService) CheckVote(ctx context.Context, candidateID, voterID string) (*VoteCheck, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return nil, ErrVoterIDRequired
	}

	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	voted, err := s.guard.HasVotedCandidate(ctx, c.ID, voterID)
	if err != nil {
		return nil, err
	}
	return &VoteCheck{
		HasVoted:      voted,
		CandidateID:   c.ID,
		CandidateName: c.FullName,
		TotalVotes:    c.Votes,
		VotingEnabled: c.VotingEnabled,
	}, nil
}

// VoteCount returns the counter alongside the ledger-derived stats
func (s *CandidateVotingService) VoteCount(ctx context.Context, candidateID string) (*VoteCount, error) {
	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.VoteStats(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("loading vote stats: %w", err)
	}
	return &VoteCount{
		CandidateID:    c.ID,
		CandidateName:  c.FullName,
		Votes:          c.Votes,
		VotePercentage: c.VotePercentage,
		VotingEnabled:  c.VotingEnabled,
		Stats:          stats,
	}, nil
}

// Statistics returns the voting group matching the filter with fresh percentages
func (s *CandidateVotingService) Statistics(ctx context.Context, f models.CandidateFilter) (*Statistics, error) {
	return s.tally.RecomputeGroup(ctx, f)
}

// SetVotingEnabled sets the voting gate, or flips it when enabled is nil
func (s *CandidateVotingService) SetVotingEnabled(ctx context.Context, candidateID string, enabled *bool) (*models.Candidate, error) {
	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	next := !c.VotingEnabled
	if enabled != nil {
		next = *enabled
	}
	if err := s.repo.SetVotingEnabled(ctx, c.ID, next); err != nil {
		return nil, fmt.Errorf("updating voting gate: %w", err)
	}
	c.VotingEnabled = next
	s.log.Info("Candidate voting toggled", "candidate_id", c.ID, "voting_enabled", next)
	return c, nil
}

// SetActive sets the candidate activity flag, or flips it when active is nil
func (s *CandidateVotingService) SetActive(ctx context.Context, candidateID string, active *bool) (*models.Candidate, error) {
	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	next := !c.IsActive
	if active != nil {
		next = *active
	}
	if err := s.repo.SetCandidateActive(ctx, c.ID, next); err != nil {
		return nil, fmt.Errorf("updating candidate activity: %w", err)
	}
	c.IsActive = next
	s.log.Info("Candidate activity toggled", "candidate_id", c.ID, "is_active", next)
	return c, nil
}

// ListVoters pages through a candidate's ledger, newest first
func (s *CandidateVotingService) ListVoters(ctx context.Context, candidateID string, q models.VoterQuery) (*VoterPage, error) {
	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultVoterPageSize
	}
	if q.Limit > MaxVoterPageSize {
		q.Limit = MaxVoterPageSize
	}

	votes, total, err := s.repo.ListVotes(ctx, c.ID, q)
	if err != nil {
		return nil, fmt.Errorf("listing votes: %w", err)
	}
	if votes == nil {
		votes = []models.Vote{}
	}
	return &VoterPage{
		Votes: votes,
		Total: total,
		Page:  q.Page,
		Limit: q.Limit,
		Pages: (total + q.Limit - 1) / q.Limit,
	}, nil
}

// VerifyVote sets the verification flag of one ledger record
func (s *CandidateVotingService) VerifyVote(ctx context.Context, candidateID, voteID string, verified bool) error {
	err := s.repo.SetVoteVerified(ctx, candidateID, voteID, verified)
	if err == repository.ErrNotFound {
		return ErrVoteNotFound
	}
	return err
}

// ToggleLike likes or unlikes a candidate for an origin fingerprint
func (s *CandidateVotingService) ToggleLike(ctx context.Context, candidateID, origin string) (*LikeResult, error) {
	if _, err := s.loadCandidate(ctx, candidateID); err != nil {
		return nil, err
	}
	likes, liked, err := s.repo.ToggleLike(ctx, candidateID, origin)
	if err == repository.ErrNotFound {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggling like: %w", err)
	}
	return &LikeResult{Likes: likes, IsLiked: liked}, nil
}

// Share increments the share counter
func (s *CandidateVotingService) Share(ctx context.Context, candidateID string) (int, error) {
	shares, err := s.repo.IncrementShares(ctx, candidateID)
	if err == repository.ErrNotFound {
		return 0, ErrCandidateNotFound
	}
	return shares, err
}

// CreateCandidate inserts a minimal candidate; new candidates accept votes
func (s *CandidateVotingService) CreateCandidate(ctx context.Context, c models.Candidate) (*models.Candidate, error) {
	c.FullName = strings.TrimSpace(c.FullName)
	if c.FullName == "" {
		return nil, ErrCandidateNameRequired
	}
	c.ID = ""
	c.Votes = 0
	c.Likes = 0
	c.Shares = 0
	c.VotePercentage = ""
	if err := s.repo.CreateCandidate(ctx, &c); err != nil {
		return nil, fmt.Errorf("creating candidate: %w", err)
	}
	s.log.Info("Candidate created", "candidate_id", c.ID, "name", c.FullName)
	return &c, nil
}

// GetCandidate returns one candidate
func (s *CandidateVotingService) GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error) {
	return s.loadCandidate(ctx, candidateID)
}

// ListCandidates returns candidates matching the filter
func (s *CandidateVotingService) ListCandidates(ctx context.Context, f models.CandidateFilter) ([]models.Candidate, error) {
	candidates, err := s.repo.ListCandidates(ctx, f)
	if err != nil {
		return nil, err
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	return candidates, nil
}

// Reconcile repairs the candidate counter from the ledger
func (s *CandidateVotingService) Reconcile(ctx context.Context, candidateID string) (*ReconcileResult, error) {
	res, err := s.tally.ReconcileCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if res.Corrected && s.broadcaster != nil {
		s.broadcaster.BroadcastVoteTally(candidateID, res.Ledger)
	}
	return res, nil
}
