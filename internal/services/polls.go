package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/repository"
)

// PollServiceRepository defines the repository methods needed by PollService
type PollServiceRepository interface {
	repository.PollRepository
	repository.PollLedger
}

// PollService handles poll lifecycle and poll vote casting
type PollService struct {
	log         logger.Logger
	repo        PollServiceRepository
	guard       *Guard
	tally       *TallyService
	recorder    Recorder
	broadcaster Broadcaster
	now         func() time.Time
}

// NewPollService creates a new PollService
func NewPollService(log logger.Logger, repo PollServiceRepository, guard *Guard, tally *TallyService, recorder Recorder) *PollService {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &PollService{
		log:      log,
		repo:     repo,
		guard:    guard,
		tally:    tally,
		recorder: recorder,
		now:      time.Now,
	}
}

// SetBroadcaster sets the broadcaster for sending poll updates to clients
func (s *PollService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetClock replaces the wall clock used for gate evaluation
func (s *PollService) SetClock(now func() time.Time) {
	s.now = now
}

// CreatePollInput holds the fields accepted when creating a poll. Nil
// pointers take the defaults: active, anonymous voting allowed.
type CreatePollInput struct {
	Title            string
	Description      string
	Choices          []string
	StartAt          *time.Time
	EndAt            *time.Time
	IsActive         *bool
	AllowAnonymous   *bool
	MaxVotesPerVoter int
}

// PollView is a poll with its state derived at read time
type PollView struct {
	models.Poll
	State models.PollState `json:"state"`
}

// ChoiceResult is one row of poll results
type ChoiceResult struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Votes      int    `json:"votes"`
	Percentage string `json:"percentage"`
}

// PollResults is the poll results view
type PollResults struct {
	PollID     string         `json:"pollId"`
	Title      string         `json:"title"`
	TotalVotes int            `json:"totalVotes"`
	Choices    []ChoiceResult `json:"choices"`
}

// PollVoteResult is returned for an accepted poll vote
type PollVoteResult struct {
	VoteID string `json:"voteId"`
}

func (s *PollService) view(p *models.Poll) *PollView {
	return &PollView{Poll: *p, State: PollState(p, s.now())}
}

func (s *PollService) loadPoll(ctx context.Context, id string) (*models.Poll, error) {
	p, err := s.repo.GetPoll(ctx, id)
	if err == repository.ErrNotFound {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading poll: %w", err)
	}
	return p, nil
}

// CreatePoll validates and stores a new poll
func (s *PollService) CreatePoll(ctx context.Context, in CreatePollInput) (*PollView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrPollTitleRequired
	}

	var choices []models.Choice
	for _, label := range in.Choices {
		if label = strings.TrimSpace(label); label != "" {
			choices = append(choices, models.Choice{Label: label})
		}
	}
	if len(choices) < 2 {
		return nil, ErrPollTooFewChoices
	}

	if in.StartAt != nil && in.EndAt != nil && !in.EndAt.After(*in.StartAt) {
		return nil, ErrPollWindowInvalid
	}

	maxVotes := in.MaxVotesPerVoter
	if maxVotes == 0 {
		maxVotes = 1
	}
	if maxVotes != 1 {
		return nil, ErrMaxVotesUnsupported
	}

	p := &models.Poll{
		Title:            title,
		Description:      strings.TrimSpace(in.Description),
		Choices:          choices,
		StartAt:          in.StartAt,
		EndAt:            in.EndAt,
		IsActive:         true,
		AllowAnonymous:   true,
		MaxVotesPerVoter: maxVotes,
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.AllowAnonymous != nil {
		p.AllowAnonymous = *in.AllowAnonymous
	}

	if err := s.repo.CreatePoll(ctx, p); err != nil {
		return nil, fmt.Errorf("creating poll: %w", err)
	}
	s.log.Info("Poll created", "poll_id", p.ID, "title", p.Title, "choices", len(p.Choices))
	return s.view(p), nil
}

// ListPolls returns polls newest first, optionally only active ones
func (s *PollService) ListPolls(ctx context.Context, activeOnly bool) ([]PollView, error) {
	polls, err := s.repo.ListPolls(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	views := make([]PollView, 0, len(polls))
	for i := range polls {
		views = append(views, *s.view(&polls[i]))
	}
	return views, nil
}

// GetPoll returns one poll with its derived state
func (s *PollService) GetPoll(ctx context.Context, id string) (*PollView, error) {
	p, err := s.loadPoll(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(p), nil
}

// Vote casts a poll vote for the resolved identity
func (s *PollService) Vote(ctx context.Context, pollID, choiceID string, voter models.VoterIdentity, userAgent string) (*PollVoteResult, error) {
	p, err := s.loadPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	if err := CheckPollGate(p, s.now()); err != nil {
		s.recorder.VoteRejected(KindPoll, "gate")
		return nil, err
	}

	choiceID = strings.TrimSpace(choiceID)
	if choiceID == "" {
		s.recorder.VoteRejected(KindPoll, "validation")
		return nil, ErrChoiceRequired
	}

	if err := s.guard.AuthorizePoll(p, voter); err != nil {
		s.recorder.VoteRejected(KindPoll, "auth")
		return nil, err
	}

	if _, ok := p.Choice(choiceID); !ok {
		s.recorder.VoteRejected(KindPoll, "validation")
		return nil, ErrInvalidChoice
	}

	if err := s.guard.CheckPoll(ctx, p.ID, voter); err != nil {
		return nil, err
	}

	vote := &models.PollVote{
		PollID:    p.ID,
		ChoiceID:  choiceID,
		VoterID:   voter.Token(),
		IPAddress: voter.Origin(),
		UserAgent: userAgent,
	}
	if err := s.repo.RecordPollVote(ctx, vote); err != nil {
		return nil, s.guard.TranslatePoll(err, p.ID, voter)
	}

	s.tally.PollVoted(ctx, p.ID, choiceID)
	s.recorder.VoteAccepted(KindPoll)
	s.log.Info("Poll vote recorded", "poll_id", p.ID, "choice_id", choiceID, "identity", voter.Key())

	if s.broadcaster != nil {
		if results, err := s.Results(ctx, p.ID); err == nil {
			s.broadcaster.BroadcastPollTally(results)
		}
	}
	return &PollVoteResult{VoteID: vote.ID}, nil
}

// Results returns per-choice counts and percentages
func (s *PollService) Results(ctx context.Context, pollID string) (*PollResults, error) {
	p, err := s.loadPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return BuildPollResults(p), nil
}

// BuildPollResults derives the results view from the choice counters
func BuildPollResults(p *models.Poll) *PollResults {
	total := p.TotalVotes()
	res := &PollResults{
		PollID:     p.ID,
		Title:      p.Title,
		TotalVotes: total,
		Choices:    make([]ChoiceResult, 0, len(p.Choices)),
	}
	for _, c := range p.Choices {
		res.Choices = append(res.Choices, ChoiceResult{
			ID:         c.ID,
			Label:      c.Label,
			Votes:      c.VotesCount,
			Percentage: FormatPercentage(c.VotesCount, total),
		})
	}
	return res
}

// CheckVote reports whether the identity has voted on the poll
func (s *PollService) CheckVote(ctx context.Context, pollID string, voter models.VoterIdentity) (bool, error) {
	p, err := s.loadPoll(ctx, pollID)
	if err != nil {
		return false, err
	}
	return s.guard.HasVotedPoll(ctx, p.ID, voter)
}

// SetActive sets the poll admin override, or flips it when active is nil
func (s *PollService) SetActive(ctx context.Context, pollID string, active *bool) (*PollView, error) {
	p, err := s.loadPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	next := !p.IsActive
	if active != nil {
		next = *active
	}
	if err := s.repo.SetPollActive(ctx, p.ID, next); err != nil {
		return nil, fmt.Errorf("updating poll: %w", err)
	}
	p.IsActive = next
	v := s.view(p)
	s.log.Info("Poll toggled", "poll_id", p.ID, "is_active", next, "state", v.State)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastPollState(p.ID, v.State)
	}
	return v, nil
}

// Reconcile repairs the poll's choice counters from the ledger
func (s *PollService) Reconcile(ctx context.Context, pollID string) ([]ReconcileResult, error) {
	return s.tally.ReconcilePoll(ctx, pollID)
}

// PollStates returns the current state of every poll; the poll watcher diffs
// successive snapshots to emit transitions.
func (s *PollService) PollStates(ctx context.Context) (map[string]models.PollState, error) {
	polls, err := s.repo.ListPolls(ctx, false)
	if err != nil {
		return nil, err
	}
	now := s.now()
	states := make(map[string]models.PollState, len(polls))
	for i := range polls {
		states[polls[i].ID] = PollState(&polls[i], now)
	}
	return states, nil
}
