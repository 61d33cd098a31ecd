package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/repository"
)

// TallyServiceRepository defines the repository methods needed by TallyService
type TallyServiceRepository interface {
	repository.TallyRepository
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	ListCandidates(ctx context.Context, f models.CandidateFilter) ([]models.Candidate, error)
	GetPoll(ctx context.Context, id string) (*models.Poll, error)
	ListPolls(ctx context.Context, activeOnly bool) ([]models.Poll, error)
}

// reconcileConcurrency bounds parallel subject reconciliation
const reconcileConcurrency = 4

// TallyService maintains the denormalized counters and group percentages.
// Counters are a cache of the ledger: they are bumped atomically after each
// ledger write and repaired by Reconcile when the two drift apart.
type TallyService struct {
	log      logger.Logger
	repo     TallyServiceRepository
	recorder Recorder
	group    singleflight.Group
}

// NewTallyService creates a new TallyService
func NewTallyService(log logger.Logger, repo TallyServiceRepository, recorder Recorder) *TallyService {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &TallyService{log: log, repo: repo, recorder: recorder}
}

// CandidateStat is one row of the statistics response
type CandidateStat struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Photo          string `json:"photo"`
	Party          string `json:"party"`
	Constituency   string `json:"constituency"`
	Votes          int    `json:"votes"`
	VotePercentage string `json:"votePercentage"`
}

// Statistics is the group-statistics view
type Statistics struct {
	TotalVotes      int             `json:"totalVotes"`
	TotalCandidates int             `json:"totalCandidates"`
	Candidates      []CandidateStat `json:"candidates"`
}

// ReconcileResult describes one counter compared against the ledger
type ReconcileResult struct {
	Kind      string `json:"kind"`
	SubjectID string `json:"subjectId"`
	ChoiceID  string `json:"choiceId,omitempty"`
	Counter   int    `json:"counter"`
	Ledger    int    `json:"ledger"`
	Corrected bool   `json:"corrected"`
}

// ReconcileReport aggregates a full reconciliation pass
type ReconcileReport struct {
	Checked   int               `json:"checked"`
	Corrected int               `json:"corrected"`
	Results   []ReconcileResult `json:"results"`
}

// FormatPercentage renders part/total*100 with two decimals, "0.00" when total is 0
func FormatPercentage(part, total int) string {
	if total <= 0 || part <= 0 {
		return "0.00"
	}
	return strconv.FormatFloat(float64(part)/float64(total)*100, 'f', 2, 64)
}

// ComputePercentages returns the group total and each candidate's percentage
func ComputePercentages(candidates []models.Candidate) (int, map[string]string) {
	total := 0
	for _, c := range candidates {
		total += c.Votes
	}
	pcts := make(map[string]string, len(candidates))
	for _, c := range candidates {
		pcts[c.ID] = FormatPercentage(c.Votes, total)
	}
	return total, pcts
}

// CandidateVoted bumps the counter after a ledger insert. A failed bump is
// logged and counted as drift; the returned value is then the pre-read counter plus one.
func (s *TallyService) CandidateVoted(ctx context.Context, c *models.Candidate) int {
	votes, err := s.repo.IncrementVotes(ctx, c.ID)
	if err != nil {
		s.recorder.CounterDrift(KindCandidate)
		s.log.Error("Counter increment failed after ledger insert", "candidate_id", c.ID, "error", err)
		return c.Votes + 1
	}
	return votes
}

// CandidateUnvoted lowers the counter after a ledger delete, floored at zero
func (s *TallyService) CandidateUnvoted(ctx context.Context, c *models.Candidate) int {
	votes, err := s.repo.DecrementVotes(ctx, c.ID)
	if err != nil {
		s.recorder.CounterDrift(KindCandidate)
		s.log.Error("Counter decrement failed after ledger delete", "candidate_id", c.ID, "error", err)
		if c.Votes > 0 {
			return c.Votes - 1
		}
		return 0
	}
	return votes
}

// PollVoted bumps a choice counter after a poll ledger insert
func (s *TallyService) PollVoted(ctx context.Context, pollID, choiceID string) {
	if _, err := s.repo.IncrementChoice(ctx, pollID, choiceID); err != nil {
		s.recorder.CounterDrift(KindPoll)
		s.log.Error("Choice increment failed after ledger insert", "poll_id", pollID, "choice_id", choiceID, "error", err)
	}
}

func filterKey(f models.CandidateFilter) string {
	return strings.Join([]string{
		strings.ToLower(f.Constituency),
		strings.ToLower(f.PartyName),
		f.CandidacyLevel,
	}, "\x00")
}

// RecomputeGroup derives percentages for every voting-enabled, active candidate
// matching the filter and persists those that changed in one batched write.
// Concurrent calls for the same filter share one computation.
func (s *TallyService) RecomputeGroup(ctx context.Context, f models.CandidateFilter) (*Statistics, error) {
	f.VotingOnly = true
	// Callers share the flight, so one caller going away must not cancel it
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(filterKey(f), func() (interface{}, error) {
		return s.recompute(shared, f)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Statistics), nil
}

func (s *TallyService) recompute(ctx context.Context, f models.CandidateFilter) (*Statistics, error) {
	start := time.Now()
	defer func() { s.recorder.ObserveRecompute(time.Since(start)) }()

	candidates, err := s.repo.ListCandidates(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}

	total, pcts := ComputePercentages(candidates)

	changed := make(map[string]string)
	for i := range candidates {
		c := &candidates[i]
		if c.VotePercentage != pcts[c.ID] {
			changed[c.ID] = pcts[c.ID]
			c.VotePercentage = pcts[c.ID]
		}
	}
	if len(changed) > 0 {
		// Stored percentages are a cache; the response is computed either way.
		if err := s.repo.UpdateVotePercentages(ctx, changed); err != nil {
			s.log.Warn("Failed to persist vote percentages", "count", len(changed), "error", err)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Votes > candidates[j].Votes
	})

	stats := &Statistics{
		TotalVotes:      total,
		TotalCandidates: len(candidates),
		Candidates:      make([]CandidateStat, 0, len(candidates)),
	}
	for _, c := range candidates {
		stats.Candidates = append(stats.Candidates, CandidateStat{
			ID:             c.ID,
			Name:           c.FullName,
			Photo:          c.ProfilePhoto,
			Party:          c.PartyName,
			Constituency:   c.Constituency,
			Votes:          c.Votes,
			VotePercentage: c.VotePercentage,
		})
	}
	return stats, nil
}

// ReconcileCandidate rewrites the candidate counter from its ledger count.
// The count and the write happen in one storage operation, so votes cast
// while it runs are kept. Running it twice in a row is a no-op the second time.
func (s *TallyService) ReconcileCandidate(ctx context.Context, candidateID string) (*ReconcileResult, error) {
	c, err := s.repo.GetCandidate(ctx, candidateID)
	if err == repository.ErrNotFound {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, err
	}

	ledger, corrected, err := s.repo.ReconcileVoteCount(ctx, candidateID)
	if err == repository.ErrNotFound {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reconciling counter: %w", err)
	}

	res := &ReconcileResult{Kind: KindCandidate, SubjectID: candidateID, Counter: c.Votes, Ledger: ledger, Corrected: corrected}
	if corrected {
		s.recorder.Reconciled(KindCandidate)
		s.log.Warn("Candidate counter reconciled", "candidate_id", candidateID, "counter", c.Votes, "ledger", ledger)
	}
	return res, nil
}

// ReconcilePoll rewrites every choice counter of a poll from its ledger
func (s *TallyService) ReconcilePoll(ctx context.Context, pollID string) ([]ReconcileResult, error) {
	p, err := s.repo.GetPoll(ctx, pollID)
	if err == repository.ErrNotFound {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, err
	}

	results := make([]ReconcileResult, 0, len(p.Choices))
	for _, ch := range p.Choices {
		ledger, corrected, err := s.repo.ReconcileChoiceCount(ctx, pollID, ch.ID)
		if err != nil {
			return nil, fmt.Errorf("reconciling choice counter: %w", err)
		}
		res := ReconcileResult{Kind: KindPoll, SubjectID: pollID, ChoiceID: ch.ID, Counter: ch.VotesCount, Ledger: ledger, Corrected: corrected}
		if corrected {
			s.recorder.Reconciled(KindPoll)
			s.log.Warn("Choice counter reconciled", "poll_id", pollID, "choice_id", ch.ID, "counter", res.Counter, "ledger", ledger)
		}
		results = append(results, res)
	}
	return results, nil
}

// ReconcileAll reconciles every candidate and poll with bounded parallelism
func (s *TallyService) ReconcileAll(ctx context.Context) (*ReconcileReport, error) {
	candidates, err := s.repo.ListCandidates(ctx, models.CandidateFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	polls, err := s.repo.ListPolls(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("listing polls: %w", err)
	}

	candidateResults := make([]*ReconcileResult, len(candidates))
	pollResults := make([][]ReconcileResult, len(polls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for i := range candidates {
		i := i
		g.Go(func() error {
			res, err := s.ReconcileCandidate(gctx, candidates[i].ID)
			candidateResults[i] = res
			return err
		})
	}
	for i := range polls {
		i := i
		g.Go(func() error {
			res, err := s.ReconcilePoll(gctx, polls[i].ID)
			pollResults[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &ReconcileReport{}
	add := func(r ReconcileResult) {
		report.Checked++
		if r.Corrected {
			report.Corrected++
		}
		report.Results = append(report.Results, r)
	}
	for _, r := range candidateResults {
		add(*r)
	}
	for _, rs := range pollResults {
		for _, r := range rs {
			add(r)
		}
	}

	s.log.Info("Reconciliation finished", "checked", report.Checked, "corrected", report.Corrected)
	return report, nil
}
