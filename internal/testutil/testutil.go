package testutil

import (
	"context"
	"testing"

	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// CandidateOption customizes a seeded candidate
type CandidateOption func(*models.Candidate)

func WithParty(party string) CandidateOption {
	return func(c *models.Candidate) { c.PartyName = party }
}

func WithConstituency(constituency string) CandidateOption {
	return func(c *models.Candidate) { c.Constituency = constituency }
}

func WithLevel(level string) CandidateOption {
	return func(c *models.Candidate) { c.CandidacyLevel = level }
}

func WithVotes(votes int) CandidateOption {
	return func(c *models.Candidate) { c.Votes = votes }
}

func VotingDisabled() CandidateOption {
	return func(c *models.Candidate) { c.VotingEnabled = false }
}

func Inactive() CandidateOption {
	return func(c *models.Candidate) { c.IsActive = false }
}

// SeedCandidate inserts an active, voting-enabled candidate
func SeedCandidate(t *testing.T, repo repository.CandidateRepository, name string, opts ...CandidateOption) *models.Candidate {
	t.Helper()

	c := &models.Candidate{
		FullName:      name,
		VotingEnabled: true,
		IsActive:      true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := repo.CreateCandidate(context.Background(), c); err != nil {
		t.Fatalf("failed to seed candidate %q: %v", name, err)
	}
	return c
}

// SeedPoll inserts an active poll open without bounds
func SeedPoll(t *testing.T, repo repository.PollRepository, title string, allowAnonymous bool, labels ...string) *models.Poll {
	t.Helper()

	p := &models.Poll{
		Title:            title,
		IsActive:         true,
		AllowAnonymous:   allowAnonymous,
		MaxVotesPerVoter: 1,
	}
	for _, l := range labels {
		p.Choices = append(p.Choices, models.Choice{Label: l})
	}
	if err := repo.CreatePoll(context.Background(), p); err != nil {
		t.Fatalf("failed to seed poll %q: %v", title, err)
	}
	return p
}
