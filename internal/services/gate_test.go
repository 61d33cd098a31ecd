package services_test

import (
	"testing"
	"time"

	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/services"
)

func TestPollStateAt(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		isActive bool
		startAt  *time.Time
		endAt    *time.Time
		want     models.PollState
	}{
		{"unbounded active", true, nil, nil, models.PollOpen},
		{"unbounded inactive", false, nil, nil, models.PollClosed},
		{"before start", true, &future, nil, models.PollScheduled},
		{"inactive before start is closed", false, &future, nil, models.PollClosed},
		{"inside window", true, &past, &future, models.PollOpen},
		{"after end", true, &past, &past, models.PollClosed},
		{"only end in future", true, nil, &future, models.PollOpen},
		{"only end in past", true, nil, &past, models.PollClosed},
		{"exactly at start", true, &now, nil, models.PollOpen},
		{"exactly at end", true, nil, &now, models.PollOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := services.PollStateAt(tt.isActive, tt.startAt, tt.endAt, now)
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if open := services.IsOpen(tt.isActive, tt.startAt, tt.endAt, now); open != (tt.want == models.PollOpen) {
				t.Errorf("IsOpen disagrees with state %s", got)
			}
		})
	}
}

func TestCheckCandidateGate(t *testing.T) {
	tests := []struct {
		name    string
		c       models.Candidate
		wantErr error
	}{
		{"open", models.Candidate{VotingEnabled: true, IsActive: true}, nil},
		{"voting disabled", models.Candidate{VotingEnabled: false, IsActive: true}, services.ErrVotingDisabled},
		{"inactive", models.Candidate{VotingEnabled: true, IsActive: false}, services.ErrCandidateInactive},
		{"both closed reports disabled", models.Candidate{}, services.ErrVotingDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := services.CheckCandidateGate(&tt.c); err != tt.wantErr {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCheckPollGate(t *testing.T) {
	now := time.Now()
	open := &models.Poll{IsActive: true}
	if err := services.CheckPollGate(open, now); err != nil {
		t.Errorf("expected open poll to pass, got %v", err)
	}
	scheduled := &models.Poll{IsActive: true, StartAt: timePtr(now.Add(time.Minute))}
	if err := services.CheckPollGate(scheduled, now); err != services.ErrPollClosed {
		t.Errorf("expected scheduled poll to be refused, got %v", err)
	}
}
