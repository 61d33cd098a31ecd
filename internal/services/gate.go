package services

import (
	"time"

	"github.com/abrezinsky/electionvote/internal/models"
)

// PollStateAt derives a poll's state at now. isActive=false closes the poll
// from any state; nil bounds are unbounded.
func PollStateAt(isActive bool, startAt, endAt *time.Time, now time.Time) models.PollState {
	if !isActive {
		return models.PollClosed
	}
	if startAt != nil && now.Before(*startAt) {
		return models.PollScheduled
	}
	if endAt != nil && now.After(*endAt) {
		return models.PollClosed
	}
	return models.PollOpen
}

// IsOpen reports whether a poll with these settings accepts votes at now
func IsOpen(isActive bool, startAt, endAt *time.Time, now time.Time) bool {
	return PollStateAt(isActive, startAt, endAt, now) == models.PollOpen
}

// PollState is PollStateAt applied to a poll
func PollState(p *models.Poll, now time.Time) models.PollState {
	return PollStateAt(p.IsActive, p.StartAt, p.EndAt, now)
}

// CheckCandidateGate returns a Forbidden error unless the candidate accepts votes
func CheckCandidateGate(c *models.Candidate) error {
	if !c.VotingEnabled {
		return ErrVotingDisabled
	}
	if !c.IsActive {
		return ErrCandidateInactive
	}
	return nil
}

// CheckPollGate returns ErrPollClosed unless the poll is open at now
func CheckPollGate(p *models.Poll, now time.Time) error {
	if PollState(p, now) != models.PollOpen {
		return ErrPollClosed
	}
	return nil
}
