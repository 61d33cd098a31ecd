package services

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/repository"
)

// GuardRepository is the ledger surface the duplicate guard reads
type GuardRepository interface {
	HasVoted(ctx context.Context, candidateID, voterID string) (bool, error)
	HasPollVote(ctx context.Context, pollID string, voter models.VoterIdentity) (bool, error)
}

// Guard enforces at most one vote per voter per subject. Its pre-checks are
// advisory; the storage uniqueness constraint is authoritative and Translate
// maps its rejection onto the same duplicate error.
type Guard struct {
	log      logger.Logger
	repo     GuardRepository
	recorder Recorder
}

// NewGuard creates a new Guard
func NewGuard(log logger.Logger, repo GuardRepository, recorder Recorder) *Guard {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Guard{log: log, repo: repo, recorder: recorder}
}

// HasVotedCandidate reports whether voterID holds a ledger record for the candidate
func (g *Guard) HasVotedCandidate(ctx context.Context, candidateID, voterID string) (bool, error) {
	voted, err := g.repo.HasVoted(ctx, candidateID, voterID)
	if err != nil {
		return false, fmt.Errorf("checking candidate ledger: %w", err)
	}
	return voted, nil
}

// CheckCandidate returns ErrAlreadyVotedCandidate when the pre-check finds a record
func (g *Guard) CheckCandidate(ctx context.Context, candidateID, voterID string) error {
	voted, err := g.HasVotedCandidate(ctx, candidateID, voterID)
	if err != nil {
		return err
	}
	if voted {
		g.duplicate(KindCandidate, "precheck", "candidate_id", candidateID, "voter_id", voterID)
		return ErrAlreadyVotedCandidate
	}
	return nil
}

// HasVotedPoll reports whether the identity holds a ledger record for the poll
func (g *Guard) HasVotedPoll(ctx context.Context, pollID string, voter models.VoterIdentity) (bool, error) {
	voted, err := g.repo.HasPollVote(ctx, pollID, voter)
	if err != nil {
		return false, fmt.Errorf("checking poll ledger: %w", err)
	}
	return voted, nil
}

// AuthorizePoll rejects anonymous identities on polls that require a token
func (g *Guard) AuthorizePoll(p *models.Poll, voter models.VoterIdentity) error {
	if voter.IsAnonymous() && !p.AllowAnonymous {
		return ErrAuthRequired
	}
	return nil
}

// CheckPoll returns ErrAlreadyVotedPoll when the pre-check finds a record
func (g *Guard) CheckPoll(ctx context.Context, pollID string, voter models.VoterIdentity) error {
	voted, err := g.HasVotedPoll(ctx, pollID, voter)
	if err != nil {
		return err
	}
	if voted {
		g.duplicate(KindPoll, "precheck", "poll_id", pollID, "identity", voter.Key())
		return ErrAlreadyVotedPoll
	}
	return nil
}

// TranslateCandidate maps a storage uniqueness rejection to ErrAlreadyVotedCandidate
func (g *Guard) TranslateCandidate(err error, candidateID, voterID string) error {
	if stderrors.Is(err, repository.ErrDuplicateVote) {
		g.duplicate(KindCandidate, "constraint", "candidate_id", candidateID, "voter_id", voterID)
		return ErrAlreadyVotedCandidate
	}
	return fmt.Errorf("recording candidate vote: %w", err)
}

// TranslatePoll maps a storage uniqueness rejection to ErrAlreadyVotedPoll
func (g *Guard) TranslatePoll(err error, pollID string, voter models.VoterIdentity) error {
	if stderrors.Is(err, repository.ErrDuplicateVote) {
		g.duplicate(KindPoll, "constraint", "poll_id", pollID, "identity", voter.Key())
		return ErrAlreadyVotedPoll
	}
	return fmt.Errorf("recording poll vote: %w", err)
}

func (g *Guard) duplicate(kind, detectedBy string, args ...any) {
	g.recorder.VoteRejected(kind, "duplicate_"+detectedBy)
	g.log.Info("Duplicate vote rejected", append(args, "detected_by", detectedBy)...)
}
