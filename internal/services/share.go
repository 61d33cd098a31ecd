package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/repository"
)

const qrSize = 256

// ShareRepository defines the repository methods needed by ShareService
type ShareRepository interface {
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	GetPoll(ctx context.Context, id string) (*models.Poll, error)
}

// ShareService builds public links and QR codes for candidates and polls
type ShareService struct {
	log       logger.Logger
	repo      ShareRepository
	publicURL string
}

// NewShareService creates a new ShareService
func NewShareService(log logger.Logger, repo ShareRepository, publicURL string) *ShareService {
	return &ShareService{log: log, repo: repo, publicURL: strings.TrimSuffix(publicURL, "/")}
}

// CandidateURL is the public page of a candidate
func (s *ShareService) CandidateURL(candidateID string) string {
	return fmt.Sprintf("%s/candidates/%s", s.publicURL, candidateID)
}

// PollURL is the public page of a poll
func (s *ShareService) PollURL(pollID string) string {
	return fmt.Sprintf("%s/polls/%s", s.publicURL, pollID)
}

// CandidateQR returns a PNG QR code of the candidate's public URL
func (s *ShareService) CandidateQR(ctx context.Context, candidateID string) ([]byte, error) {
	_, err := s.repo.GetCandidate(ctx, candidateID)
	if err == repository.ErrNotFound {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(s.CandidateURL(candidateID), qrcode.Medium, qrSize)
}

// PollQR returns a PNG QR code of the poll's public URL
func (s *ShareService) PollQR(ctx context.Context, pollID string) ([]byte, error) {
	_, err := s.repo.GetPoll(ctx, pollID)
	if err == repository.ErrNotFound {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(s.PollURL(pollID), qrcode.Medium, qrSize)
}
