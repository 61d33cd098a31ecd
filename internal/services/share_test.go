package services_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/services"
	"github.com/abrezinsky/electionvote/internal/testutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestShareService_URLs(t *testing.T) {
	svc := services.NewShareService(logger.Discard(), nil, "https://vote.example.np/")

	if got := svc.CandidateURL("abc"); got != "https://vote.example.np/candidates/abc" {
		t.Errorf("unexpected candidate URL %s", got)
	}
	if got := svc.PollURL("p1"); got != "https://vote.example.np/polls/p1" {
		t.Errorf("unexpected poll URL %s", got)
	}
}

func TestShareService_QRCodes(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	ctx := context.Background()
	svc := services.NewShareService(logger.Discard(), repo, "http://localhost:8081")
	c := testutil.SeedCandidate(t, repo, "A")
	p := testutil.SeedPoll(t, repo, "P", true, "x", "y")

	png, err := svc.CandidateQR(ctx, c.ID)
	if err != nil {
		t.Fatalf("CandidateQR failed: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Error("expected PNG data")
	}

	png, err = svc.PollQR(ctx, p.ID)
	if err != nil || !bytes.HasPrefix(png, pngMagic) {
		t.Errorf("PollQR failed: %v", err)
	}

	if _, err := svc.CandidateQR(ctx, "missing"); err != services.ErrCandidateNotFound {
		t.Errorf("expected ErrCandidateNotFound, got %v", err)
	}
	if _, err := svc.PollQR(ctx, "missing"); err != services.ErrPollNotFound {
		t.Errorf("expected ErrPollNotFound, got %v", err)
	}
}
