package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/pkg/electionfeed"
)

// FeedServiceRepository defines the repository methods needed by FeedService
type FeedServiceRepository interface {
	UpsertCandidateByExternalID(ctx context.Context, c *models.Candidate) (bool, error)
}

// FeedService imports the candidate roster from the election feed
type FeedService struct {
	log    logger.Logger
	repo   FeedServiceRepository
	client electionfeed.Client
}

// NewFeedService creates a new FeedService
func NewFeedService(log logger.Logger, repo FeedServiceRepository, client electionfeed.Client) *FeedService {
	return &FeedService{log: log, repo: repo, client: client}
}

// FeedSyncResult summarizes a roster import
type FeedSyncResult struct {
	Fetched int      `json:"fetched"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// CandidateFromRecord maps a feed record onto a candidate. Imported candidates
// start active with voting enabled.
func CandidateFromRecord(r electionfeed.Record) models.Candidate {
	name := strings.TrimSpace(r.CandidateName)
	if name == "" {
		name = "Unknown"
	}
	return models.Candidate{
		ExternalID:     strings.TrimSpace(r.CandidateID.String()),
		FullName:       name,
		ProfilePhoto:   strings.TrimSpace(r.ImageURL),
		Gender:         electionfeed.MapGender(r.Gender),
		District:       strings.TrimSpace(r.DistrictName),
		PartyName:      strings.TrimSpace(r.PoliticalPartyName),
		Constituency:   strings.TrimSpace(r.ConstName.String()),
		CandidacyLevel: "federal",
		VotingEnabled:  true,
		IsActive:       true,
	}
}

// SyncFromFeed fetches the roster and upserts every record by external id.
// A record without an id is skipped; a failed row does not stop the import.
func (s *FeedService) SyncFromFeed(ctx context.Context, feedURL string) (*FeedSyncResult, error) {
	if feedURL == "" && s.client.BaseURL() == "" {
		return nil, ErrFeedURLMissing
	}

	records, err := s.client.FetchCandidates(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetching election feed: %w", err)
	}

	result := &FeedSyncResult{Fetched: len(records)}
	for _, r := range records {
		c := CandidateFromRecord(r)
		if c.ExternalID == "" {
			result.Skipped++
			continue
		}
		created, err := s.repo.UpsertCandidateByExternalID(ctx, &c)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.ExternalID, err))
			s.log.Warn("Failed to import candidate", "external_id", c.ExternalID, "error", err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.log.Info("Election feed imported", "fetched", result.Fetched, "created", result.Created,
		"updated", result.Updated, "skipped", result.Skipped, "errors", len(result.Errors))
	return result, nil
}
