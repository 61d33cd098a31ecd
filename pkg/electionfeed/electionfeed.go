// Package electionfeed provides a client for the public election commission candidate feed.
package electionfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abrezinsky/electionvote/internal/logger"
)

// DefaultURL is the central results file published by the election commission
const DefaultURL = "https://result.election.gov.np/JSONFiles/ElectionResultCentral2082.txt"

// FlexString is a string type that can be unmarshaled from either a string or a number.
// The feed emits ids and constituency numbers as either.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler for FlexString
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}

	return fmt.Errorf("FlexString: cannot unmarshal %s", string(data))
}

// String returns the string value
func (f FlexString) String() string {
	return string(f)
}

// Record is one candidate row of the feed
type Record struct {
	CandidateID        FlexString `json:"CandidateID"`
	CandidateName      string     `json:"CandidateName"`
	Gender             string     `json:"Gender"`
	ImageURL           string     `json:"ImageURL"`
	PoliticalPartyName string     `json:"PoliticalPartyName"`
	ConstName          FlexString `json:"ConstName"`
	DistrictName       string     `json:"DistrictName"`
}

// Client defines the interface for feed operations
type Client interface {
	// FetchCandidates downloads and decodes the feed at url, or the client default when empty
	FetchCandidates(ctx context.Context, url string) ([]Record, error)
	// BaseURL returns the configured feed URL
	BaseURL() string
}

// HTTPClient is a real HTTP client for the feed
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

// NewHTTPClient creates a feed client with a 30 second timeout
func NewHTTPClient(baseURL string, log logger.Logger) *HTTPClient {
	return NewHTTPClientWithHTTPClient(baseURL, &http.Client{Timeout: 30 * time.Second}, log)
}

// NewHTTPClientWithHTTPClient creates a feed client with a custom http.Client
func NewHTTPClientWithHTTPClient(baseURL string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log,
	}
}

// BaseURL returns the configured feed URL
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FetchCandidates retrieves every candidate record from the feed
func (c *HTTPClient) FetchCandidates(ctx context.Context, url string) ([]Record, error) {
	if url == "" {
		url = c.baseURL
	}

	c.log.Debug("Election feed request", "method", "GET", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to election feed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("Election feed response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("election feed returned status %d", resp.StatusCode)
	}

	var records []Record
	if err := json.Unmarshal(bytes.TrimPrefix(body, utf8BOM), &records); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return records, nil
}

// MapGender normalizes the feed's Nepali or English gender label
func MapGender(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "":
		return "Other"
	case strings.Contains(v, "महिला") || strings.Contains(v, "female"):
		return "Female"
	case strings.Contains(v, "पुरुष") || strings.Contains(v, "male"):
		return "Male"
	default:
		return "Other"
	}
}
