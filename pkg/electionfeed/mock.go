package electionfeed

import "context"

// MockClient is a mock feed client for testing
type MockClient struct {
	records  []Record
	baseURL  string
	fetchErr error
	lastURL  string
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithRecords sets the records to return
func WithRecords(records []Record) MockOption {
	return func(m *MockClient) {
		m.records = records
	}
}

// WithFetchError sets an error to return from FetchCandidates
func WithFetchError(err error) MockOption {
	return func(m *MockClient) {
		m.fetchErr = err
	}
}

// NewMockClient creates a new mock feed client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		baseURL: "http://mock-feed.local/candidates.txt",
		records: DefaultMockRecords(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BaseURL returns the configured base URL
func (m *MockClient) BaseURL() string {
	return m.baseURL
}

// FetchCandidates returns the configured records or error
func (m *MockClient) FetchCandidates(ctx context.Context, url string) ([]Record, error) {
	if url == "" {
		url = m.baseURL
	}
	m.lastURL = url
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.records, nil
}

// LastURL returns the url of the most recent fetch (for testing)
func (m *MockClient) LastURL() string {
	return m.lastURL
}

// DefaultMockRecords returns a small roster across two constituencies
func DefaultMockRecords() []Record {
	return []Record{
		{CandidateID: "339001", CandidateName: "राम बहादुर थापा", Gender: "पुरुष", PoliticalPartyName: "नेपाली काँग्रेस", ConstName: "1", DistrictName: "काठमाडौं"},
		{CandidateID: "339002", CandidateName: "सीता शर्मा", Gender: "महिला", PoliticalPartyName: "नेपाल कम्युनिष्ट पार्टी (एमाले)", ConstName: "1", DistrictName: "काठमाडौं"},
		{CandidateID: "339003", CandidateName: "Hari Prasad", Gender: "Male", PoliticalPartyName: "Independent", ConstName: "2", DistrictName: "Lalitpur"},
	}
}

var _ Client = (*MockClient)(nil)
var _ Client = (*HTTPClient)(nil)
