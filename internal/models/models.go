package models

import "time"

// Candidate is a subject of candidate voting
type Candidate struct {
	ID             string    `json:"id" bson:"_id"`
	ExternalID     string    `json:"externalId,omitempty" bson:"externalId,omitempty"`
	FullName       string    `json:"fullName" bson:"fullName"`
	ProfilePhoto   string    `json:"profilePhoto" bson:"profilePhoto"`
	Gender         string    `json:"gender,omitempty" bson:"gender,omitempty"`
	District       string    `json:"district,omitempty" bson:"district,omitempty"`
	PartyName      string    `json:"partyName" bson:"partyName"`
	Constituency   string    `json:"constituency" bson:"constituency"`
	CandidacyLevel string    `json:"candidacyLevel" bson:"candidacyLevel"`
	Votes          int       `json:"votes" bson:"votes"`
	VotePercentage string    `json:"votePercentage" bson:"votePercentage"`
	VotingEnabled  bool      `json:"votingEnabled" bson:"votingEnabled"`
	IsActive       bool      `json:"isActive" bson:"isActive"`
	Likes          int       `json:"likes" bson:"likes"`
	Shares         int       `json:"shares" bson:"shares"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CandidateFilter narrows candidate listings. Constituency and PartyName are
// case-insensitive substring matches; CandidacyLevel is exact.
type CandidateFilter struct {
	Constituency   string
	CandidacyLevel string
	PartyName      string
	ActiveOnly     bool
	VotingOnly     bool // isActive && votingEnabled
}

// Vote is one candidate ledger record
type Vote struct {
	ID            string    `json:"id" bson:"_id"`
	CandidateID   string    `json:"candidateId" bson:"candidateId"`
	VoterID       string    `json:"voterId" bson:"voterId"`
	VoterEmail    string    `json:"voterEmail,omitempty" bson:"voterEmail,omitempty"`
	VoterName     string    `json:"voterName,omitempty" bson:"voterName,omitempty"`
	IPAddress     string    `json:"ipAddress,omitempty" bson:"ipAddress,omitempty"`
	UserAgent     string    `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	Constituency  string    `json:"constituency,omitempty" bson:"constituency,omitempty"`
	VoteTimestamp time.Time `json:"voteTimestamp" bson:"voteTimestamp"`
	IsVerified    bool      `json:"isVerified" bson:"isVerified"`
}

// VoteStats summarizes a candidate's ledger independently of its counter
type VoteStats struct {
	TotalVotes      int `json:"totalVotes"`
	VerifiedVotes   int `json:"verifiedVotes"`
	UnverifiedVotes int `json:"unverifiedVotes"`
}

// VoterQuery pages through a candidate's ledger, newest first
type VoterQuery struct {
	Page     int
	Limit    int
	Verified *bool
}

// Choice is a poll option carrying its own counter
type Choice struct {
	ID         string `json:"id" bson:"id"`
	Label      string `json:"label" bson:"label"`
	VotesCount int    `json:"votesCount" bson:"votesCount"`
}

// Poll owns an ordered list of choices and an optional open window
type Poll struct {
	ID               string     `json:"id" bson:"_id"`
	Title            string     `json:"title" bson:"title"`
	Description      string     `json:"description,omitempty" bson:"description,omitempty"`
	Choices          []Choice   `json:"choices" bson:"choices"`
	StartAt          *time.Time `json:"startAt,omitempty" bson:"startAt,omitempty"`
	EndAt            *time.Time `json:"endAt,omitempty" bson:"endAt,omitempty"`
	IsActive         bool       `json:"isActive" bson:"isActive"`
	AllowAnonymous   bool       `json:"allowAnonymous" bson:"allowAnonymous"`
	MaxVotesPerVoter int        `json:"maxVotesPerVoter" bson:"maxVotesPerVoter"`
	CreatedAt        time.Time  `json:"createdAt" bson:"createdAt"`
}

// Choice returns the choice with the given id
func (p *Poll) Choice(id string) (Choice, bool) {
	for _, c := range p.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// TotalVotes sums the choice counters
func (p *Poll) TotalVotes() int {
	total := 0
	for _, c := range p.Choices {
		total += c.VotesCount
	}
	return total
}

// PollVote is one poll ledger record. VoterID is empty for anonymous votes.
type PollVote struct {
	ID            string    `json:"id" bson:"_id"`
	PollID        string    `json:"pollId" bson:"pollId"`
	ChoiceID      string    `json:"choiceId" bson:"choiceId"`
	VoterID       string    `json:"voterId,omitempty" bson:"voterId,omitempty"`
	IPAddress     string    `json:"ipAddress" bson:"ipAddress"`
	UserAgent     string    `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	VoteTimestamp time.Time `json:"voteTimestamp" bson:"voteTimestamp"`
}

// PollState is derived from isActive and the open window at a given instant
type PollState string

const (
	PollScheduled PollState = "scheduled"
	PollOpen      PollState = "open"
	PollClosed    PollState = "closed"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
