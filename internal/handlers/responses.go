package handlers

// LikeResponse mirrors the like toggle result
type LikeResponse struct {
	Likes   int  `json:"likes"`
	IsLiked bool `json:"isLiked"`
}

// ShareResponse carries the share counter and the public link
type ShareResponse struct {
	Shares int    `json:"shares"`
	URL    string `json:"url"`
}

// PollCheckResponse reports whether the caller has voted on a poll
type PollCheckResponse struct {
	HasVoted bool `json:"hasVoted"`
}

// LoggingResponse reports the current logging configuration
type LoggingResponse struct {
	Level string `json:"level"`
	HTTP  bool   `json:"http"`
}

// HealthResponse is the /healthz body
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}
