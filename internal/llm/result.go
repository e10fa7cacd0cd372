package llm

import "github.com/scan-io-git/logicscan/internal/findings"

// Result is the outcome of one chunk analysis. It is either Parsed or Failed.
type Result interface {
	isResult()
}

// Parsed holds the findings of a well formed answer.
type Parsed struct {
	Findings []findings.Finding
	Raw      string
}

// Failed holds the last raw answer of a chunk whose attempts were exhausted.
type Failed struct {
	Raw    string
	Reason string
}

func (Parsed) isResult() {}
func (Failed) isResult() {}

// Job is one chunk to analyze.
type Job struct {
	File       string
	ChunkIndex int
	Total      int
	Snippet    string
}

// Outcome pairs a job with its result.
type Outcome struct {
	Job      Job
	Result   Result
	Attempts int
}
