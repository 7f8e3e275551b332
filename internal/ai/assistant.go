package ai

import (
	"context"
	"math"
)

// Job is the part of a posting the AI scorer reads.
type Job struct {
	Title       string
	Company     string
	Location    string
	Description string
}

// Assessment is the AI verdict for one job. Score is always within [0,1].
// Err is set when the verdict is a degraded zero caused by a failed call or
// an unreadable reply.
type Assessment struct {
	Score     float64
	Reasoning string
	Raw       string
	Err       error
}

// Scorer rates a job against the candidate profile.
// Implementations never fail the caller; failures come back as a zero
// Assessment carrying Err.
type Scorer interface {
	IsAvailable() bool
	Score(ctx context.Context, job Job) *Assessment
}

// Failed builds the degraded assessment for err.
func Failed(reasoning string, err error) *Assessment {
	return &Assessment{Score: 0, Reasoning: reasoning, Err: err}
}

// Clamp bounds v to [0,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Unavailable is the scorer used when no credential is configured.
type Unavailable struct{}

func (Unavailable) IsAvailable() bool { return false }

func (Unavailable) Score(context.Context, Job) *Assessment {
	return Failed("AI scorer unavailable (no API key)", nil)
}
