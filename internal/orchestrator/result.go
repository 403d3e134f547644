package orchestrator

import (
	"time"

	"github.com/valpere/chunktran/internal"
)

// State is the position of the pipeline within a run.
type State int

const (
	StateIdle State = iota
	StateChunking
	StateTranslating
	StateFixing
	StateAppending
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChunking:
		return "chunking"
	case StateTranslating:
		return "translating"
	case StateFixing:
		return "fixing"
	case StateAppending:
		return "appending"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ChunkOutcome is what happened to one chunk.
type ChunkOutcome struct {
	Index    int
	Status   internal.ChunkStatus
	Attempts int
	Err      error
	Latency  time.Duration
}

// Result summarises a run. Translated counts every chunk answered by the
// model, including those later fixed or kept as draft after a failed fix.
type Result struct {
	Chunks             int
	Translated         int
	Fixed              int
	FixFallbacks       int
	Cached             int
	Blank              int
	Failed             int
	MissingTag         int
	SourceKept         int
	ValidationWarnings int
	Outcomes           []ChunkOutcome
}

func (r *Result) count(status internal.ChunkStatus) {
	switch status {
	case internal.ChunkTranslated, internal.ChunkFixFallback:
		r.Translated++
	case internal.ChunkFixed:
		r.Translated++
		r.Fixed++
	case internal.ChunkCached:
		r.Cached++
	case internal.ChunkBlank:
		r.Blank++
	}
}

// Written reports how many chunks reached the output.
func (r *Result) Written() int {
	return r.Translated + r.Cached + r.Blank + r.SourceKept
}
