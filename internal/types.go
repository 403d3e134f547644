package internal

import "time"

// RunStatus is the lifecycle state of one translate invocation.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// ChunkStatus is the outcome recorded for one chunk.
type ChunkStatus string

const (
	ChunkTranslated  ChunkStatus = "translated"
	ChunkFixed       ChunkStatus = "fixed"
	ChunkFixFallback ChunkStatus = "fix_fallback"
	ChunkCached      ChunkStatus = "cached"
	ChunkBlank       ChunkStatus = "blank"
	ChunkFailed      ChunkStatus = "failed"
	ChunkSource      ChunkStatus = "source"
)

// Run describes one document translation.
type Run struct {
	ID         string    `json:"id"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path"`
	Backend    string    `json:"backend"`
	Model      string    `json:"model"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Chunks     int       `json:"chunks"`
	Failed     int       `json:"failed"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// ChunkRecord is the journal entry for one processed chunk.
type ChunkRecord struct {
	RunID     string        `json:"run_id"`
	Index     int           `json:"index"`
	Source    string        `json:"source"`
	Draft     string        `json:"draft,omitempty"`
	Final     string        `json:"final,omitempty"`
	Status    ChunkStatus   `json:"status"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
	Latency   time.Duration `json:"latency"`
}
