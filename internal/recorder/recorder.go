package recorder

import "TLISentinel/internal/model"

// Recorder persists analyses. Stored signals are never updated; a newer
// record for the same symbol supersedes older ones.
type Recorder interface {
	RecordAnalysis(a *model.Analysis) error
	// LatestSignals returns the most recent signal per symbol, newest first.
	LatestSignals(limit int) ([]model.ExtractedSignal, error)
	Close() error
}
