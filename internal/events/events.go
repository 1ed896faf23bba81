// Package events defines pipeline notification payloads. Listeners
// are optional; the pipeline runs the same with or without one.
package events

import "time"

// AnalysisCompleteEvent is sent after each URL finishes processing,
// whether it succeeded or failed.
type AnalysisCompleteEvent struct {
	URL         string    // The URL as requested
	ContentType string    // Detected content type; empty on failure
	CacheHit    bool      // Served from cache without a fetch
	Failed      bool      // The outcome carries a fault
	Timestamp   time.Time // When processing finished
}

// BatchCompleteEvent is sent when a batch fan-out finishes.
type BatchCompleteEvent struct {
	BatchID   string        // Unique ID for log correlation
	URLCount  int           // Number of input URLs
	Failed    int           // Outcomes that carry a fault
	Duration  time.Duration // Wall time for the whole batch
	Timestamp time.Time     // When the batch finished
}

// Listener receives pipeline events. Implementations must be fast and
// non-blocking; they run on the processing goroutines.
type Listener interface {
	AnalysisComplete(AnalysisCompleteEvent)
	BatchComplete(BatchCompleteEvent)
}
