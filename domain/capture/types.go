package capture

import "time"

// CaptureStats summarises capture behaviour for instrumentation.
type CaptureStats struct {
	Captures    uint64
	Failures    uint64
	AvgCapture  time.Duration
	LastCapture time.Time
	// LastAge is the time since the last successful capture.
	LastAge time.Duration
}
