package replay

import "time"

// Config holds configuration for a replay run.
type Config struct {
	BaseURL  string        // Base URL of the server
	Dir      string        // Directory of recorded frames
	Pattern  string        // Frame file pattern inside Dir
	Interval time.Duration // Delay between frames; 0 sends back to back
	Timeout  time.Duration // HTTP request timeout
	Async    bool          // Queue frames instead of waiting for each outcome
}

// FrameReport is the outcome of one posted frame.
type FrameReport struct {
	Name      string
	Outcome   string
	Score     *float64
	Cursor    int
	Length    int
	Current   string
	Duplicate bool
	Events    []Event
	Err       error
}

// Event mirrors a motion event returned by the server.
type Event struct {
	Kind      string  `json:"kind"`
	Index     int     `json:"index"`
	Label     string  `json:"label,omitempty"`
	Score     float64 `json:"score"`
	NextIndex int     `json:"next_index"`
	NextLabel string  `json:"next_label,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	SessionID      string
	FramesLoaded   int
	FramesSkipped  int
	FramesSent     int
	Advanced       int
	Rejected       int
	Ignored        int
	Duplicate      int
	Accepted       int
	Failed         int
	TargetsReached int
	Completed      bool
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
