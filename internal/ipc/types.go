package ipc

import "sorter/internal/daemon"

// ServiceName is the RPC receiver name registered by the server.
const ServiceName = "Sorter"

// StatusRequest asks for a daemon status snapshot.
type StatusRequest struct{}

// StatusResponse wraps the daemon status.
type StatusResponse struct {
	Status daemon.Status `json:"status"`
}

// LogTailRequest selects log lines; see logs.TailOptions.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	Match      string `json:"match,omitempty"`
}

// LogTailResponse returns lines and the cursor for the next request.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
