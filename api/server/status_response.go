// status_response.go - JSON response structs for status/health endpoints
package server

// StatusResponse is the body of /status.
type StatusResponse struct {
	Status      string      `json:"status"`
	Uptime      int64       `json:"uptime_seconds"`
	Version     string      `json:"version"`
	APIVersion  string      `json:"api_version"`
	LedgerError string      `json:"ledger_error,omitempty"`
	Metrics     NodeMetrics `json:"metrics"`
}

type LivenessResponse struct {
	Alive bool `json:"alive"`
}

type ReadinessResponse struct {
	Ready bool `json:"ready"`
}
