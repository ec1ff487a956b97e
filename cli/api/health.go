package api

import (
	"context"
	"errors"
	"net/http"
)

type Status struct {
	Status      string `json:"status"`
	Uptime      int64  `json:"uptime_seconds"`
	Version     string `json:"version"`
	APIVersion  string `json:"api_version"`
	LedgerError string `json:"ledger_error,omitempty"`
	Metrics     struct {
		LedgerHeight    uint64  `json:"ledger_height"`
		MirrorFailures  int64   `json:"mirror_failures"`
		CPULoadPercent  float64 `json:"cpu_load_percent"`
		HeapMB          float64 `json:"heap_mb"`
		SystemMemUsedPc float64 `json:"system_mem_used_percent"`
		DiskFreeMB      float64 `json:"disk_free_mb"`
		Goroutines      int     `json:"goroutines"`
	} `json:"metrics"`
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

func (c *Client) Liveness(ctx context.Context) (bool, error) {
	var out struct {
		Alive bool `json:"alive"`
	}
	err := c.do(ctx, http.MethodGet, "/health/liveness", nil, &out)
	return out.Alive, err
}

// Readiness reports false without error when the server answers 503.
func (c *Client) Readiness(ctx context.Context) (bool, error) {
	var out struct {
		Ready bool `json:"ready"`
	}
	err := c.do(ctx, http.MethodGet, "/health/readiness", nil, &out)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		return false, nil
	}
	return out.Ready, err
}
