// metrics.go - process and ledger metrics for the status endpoints
package server

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"patientledger/core/ledger"
)

// NodeMetrics holds health metrics for the running service.
type NodeMetrics struct {
	UptimeSeconds   int64   `json:"uptime_seconds"`
	LedgerHeight    uint64  `json:"ledger_height"`
	MirrorFailures  int64   `json:"mirror_failures"`
	CPULoadPercent  float64 `json:"cpu_load_percent"`
	HeapMB          float64 `json:"heap_mb"`
	SystemMemUsedPc float64 `json:"system_mem_used_percent"`
	DiskFreeMB      float64 `json:"disk_free_mb"`
	Goroutines      int     `json:"goroutines"`
}

// heightReader is implemented by ledgers that know their journal length.
type heightReader interface {
	Height() (uint64, error)
}

func (s *Server) GetNodeMetrics() NodeMetrics {
	m := NodeMetrics{
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
		MirrorFailures: s.svc.MirrorFailures(),
		Goroutines:     runtime.NumGoroutine(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.HeapMB = float64(ms.HeapAlloc) / (1024 * 1024)

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		m.CPULoadPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.SystemMemUsedPc = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		m.DiskFreeMB = float64(du.Free) / (1024 * 1024)
	}
	if hr, ok := unwrapLedger(s.ledger).(heightReader); ok {
		if h, err := hr.Height(); err == nil {
			m.LedgerHeight = h
		}
	}
	return m
}

func unwrapLedger(c ledger.Client) ledger.Client {
	for {
		u, ok := c.(interface{ Unwrap() ledger.Client })
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}
