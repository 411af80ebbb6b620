// Package health reports a runtime snapshot of the panel process.
package health

import (
	"runtime"
	"time"
)

// Options describes the panel state to include in a snapshot.
type Options struct {
	StartedAt time.Time
	Transport string
	Shells    int
}

// Snapshot is the JSON body served at /healthz.
type Snapshot struct {
	Status     string      `json:"status"`
	Uptime     string      `json:"uptime,omitempty"`
	Transport  string      `json:"transport,omitempty"`
	Shells     int         `json:"shells"`
	Goroutines int         `json:"goroutines"`
	Memory     MemoryInfo  `json:"memory"`
	Runtime    RuntimeInfo `json:"runtime"`
	Timestamp  string      `json:"timestamp"`
}

// MemoryInfo is a subset of runtime.MemStats.
type MemoryInfo struct {
	AllocMB      float64 `json:"allocMB"`
	TotalAllocMB float64 `json:"totalAllocMB"`
	SysMB        float64 `json:"sysMB"`
	NumGC        uint32  `json:"numGC"`
}

// RuntimeInfo describes the Go runtime.
type RuntimeInfo struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	CPUs    int    `json:"cpus"`
}

// Collect returns a health snapshot for the current process.
func Collect(opts Options) Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := time.Now()
	s := Snapshot{
		Status:     "healthy",
		Transport:  opts.Transport,
		Shells:     opts.Shells,
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryInfo{
			AllocMB:      float64(mem.Alloc) / 1024 / 1024,
			TotalAllocMB: float64(mem.TotalAlloc) / 1024 / 1024,
			SysMB:        float64(mem.Sys) / 1024 / 1024,
			NumGC:        mem.NumGC,
		},
		Runtime: RuntimeInfo{
			Version: runtime.Version(),
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			CPUs:    runtime.NumCPU(),
		},
		Timestamp: now.Format(time.RFC3339),
	}
	if !opts.StartedAt.IsZero() {
		s.Uptime = now.Sub(opts.StartedAt).Round(time.Second).String()
	}
	return s
}
