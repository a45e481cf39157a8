package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/aristath/hrpfolio/internal/scheduler"
	"github.com/aristath/hrpfolio/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthChecker checks a backing store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// JobRunner runs a job outside its schedule.
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// SystemHandlers serves process and host status and manual job triggers
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	startedAt time.Time
	db        HealthChecker
	runner    JobRunner
	jobs      map[string]scheduler.Job

	cpuPercent func(interval time.Duration, percpu bool) ([]float64, error)
	memory     func() (*mem.VirtualMemoryStat, error)
	diskUsage  func(path string) (*disk.UsageStat, error)
	hostUptime func() (uint64, error)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, db HealthChecker, runner JobRunner, jobs []scheduler.Job) *SystemHandlers {
	byName := make(map[string]scheduler.Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name()] = j
	}
	return &SystemHandlers{
		log:        log.With().Str("handler", "system").Logger(),
		dataDir:    dataDir,
		startedAt:  time.Now(),
		db:         db,
		runner:     runner,
		jobs:       byName,
		cpuPercent: cpu.Percent,
		memory:     mem.VirtualMemory,
		diskUsage:  disk.Usage,
		hostUptime: host.Uptime,
	}
}

// SystemStatusResponse represents the process and host status
type SystemStatusResponse struct {
	Status        string       `json:"status"` // "healthy" or "degraded"
	Version       string       `json:"version"`
	GitCommit     string       `json:"git_commit,omitempty"`
	BuildTime     string       `json:"build_time,omitempty"`
	GoVersion     string       `json:"go_version"`
	StartedAt     time.Time    `json:"started_at"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	HostUptime    uint64       `json:"host_uptime_seconds"`
	Goroutines    int          `json:"goroutines"`
	CPUPercent    float64      `json:"cpu_percent"`
	Memory        MemoryStatus `json:"memory"`
	Disk          DiskStatus   `json:"disk"`
	Database      string       `json:"database"` // "ok" or the health check error
}

// MemoryStatus is host memory usage
type MemoryStatus struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// DiskStatus is usage of the filesystem holding the data directory
type DiskStatus struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// HandleSystemStatus returns process, host and database status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Status:        "healthy",
		Version:       version.Version,
		GitCommit:     version.GitCommit,
		BuildTime:     version.BuildTime,
		GoVersion:     runtime.Version(),
		StartedAt:     h.startedAt.UTC(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		Database:      "ok",
	}

	// Short sampling window keeps the endpoint responsive.
	if pct, err := h.cpuPercent(100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(pct) > 0 {
		resp.CPUPercent = pct[0]
	}

	if vm, err := h.memory(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		resp.Memory = MemoryStatus{TotalBytes: vm.Total, UsedBytes: vm.Used, UsedPercent: vm.UsedPercent}
	}

	if du, err := h.diskUsage(h.dataDir); err != nil {
		h.log.Warn().Err(err).Str("path", h.dataDir).Msg("Failed to get disk usage")
	} else {
		resp.Disk = DiskStatus{Path: h.dataDir, TotalBytes: du.Total, FreeBytes: du.Free, UsedPercent: du.UsedPercent}
	}

	if up, err := h.hostUptime(); err == nil {
		resp.HostUptime = up
	}

	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
		}
	}

	h.writeData(w, http.StatusOK, resp)
}

// HandleListJobs returns the names of jobs that can be triggered
// GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	h.writeData(w, http.StatusOK, names)
}

// HandleTriggerJob starts a job in the background
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok || h.runner == nil {
		h.writeError(w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	go func() {
		if err := h.runner.RunNow(job); err != nil && !errors.Is(err, scheduler.ErrJobRunning) {
			h.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		}
	}()

	h.writeData(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"job":    name,
	})
}

func (h *SystemHandlers) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
