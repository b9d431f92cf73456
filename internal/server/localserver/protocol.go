package localserver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yndnr/filekv/internal/core/domain"
)

// Operations.
const (
	OpPut    = "put"
	OpGet    = "get"
	OpDelete = "delete"
	OpStatus = "status"
	OpPing   = "ping"
	OpSweep  = "sweep"
)

// MaxLineBytes bounds a single request line.
const MaxLineBytes = 1 << 20

// MaxTTLMs is the largest ttl_ms that fits a time.Duration.
const MaxTTLMs = math.MaxInt64 / int64(time.Millisecond)

// Request is one protocol request.
type Request struct {
	ID    string `json:"id,omitempty"`
	Op    string `json:"op"`
	Key   string `json:"key,omitempty"`
	Data  string `json:"data,omitempty"`
	Dir   string `json:"dir,omitempty"`
	TTLMs int64  `json:"ttl_ms,omitempty"`
}

// TTL returns the requested time to live. Zero means no expiry; negative
// or overflowing values are rejected with domain.ErrInvalidRequest.
func (r *Request) TTL() (time.Duration, error) {
	if r.TTLMs < 0 || r.TTLMs > MaxTTLMs {
		return 0, domain.ErrInvalidRequest.WithDetails(
			fmt.Sprintf("ttl_ms %d out of range [0, %d]", r.TTLMs, MaxTTLMs))
	}
	return time.Duration(r.TTLMs) * time.Millisecond, nil
}

// Response is one protocol response.
type Response struct {
	ID      string  `json:"id"`
	OK      bool    `json:"ok"`
	Data    string  `json:"data,omitempty"`
	Code    string  `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
	Status  *Status `json:"status,omitempty"`
	Sweep   *Sweep  `json:"sweep,omitempty"`
}

// Err converts a failed response back into a domain error.
func (r *Response) Err() error {
	if r.OK {
		return nil
	}
	return domain.ErrorFromCode(r.Code, r.Message)
}

// Status describes the running server.
type Status struct {
	Version         string    `json:"version" yaml:"version"`
	StartedAt       time.Time `json:"started_at" yaml:"started_at"`
	UptimeSeconds   int64     `json:"uptime_seconds" yaml:"uptime_seconds"`
	Entries         int       `json:"entries" yaml:"entries"`
	ExpiredEntries  int       `json:"expired_entries" yaml:"expired_entries"`
	Capacity        int       `json:"capacity" yaml:"capacity"`
	DefaultDir      string    `json:"default_dir" yaml:"default_dir"`
	DefaultDirBytes uint64    `json:"default_dir_bytes" yaml:"default_dir_bytes"`
	QuotaBytes      uint64    `json:"quota_bytes" yaml:"quota_bytes"`
	ReaperState     string    `json:"reaper_state" yaml:"reaper_state"`
	LastSweepAt     time.Time `json:"last_sweep_at,omitzero" yaml:"last_sweep_at,omitempty"`
	LastSweepReaped int       `json:"last_sweep_reaped" yaml:"last_sweep_reaped"`
	Journal         bool      `json:"journal" yaml:"journal"`
}

// Sweep reports an on-demand expiry sweep.
type Sweep struct {
	Scanned    int   `json:"scanned" yaml:"scanned"`
	Reaped     int   `json:"reaped" yaml:"reaped"`
	Failed     int   `json:"failed" yaml:"failed"`
	Skipped    int   `json:"skipped" yaml:"skipped"`
	Abandoned  int   `json:"abandoned" yaml:"abandoned"`
	DurationMs int64 `json:"duration_ms" yaml:"duration_ms"`
}

func errorResponse(id string, err error) Response {
	resp := Response{ID: id}

	var de *domain.DomainError
	if !errors.As(err, &de) {
		de = domain.ErrInternal
	}
	resp.Code = de.Code
	resp.Message = de.Message
	if de.Details != "" {
		resp.Message = de.Details
	}
	return resp
}
