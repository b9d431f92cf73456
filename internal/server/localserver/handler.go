package localserver

import (
	"context"
	"time"

	"github.com/yndnr/filekv/internal/core/domain"
	"github.com/yndnr/filekv/internal/core/service"
	"github.com/yndnr/filekv/internal/infra/buildinfo"
	"github.com/yndnr/filekv/internal/storage/reaper"
	"github.com/yndnr/filekv/internal/telemetry/logger"
)

// Backend is the store the handler serves.
type Backend interface {
	Store(ctx context.Context, req *service.StoreRequest) error
	Read(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Sweep(ctx context.Context) reaper.SweepResult
	Stats() service.Stats
}

// Handler executes protocol requests against a Backend.
type Handler struct {
	backend   Backend
	startedAt time.Time
	now       func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(backend Backend) *Handler {
	return &Handler{
		backend:   backend,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Handle executes one request. The request ID must already be set.
func (h *Handler) Handle(ctx context.Context, req *Request) Response {
	var (
		resp Response
		err  error
	)

	switch req.Op {
	case OpPing:
	case OpPut:
		var ttl time.Duration
		if ttl, err = req.TTL(); err != nil {
			break
		}
		err = h.backend.Store(ctx, &service.StoreRequest{
			Key:  req.Key,
			Data: req.Data,
			Dir:  req.Dir,
			TTL:  ttl,
		})
	case OpGet:
		resp.Data, err = h.backend.Read(ctx, req.Key)
	case OpDelete:
		err = h.backend.Delete(ctx, req.Key)
	case OpStatus:
		resp.Status = h.status()
	case OpSweep:
		r := h.backend.Sweep(ctx)
		resp.Sweep = &Sweep{
			Scanned:    r.Scanned,
			Reaped:     r.Reaped,
			Failed:     r.Failed,
			Skipped:    r.Skipped,
			Abandoned:  r.Abandoned,
			DurationMs: r.Duration.Milliseconds(),
		}
	case "":
		err = domain.ErrInvalidRequest.WithDetails("missing op")
	default:
		err = domain.ErrInvalidRequest.WithDetails("unknown op " + req.Op)
	}

	if err != nil {
		logger.L(ctx).Debug("request failed", "op", req.Op, "key", req.Key, "error", err)
		return errorResponse(req.ID, err)
	}

	resp.ID = req.ID
	resp.OK = true
	return resp
}

func (h *Handler) status() *Status {
	st := h.backend.Stats()
	return &Status{
		Version:         buildinfo.Get().Version,
		StartedAt:       h.startedAt,
		UptimeSeconds:   int64(h.now().Sub(h.startedAt) / time.Second),
		Entries:         st.Entries,
		ExpiredEntries:  st.ExpiredEntries,
		Capacity:        st.Capacity,
		DefaultDir:      st.DefaultDir,
		DefaultDirBytes: st.DefaultDirBytes,
		QuotaBytes:      st.QuotaBytes,
		ReaperState:     st.ReaperState,
		LastSweepAt:     st.LastSweep.FinishedAt,
		LastSweepReaped: st.LastSweep.Reaped,
		Journal:         st.Journal,
	}
}
