package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/filekv/internal/core/domain"
	"github.com/yndnr/filekv/internal/telemetry/metric"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore creates a store in a temp dir whose background reaper never
// fires during the test; tests drive sweeps explicitly.
func newTestStore(t *testing.T, mutate func(*DataStoreConfig), opts ...Option) *DataStore {
	t.Helper()

	cfg := DefaultDataStoreConfig()
	cfg.DefaultDir = t.TempDir()
	cfg.Reaper.Interval = time.Hour
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := NewDataStore(cfg, append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("NewDataStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestDataStore_StoreRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	dir := t.TempDir()

	err := s.Store(ctx, &StoreRequest{Key: "user1", Data: `{"a":1}`, Dir: dir, TTL: time.Second})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := s.Read(ctx, "user1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("Read = %q, want %q", got, `{"a":1}`)
	}

	if _, err := os.Stat(filepath.Join(dir, "user1.file")); err != nil {
		t.Errorf("record file: %v", err)
	}
}

func TestDataStore_DefaultDirCreatedOnDemand(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	dir := filepath.Join(base, "nested", "data")
	s := newTestStore(t, func(c *DataStoreConfig) { c.DefaultDir = dir })

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("default dir created eagerly: %v", err)
	}

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `[1,2]`}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "k.file")); err != nil {
		t.Errorf("record not in default dir: %v", err)
	}
}

func TestDataStore_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	tests := []struct {
		name string
		req  *StoreRequest
		want error
	}{
		{"nil request", nil, domain.ErrInvalidKey},
		{"empty key", &StoreRequest{Key: "", Data: `{}`}, domain.ErrInvalidKey},
		{"33 chars", &StoreRequest{Key: strings.Repeat("k", 33), Data: `{}`}, domain.ErrInvalidKey},
		{"path separator", &StoreRequest{Key: "../x", Data: `{}`}, domain.ErrInvalidKey},
		{"empty data", &StoreRequest{Key: "k", Data: ""}, domain.ErrInvalidPayload},
		{"malformed", &StoreRequest{Key: "k", Data: `{"a":`}, domain.ErrInvalidPayload},
		{"scalar", &StoreRequest{Key: "k", Data: `42`}, domain.ErrInvalidPayload},
		{"too large", &StoreRequest{Key: "k", Data: `"` + strings.Repeat("x", domain.MaxPayloadLength) + `"`}, domain.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Store(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Store err = %v, want %v", err, tt.want)
			}
		})
	}

	if err := s.Store(ctx, &StoreRequest{Key: strings.Repeat("k", 32), Data: `{}`}); err != nil {
		t.Errorf("32-char key rejected: %v", err)
	}

	// Validation failures leave nothing behind.
	if s.Stats().Entries != 1 {
		t.Errorf("Entries = %d, want 1", s.Stats().Entries)
	}
}

func TestDataStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{"v":1}`}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{"v":2}`}); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("second Store err = %v, want ErrDuplicateKey", err)
	}

	got, _ := s.Read(ctx, "k")
	if got != `{"v":1}` {
		t.Errorf("Read = %q, duplicate store mutated the record", got)
	}
}

func TestDataStore_StoreDeleteRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{}`}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read(ctx, "k"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("Read err = %v, want ErrKeyNotFound", err)
	}
	if err := s.Delete(ctx, "k"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("second Delete err = %v, want ErrKeyNotFound", err)
	}

	// The key can be stored again.
	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{}`}); err != nil {
		t.Errorf("Store after Delete: %v", err)
	}
}

func TestDataStore_ExpiryAndSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, nil, WithClock(clock.Now))

	if err := s.Store(ctx, &StoreRequest{Key: "user1", Data: `{"a":1}`, TTL: time.Second}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(1500 * time.Millisecond)

	// Expired entries read as missing before the sweep runs.
	if _, err := s.Read(ctx, "user1"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("Read after expiry err = %v, want ErrKeyNotFound", err)
	}

	res := s.Sweep(ctx)
	if res.Reaped != 1 {
		t.Fatalf("Sweep = %+v, want reaped 1", res)
	}
	if _, err := os.Stat(domain.RecordPath(s.DefaultDir(), "user1")); !os.IsNotExist(err) {
		t.Errorf("record file still present after sweep: %v", err)
	}
	if _, err := s.Read(ctx, "user1"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("Read after sweep err = %v, want ErrKeyNotFound", err)
	}
}

func TestDataStore_RestoreAfterExpiryBeforeSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, nil, WithClock(clock.Now))

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{"v":1}`, TTL: time.Second}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{"v":2}`, TTL: time.Hour}); err != nil {
		t.Fatalf("Store over expired entry: %v", err)
	}

	if res := s.Sweep(ctx); res.Reaped != 0 {
		t.Errorf("Sweep reaped a re-stored key: %+v", res)
	}
	got, err := s.Read(ctx, "k")
	if err != nil || got != `{"v":2}` {
		t.Errorf("Read = (%q, %v), want new value", got, err)
	}
}

func TestDataStore_RestoreElsewhereRemovesExpiredRecord(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, nil, WithClock(clock.Now))
	dir1, dir2 := t.TempDir(), t.TempDir()

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{"v":1}`, Dir: dir1, TTL: time.Second}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{"v":2}`, Dir: dir2, TTL: time.Hour}); err != nil {
		t.Fatalf("Store in another dir over expired entry: %v", err)
	}
	if _, err := os.Stat(domain.RecordPath(dir1, "k")); !os.IsNotExist(err) {
		t.Errorf("expired record in old dir still on disk: %v", err)
	}
	if _, err := os.Stat(domain.RecordPath(dir2, "k")); err != nil {
		t.Errorf("new record missing: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if res := s.Sweep(ctx); res.Reaped != 1 {
		t.Errorf("Sweep = %+v, want reaped 1", res)
	}
	if _, err := os.Stat(domain.RecordPath(dir2, "k")); !os.IsNotExist(err) {
		t.Errorf("reaped record still on disk: %v", err)
	}
}

func TestDataStore_RestoreElsewhereOldRecordAlreadyGone(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, nil, WithClock(clock.Now))
	dir1, dir2 := t.TempDir(), t.TempDir()

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{"v":1}`, Dir: dir1, TTL: time.Second}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(domain.RecordPath(dir1, "k")); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{"v":2}`, Dir: dir2}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := s.Read(ctx, "k")
	if err != nil || got != `{"v":2}` {
		t.Errorf("Read = (%q, %v), want new value", got, err)
	}
}

func TestDataStore_Quota(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, func(c *DataStoreConfig) { c.QuotaBytes = 10 })

	// Below quota: allowed even though it crosses the limit.
	if err := s.Store(ctx, &StoreRequest{Key: "a", Data: `{"payload":"0123456789"}`}); err != nil {
		t.Fatalf("first Store: %v", err)
	}

	err := s.Store(ctx, &StoreRequest{Key: "b", Data: `{}`})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("second Store err = %v, want ErrQuotaExceeded", err)
	}
	if _, err := os.Stat(domain.RecordPath(s.DefaultDir(), "b")); !os.IsNotExist(err) {
		t.Errorf("rejected record was written: %v", err)
	}

	// Other directories have their own quota.
	if err := s.Store(ctx, &StoreRequest{Key: "c", Data: `{}`, Dir: t.TempDir()}); err != nil {
		t.Errorf("Store into other dir: %v", err)
	}
}

func TestDataStore_DirectoryCreateFailed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{}`, Dir: filepath.Join(file, "sub")})
	if !errors.Is(err, domain.ErrDirectoryCreateFailed) {
		t.Errorf("Store err = %v, want ErrDirectoryCreateFailed", err)
	}
}

func TestDataStore_ReadMissingFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{}`}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(domain.RecordPath(s.DefaultDir(), "k")); err != nil {
		t.Fatal(err)
	}

	_, err := s.Read(ctx, "k")
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("Read err = %v, want ErrKeyNotFound", err)
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("Read err = %v, want cause ErrRecordNotFound", err)
	}
}

func TestDataStore_DeleteMissingFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{}`}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(domain.RecordPath(s.DefaultDir(), "k")); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, "k"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("Delete err = %v, want ErrRecordNotFound", err)
	}
	if err := s.Delete(ctx, "k"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("stale entry kept: Delete err = %v, want ErrKeyNotFound", err)
	}
}

func TestDataStore_KeyGuardContention(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{}`}); err != nil {
		t.Fatal(err)
	}

	s.guard.TryAcquire("k")
	if err := s.Delete(ctx, "k"); !errors.Is(err, domain.ErrLockContention) {
		t.Errorf("Delete err = %v, want ErrLockContention", err)
	}
	if err := s.Store(ctx, &StoreRequest{Key: "k2", Data: `{}`}); err != nil {
		t.Errorf("unrelated key blocked: %v", err)
	}
	s.guard.Release("k")

	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete after release: %v", err)
	}
}

func TestDataStore_ConcurrentDistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			if err := s.Store(ctx, &StoreRequest{Key: key, Data: fmt.Sprintf(`{"i":%d}`, i)}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Store: %v", err)
	}
	for i := 0; i < n; i++ {
		got, err := s.Read(ctx, fmt.Sprintf("key-%d", i))
		if err != nil || got != fmt.Sprintf(`{"i":%d}`, i) {
			t.Errorf("Read(key-%d) = (%q, %v)", i, got, err)
		}
	}
}

func TestDataStore_ConcurrentReadDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	value := `{"payload":"` + strings.Repeat("z", 4096) + `"}`
	if err := s.Store(ctx, &StoreRequest{Key: "hot", Data: value}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := s.Read(ctx, "hot")
				switch {
				case err == nil:
					if got != value {
						t.Errorf("partial read: %d bytes", len(got))
						return
					}
				case errors.Is(err, domain.ErrKeyNotFound), errors.Is(err, domain.ErrLockContention):
				default:
					t.Errorf("unexpected Read error: %v", err)
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			err := s.Delete(ctx, "hot")
			if err == nil || errors.Is(err, domain.ErrKeyNotFound) {
				return
			}
			if !errors.Is(err, domain.ErrLockContention) {
				t.Errorf("unexpected Delete error: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}

func TestDataStore_Close(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	if err := s.Store(ctx, &StoreRequest{Key: "k", Data: `{}`}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if err := s.Store(ctx, &StoreRequest{Key: "x", Data: `{}`}); !errors.Is(err, domain.ErrStoreClosed) {
		t.Errorf("Store after Close err = %v", err)
	}
	if _, err := s.Read(ctx, "k"); !errors.Is(err, domain.ErrStoreClosed) {
		t.Errorf("Read after Close err = %v", err)
	}
	if err := s.Delete(ctx, "k"); !errors.Is(err, domain.ErrStoreClosed) {
		t.Errorf("Delete after Close err = %v", err)
	}

	st := s.Stats()
	if !st.Closed || st.ReaperState != "stopped" {
		t.Errorf("Stats after Close = %+v", st)
	}
}

func TestDataStore_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := metric.NewRegistry()
	s := newTestStore(t, nil, WithMetrics(reg))

	_ = s.Store(ctx, &StoreRequest{Key: "k", Data: `{}`})
	_ = s.Store(ctx, &StoreRequest{Key: "k", Data: `{}`})
	_, _ = s.Read(ctx, "missing")

	if got := testutil.ToFloat64(reg.OperationsTotal.WithLabelValues(OpStore, metric.ResultOK)); got != 1 {
		t.Errorf("store ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.OperationsTotal.WithLabelValues(OpStore, domain.ErrDuplicateKey.Code)); got != 1 {
		t.Errorf("store duplicate = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.OperationsTotal.WithLabelValues(OpRead, domain.ErrKeyNotFound.Code)); got != 1 {
		t.Errorf("read not found = %v, want 1", got)
	}
}

func TestDataStore_IndexEviction(t *testing.T) {
	ctx := context.Background()
	reg := metric.NewRegistry()
	s := newTestStore(t, func(c *DataStoreConfig) { c.IndexCapacity = 2 }, WithMetrics(reg))

	for _, key := range []string{"a", "b", "c"} {
		if err := s.Store(ctx, &StoreRequest{Key: key, Data: `{}`}); err != nil {
			t.Fatalf("Store(%s): %v", key, err)
		}
	}

	if _, err := s.Read(ctx, "a"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("evicted key readable: %v", err)
	}
	if got := testutil.ToFloat64(reg.IndexEvictions); got != 1 {
		t.Errorf("evictions = %v, want 1", got)
	}
	// Eviction only drops the index entry.
	if _, err := os.Stat(domain.RecordPath(s.DefaultDir(), "a")); err != nil {
		t.Errorf("evicted record file removed: %v", err)
	}
}

func TestDataStore_Stats(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, nil, WithClock(clock.Now))

	_ = s.Store(ctx, &StoreRequest{Key: "a", Data: `{}`, TTL: time.Second})
	_ = s.Store(ctx, &StoreRequest{Key: "b", Data: `{}`})
	clock.Advance(2 * time.Second)

	st := s.Stats()
	if st.Entries != 1 || st.ExpiredEntries != 1 {
		t.Errorf("Entries/Expired = %d/%d, want 1/1", st.Entries, st.ExpiredEntries)
	}
	if st.QuotaBytes != DefaultQuotaBytes || st.DefaultDirBytes != 4 {
		t.Errorf("Stats = %+v", st)
	}
	if st.ReaperState != "running" {
		t.Errorf("ReaperState = %q, want running", st.ReaperState)
	}
}

// Mirrors the documented example: a record with a short TTL disappears
// after the background reaper passes over it.
func TestDataStore_BackgroundReaperScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, func(c *DataStoreConfig) { c.Reaper.Interval = 50 * time.Millisecond })

	if err := s.Store(ctx, &StoreRequest{Key: "user1", Data: `{"a":1}`, TTL: 200 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if got, err := s.Read(ctx, "user1"); err != nil || got != `{"a":1}` {
		t.Fatalf("Read = (%q, %v)", got, err)
	}

	path := domain.RecordPath(s.DefaultDir(), "user1")
	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("record not reaped")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := s.Read(ctx, "user1"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("Read err = %v, want ErrKeyNotFound", err)
	}
}
