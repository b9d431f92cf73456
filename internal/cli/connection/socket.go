package connection

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/yndnr/filekv/internal/server/localserver"
)

// DefaultTimeout bounds a single request when the context has no deadline.
const DefaultTimeout = 10 * time.Second

// SocketClient sends protocol requests over one Unix socket connection.
// It is safe for concurrent use; requests are serialized.
type SocketClient struct {
	path    string
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewSocketClient creates a new socket client.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{path: socketPath, timeout: DefaultTimeout}
}

// Path returns the socket path.
func (c *SocketClient) Path() string {
	return c.path
}

// Connect dials the socket if not already connected.
func (c *SocketClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *SocketClient) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.path, err)
	}
	c.conn = conn
	c.reader = bufio.NewReaderSize(conn, 64*1024)
	return nil
}

// Close closes the socket connection.
func (c *SocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// Do sends req and waits for its response. A transport failure drops the
// connection so that the next call redials.
func (c *SocketClient) Do(ctx context.Context, req *localserver.Request) (*localserver.Response, error) {
	line, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	c.conn.SetDeadline(deadline)

	resp, err := c.roundTrip(append(line, '\n'))
	if err != nil {
		c.conn.Close()
		c.conn = nil
		c.reader = nil
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var ne net.Error
		if ok && errors.As(err, &ne) && ne.Timeout() {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	return resp, nil
}

func (c *SocketClient) roundTrip(line []byte) (*localserver.Response, error) {
	if _, err := c.conn.Write(line); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	raw, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var resp localserver.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// call runs req and converts a failed response into its domain error.
func (c *SocketClient) call(ctx context.Context, req *localserver.Request) (*localserver.Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, resp.Err()
}

// Put stores data under key.
func (c *SocketClient) Put(ctx context.Context, key, data, dir string, ttl time.Duration) error {
	_, err := c.call(ctx, &localserver.Request{
		Op:    localserver.OpPut,
		Key:   key,
		Data:  data,
		Dir:   dir,
		TTLMs: ttl.Milliseconds(),
	})
	return err
}

// Get returns the value stored under key.
func (c *SocketClient) Get(ctx context.Context, key string) (string, error) {
	resp, err := c.call(ctx, &localserver.Request{Op: localserver.OpGet, Key: key})
	if err != nil {
		return "", err
	}
	return resp.Data, nil
}

// Delete removes key.
func (c *SocketClient) Delete(ctx context.Context, key string) error {
	_, err := c.call(ctx, &localserver.Request{Op: localserver.OpDelete, Key: key})
	return err
}

// Status returns the server status.
func (c *SocketClient) Status(ctx context.Context) (*localserver.Status, error) {
	resp, err := c.call(ctx, &localserver.Request{Op: localserver.OpStatus})
	if err != nil {
		return nil, err
	}
	if resp.Status == nil {
		return nil, errors.New("status response without status body")
	}
	return resp.Status, nil
}

// Sweep runs an expiry sweep on the server.
func (c *SocketClient) Sweep(ctx context.Context) (*localserver.Sweep, error) {
	resp, err := c.call(ctx, &localserver.Request{Op: localserver.OpSweep})
	if err != nil {
		return nil, err
	}
	if resp.Sweep == nil {
		return nil, errors.New("sweep response without sweep body")
	}
	return resp.Sweep, nil
}

// Ping checks that the server answers and returns the round-trip time.
func (c *SocketClient) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := c.call(ctx, &localserver.Request{Op: localserver.OpPing})
	return time.Since(start), err
}
