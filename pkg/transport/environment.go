package transport

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"
)

// Environment reports connectivity and beacon capability at flush time.
type Environment interface {
	Online() bool
	SupportsBeacon() bool
}

// StaticEnvironment reports fixed values.
type StaticEnvironment struct {
	IsOnline bool
	Beacon   bool
}

func (e StaticEnvironment) Online() bool         { return e.IsOnline }
func (e StaticEnvironment) SupportsBeacon() bool { return e.Beacon }

// AlwaysOnline is the default environment.
var AlwaysOnline Environment = StaticEnvironment{IsOnline: true, Beacon: true}

// DialEnvironment considers the process online when a TCP connection to the
// collector host succeeds. Results are cached for ttl.
type DialEnvironment struct {
	address string
	timeout time.Duration
	ttl     time.Duration

	mu      sync.Mutex
	checked time.Time
	online  bool
}

func NewDialEnvironment(serverURL string, timeout, ttl time.Duration) *DialEnvironment {
	address := serverURL
	if u, err := url.Parse(serverURL); err == nil && u.Host != "" {
		address = u.Host
		if u.Port() == "" {
			if u.Scheme == "https" {
				address = net.JoinHostPort(u.Hostname(), "443")
			} else {
				address = net.JoinHostPort(u.Hostname(), "80")
			}
		}
	}
	return &DialEnvironment{address: address, timeout: timeout, ttl: ttl}
}

func (e *DialEnvironment) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.checked.IsZero() && time.Since(e.checked) < e.ttl {
		return e.online
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", e.address)
	e.online = err == nil
	if conn != nil {
		conn.Close()
	}
	e.checked = time.Now()
	return e.online
}

func (e *DialEnvironment) SupportsBeacon() bool {
	return true
}
