// Package netutil provides small network helpers for port validation and
// listening-socket detection.
package netutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ValidatePort checks that s is a numeric TCP port in 1-65535.
func ValidatePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: not a number", s)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("invalid port %d: out of range 1-65535", n)
	}
	return uint16(n), nil
}

// WaitForListen waits until a TCP connection to host:port succeeds or the
// timeout expires. It is used to distinguish "server still starting" from
// "server reachable": control-plane failures after this returns nil are
// treated as fatal rather than retried.
func WaitForListen(ctx context.Context, host string, port uint16, timeout time.Duration) error {
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	// Check immediately before the first tick.
	if conn, err := net.DialTimeout("tcp", address, time.Second); err == nil {
		_ = conn.Close()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("timeout waiting for %s to accept connections", address)
			}
			return ctx.Err()
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", address, time.Second)
			if err == nil {
				_ = conn.Close()
				return nil
			}
		}
	}
}
