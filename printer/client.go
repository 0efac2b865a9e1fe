// Package printer opens raw sessions with network printers at endpoints
// found by discovery. It moves bytes only; building and interpreting printer
// commands is left to the caller.
package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/liamg/printfind/scan"
	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("session closed")

// Client is a session with a printer.
type Client interface {
	// SendCommand writes raw bytes to the printer
	SendCommand(data []byte) error

	// ReadStatus reads whatever status bytes the printer has sent
	ReadStatus() ([]byte, error)

	// Close ends the session
	Close() error
}

// Session is a Client over a raw TCP connection (the port 9100 "raw" channel).
type Session struct {
	endpoint scan.Endpoint
	conn     net.Conn
	timeout  time.Duration
	mu       sync.Mutex
	closed   bool
}

// Dial opens a session. timeout bounds the connect and every later read or
// write.
func Dial(ctx context.Context, endpoint scan.Endpoint, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", scan.ErrInvalidTimeout, timeout)
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to printer at %s: %w", endpoint.Address(), err)
	}

	logrus.Debugf("Opened printer session with %s", endpoint.Address())

	return &Session{
		endpoint: endpoint,
		conn:     conn,
		timeout:  timeout,
	}, nil
}

func (s *Session) Endpoint() scan.Endpoint {
	return s.endpoint
}

func (s *Session) SendCommand(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}

	for len(data) > 0 {
		n, err := s.conn.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write to printer: %w", err)
		}
		data = data[n:]
	}

	return nil
}

// ReadStatus waits up to the session timeout for status bytes. A printer that
// sends nothing yields an empty slice and no error.
func (s *Session) ReadStatus() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return nil, err
	}

	buf := make([]byte, 256)
	n, err := s.conn.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("failed to read from printer: %w", err)
	}

	return buf[:n], nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	logrus.Debugf("Closing printer session with %s", s.endpoint.Address())
	return s.conn.Close()
}
