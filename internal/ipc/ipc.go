// Package ipc carries JSON requests between the CLI and a running daemon
// over a unix socket.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// dialTimeout bounds how long the CLI waits for the daemon.
const dialTimeout = 2 * time.Second

// Handler answers one request.
type Handler func(*Request) *Response

// SendRequest connects to the daemon, sends a request, and returns the response.
func SendRequest(socketPath string, req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(dialTimeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// Send issues a command with no arguments.
func Send(socketPath, command string) (*Response, error) {
	return SendRequest(socketPath, &Request{Command: command})
}

// ListenAndServe serves requests on socketPath until ctx is done.
func ListenAndServe(ctx context.Context, socketPath string, handler Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	// Remove any stale socket
	os.Remove(socketPath)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	defer os.Remove(socketPath)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logger.Debug("IPC server listening", zap.String("socket", socketPath))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("IPC accept failed", zap.Error(err))
			continue
		}
		go handleConn(conn, handler, logger)
	}
}

func handleConn(conn net.Conn, handler Handler, logger *zap.Logger) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(dialTimeout))
	enc := json.NewEncoder(conn)

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		enc.Encode(Error(fmt.Errorf("invalid request: %w", err)))
		return
	}
	logger.Debug("IPC request", zap.String("command", req.Command))
	if err := enc.Encode(handler(&req)); err != nil {
		logger.Warn("Failed to write IPC response", zap.Error(err))
	}
}
