// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"errors"
)

var (
	// ErrPortUnavailable indicates the port is already claimed by another open session.
	ErrPortUnavailable = errors.New("port unavailable")

	// ErrPortOpenFailed indicates the underlying open call failed.
	ErrPortOpenFailed = errors.New("port open failed")

	// ErrTransport indicates a write or read failure, or use of a port that is not open.
	ErrTransport = errors.New("transport error")
)

// Port is a bidirectional byte channel to a pump line.
// The port owns the line terminator: Write appends it, callers never do.
// A Port is not safe for concurrent use.
type Port interface {
	// Write sends one command. The returned count excludes the terminator.
	Write(p []byte) (int, error)
	// ReadAvailable returns every byte currently buffered at the port.
	// An empty result is not an error.
	ReadAvailable() ([]byte, error)
	IsOpen() bool
	Close() error
}

// Opener opens a named port.
type Opener interface {
	Open(ctx context.Context, name string) (Port, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, name string) (Port, error)

func (f OpenerFunc) Open(ctx context.Context, name string) (Port, error) {
	return f(ctx, name)
}

// RequestHandler handles one command line received from a remote client and
// returns the raw pump response.
type RequestHandler func(ctx context.Context, line string) (string, error)

// Upstream represents a source of requests (a remote client of a pump line).
type Upstream interface {
	// Start starts the server and blocks. It should be called in a goroutine.
	Start(ctx context.Context, handler RequestHandler) error
	Close() error
}
