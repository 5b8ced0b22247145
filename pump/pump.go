// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package pump drives syringe pumps on a serial line. A Pump owns one
// transport.Port from Open until Close and exposes the command set as
// typed operations that return the raw reply of the pump.
package pump

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/syringe-pump/internal/metrics"
	"github.com/ffutop/syringe-pump/protocol"
	"github.com/ffutop/syringe-pump/transport"
)

// DefaultOpenSettle is the wait after opening the port before the line is used.
const DefaultOpenSettle = 2 * time.Second

// ErrNotConnected indicates an operation on a pump that is not open.
var ErrNotConnected = errors.New("not connected")

// State is the connection state of a Pump.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// IsConnectionError reports whether err concerns the session rather than
// the arguments of a call. Such errors call for reopening the pump.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrNotConnected) ||
		errors.Is(err, transport.ErrPortUnavailable) ||
		errors.Is(err, transport.ErrPortOpenFailed) ||
		errors.Is(err, transport.ErrTransport)
}

type options struct {
	settle     time.Duration
	openSettle time.Duration
	encodeOpts []protocol.EncodeOption
	logger     *slog.Logger
}

// Option configures a Pump.
type Option func(*options)

// WithSettle sets the wait between a command and its reply.
func WithSettle(d time.Duration) Option {
	return func(o *options) { o.settle = d }
}

// WithOpenSettle sets the wait after opening the port.
func WithOpenSettle(d time.Duration) Option {
	return func(o *options) { o.openSettle = d }
}

// WithStrictUnits rejects unknown rate units instead of dropping them.
func WithStrictUnits() Option {
	return func(o *options) { o.encodeOpts = append(o.encodeOpts, protocol.WithStrictUnits()) }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Pump is a session on one pump line. All operations are serialized.
type Pump struct {
	name       string
	registry   *transport.Registry
	settle     time.Duration
	encodeOpts []protocol.EncodeOption
	logger     *slog.Logger

	mu    sync.Mutex
	state State
	port  transport.Port
}

// Open claims name in registry, opens it with opener and waits the open
// settle delay. A nil registry only tracks this session.
func Open(ctx context.Context, registry *transport.Registry, opener transport.Opener, name string, opts ...Option) (*Pump, error) {
	o := options{
		settle:     DefaultSettle,
		openSettle: DefaultOpenSettle,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if registry == nil {
		registry = transport.NewRegistry()
	}

	p := &Pump{
		name:       name,
		registry:   registry,
		settle:     o.settle,
		encodeOpts: o.encodeOpts,
		logger:     o.logger.With("port", name),
		state:      StateDisconnected,
	}
	if err := p.connect(ctx, opener, o.openSettle); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pump) connect(ctx context.Context, opener transport.Opener, openSettle time.Duration) error {
	p.state = StateConnecting

	if err := p.registry.Claim(p.name); err != nil {
		p.state = StateDisconnected
		return err
	}
	port, err := opener.Open(ctx, p.name)
	if err != nil {
		p.registry.Release(p.name)
		p.state = StateDisconnected
		return fmt.Errorf("%w: %s: %w", transport.ErrPortOpenFailed, p.name, err)
	}

	if openSettle > 0 {
		select {
		case <-ctx.Done():
			port.Close()
			p.registry.Release(p.name)
			p.state = StateDisconnected
			return ctx.Err()
		case <-time.After(openSettle):
		}
	}

	p.port = port
	p.state = StateOpen
	metrics.OpenLines.Inc()
	p.logger.Info("pump line open", "settle", p.settle)
	return nil
}

// Name returns the port name.
func (p *Pump) Name() string {
	return p.name
}

// State returns the connection state.
func (p *Pump) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Close closes the port and releases its claim. Closing a pump that is not
// open is a no-op.
func (p *Pump) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateOpen {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	p.registry.Release(p.name)
	p.state = StateClosed
	metrics.OpenLines.Dec()
	p.logger.Info("pump line closed")
	if err != nil {
		return fmt.Errorf("close %s: %w", p.name, err)
	}
	return nil
}

// Do encodes cmd and exchanges it with the pump. Encoding errors are
// returned before anything is written.
func (p *Pump) Do(ctx context.Context, cmd protocol.Command) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateOpen {
		return "", fmt.Errorf("%w: %s is %s", ErrNotConnected, p.name, p.state)
	}
	wire, err := cmd.Encode(p.encodeOpts...)
	if err != nil {
		return "", err
	}

	p.logger.Debug("send to pump", "command", wire)
	start := time.Now()
	resp, err := Exchange(ctx, p.port, wire, p.settle)
	metrics.ObserveExchange(cmd.Kind.String(), start, err)
	if err != nil {
		p.logger.Error("pump exchange failed", "command", wire, "err", err)
		return "", err
	}
	p.logger.Debug("recv from pump", "command", wire, "response", fmt.Sprintf("%q", resp))
	return resp, nil
}
