// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/syringe-pump/protocol"
	"github.com/ffutop/syringe-pump/transport"
)

const (
	requestTimeout = 5 * time.Second
	queueSize      = 100
)

// Executor runs one command against a pump line.
type Executor interface {
	Do(ctx context.Context, cmd protocol.Command) (string, error)
}

type queuedRequest struct {
	ctx      context.Context
	cmd      protocol.Command
	response chan<- queuedResponse
}

type queuedResponse struct {
	response string
	err      error
}

// Gateway bridges remote clients to one pump line. Requests from all
// upstreams are executed one at a time by a single worker.
type Gateway struct {
	Name      string
	Upstreams []transport.Upstream
	Line      Executor

	requests chan *queuedRequest
}

// NewGateway creates a new Gateway instance
func NewGateway(name string, upstreams []transport.Upstream, line Executor) *Gateway {
	return &Gateway{
		Name:      name,
		Upstreams: upstreams,
		Line:      line,
		requests:  make(chan *queuedRequest, queueSize),
	}
}

// Start starts the worker and all upstream servers, and blocks until ctx is done.
func (g *Gateway) Start(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		g.worker(ctx)
	}()

	for i, us := range g.Upstreams {
		wg.Add(1)
		go func(ups transport.Upstream, idx int) {
			defer wg.Done()
			slog.Info("Starting upstream", "gateway", g.Name, "index", idx)
			if err := ups.Start(ctx, g.Handle); err != nil {
				slog.Error("Upstream stopped with error", "gateway", g.Name, "index", idx, "err", err)
			}
		}(us, i)
	}

	<-ctx.Done()

	// Graceful shutdown
	for _, us := range g.Upstreams {
		us.Close()
	}

	wg.Wait()
	return nil
}

// Handle parses one command line and queues it for the worker.
func (g *Gateway) Handle(ctx context.Context, line string) (string, error) {
	cmd, err := protocol.Parse(line)
	if err != nil {
		slog.Warn("Rejected command line", "gateway", g.Name, "line", line, "err", err)
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	responseChan := make(chan queuedResponse, 1)
	select {
	case g.requests <- &queuedRequest{ctx: ctx, cmd: cmd, response: responseChan}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case result := <-responseChan:
		return result.response, result.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// worker executes queued requests serially.
func (g *Gateway) worker(ctx context.Context) {
	slog.Debug("Pump worker started", "gateway", g.Name)
	defer slog.Debug("Pump worker stopped", "gateway", g.Name)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-g.requests:
			if req.ctx.Err() != nil {
				req.response <- queuedResponse{err: req.ctx.Err()}
				continue
			}
			resp, err := g.Line.Do(req.ctx, req.cmd)
			if err != nil {
				slog.Error("Pump request failed", "gateway", g.Name, "command", req.cmd.Kind, "err", err)
			}
			req.response <- queuedResponse{response: resp, err: err}
		}
	}
}
