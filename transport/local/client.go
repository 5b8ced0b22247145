// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ffutop/syringe-pump/internal/config"
	"github.com/ffutop/syringe-pump/internal/emulator"
	"github.com/ffutop/syringe-pump/internal/emulator/persistence"
	"github.com/ffutop/syringe-pump/transport"
)

// Opener opens ports onto an in-process pump emulator.
type Opener struct {
	emu *emulator.Emulator
}

// NewOpener creates the emulator and its storage from cfg.
func NewOpener(cfg config.LocalConfig) *Opener {
	var storage persistence.Storage
	switch cfg.Persistence.Type {
	case "file":
		slog.Info("Initializing pump emulator with file persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewFileStorage(cfg.Persistence.Path)
	case "mmap":
		slog.Info("Initializing pump emulator with MMAP persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewMmapStorage(cfg.Persistence.Path)
	default:
		slog.Info("Initializing pump emulator with memory storage (non-persistent)")
		storage = persistence.NewMemoryStorage()
	}

	bank, err := storage.Load()
	if err != nil {
		slog.Error("Failed to load persistence data", "err", err)
		slog.Warn("Falling back to MemoryStorage")
		storage = persistence.NewMemoryStorage()
		bank, _ = storage.Load()
	}

	return &Opener{emu: emulator.New(bank, storage)}
}

// NewOpenerWith wraps an existing emulator.
func NewOpenerWith(emu *emulator.Emulator) *Opener {
	return &Opener{emu: emu}
}

// Open returns a fresh port onto the emulator. The name is informational.
func (o *Opener) Open(ctx context.Context, name string) (transport.Port, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return &Port{name: name, emu: o.emu, open: true}, nil
}

// Close closes the emulator storage.
func (o *Opener) Close() error {
	return o.emu.Close()
}

// Port is a pump line served by the emulator. Each write is processed
// immediately and its reply buffered until the next ReadAvailable.
type Port struct {
	name string
	emu  *emulator.Emulator

	mu      sync.Mutex
	open    bool
	pending []byte
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return 0, fmt.Errorf("%w: %s is not open", transport.ErrTransport, p.name)
	}
	line := strings.TrimRight(string(b), "\r\n")
	p.pending = append(p.pending, p.emu.Process(line)...)
	return len(b), nil
}

func (p *Port) ReadAvailable() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return nil, fmt.Errorf("%w: %s is not open", transport.ErrTransport, p.name)
	}
	data := p.pending
	p.pending = nil
	return data, nil
}

func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.open
}

// Close marks the port closed. The emulator keeps running for other ports.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.open = false
	p.pending = nil
	return nil
}
