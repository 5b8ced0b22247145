// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	goserial "github.com/grid-x/serial"

	"github.com/ffutop/syringe-pump/transport"
)

// Line settings of the pump dialect. They are fixed and not user-configurable.
// The line carries no flow control.
const (
	BaudRate   = 19200
	DataBits   = 8
	Parity     = "N"
	StopBits   = 1
	Terminator = "\r"
)

const (
	// DefaultReadTimeout bounds each read while draining the receive buffer.
	DefaultReadTimeout = 50 * time.Millisecond

	readChunk = 256
)

// Port is a serial pump line.
type Port struct {
	// Serial port configuration.
	goserial.Config

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port io.ReadWriteCloser
}

// Open opens device with the dialect's line settings.
func Open(ctx context.Context, device string, readTimeout time.Duration) (*Port, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	p := &Port{
		Config: goserial.Config{
			Address:  device,
			BaudRate: BaudRate,
			DataBits: DataBits,
			Parity:   Parity,
			StopBits: StopBits,
			Timeout:  readTimeout,
		},
	}
	port, err := goserial.Open(&p.Config)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", device, err)
	}
	p.port = port
	slog.Debug("serial port opened", "device", device, "baudRate", BaudRate, "readTimeout", readTimeout)
	return p, nil
}

// NewOpener returns an Opener for serial devices.
func NewOpener(readTimeout time.Duration) transport.Opener {
	return transport.OpenerFunc(func(ctx context.Context, name string) (transport.Port, error) {
		return Open(ctx, name, readTimeout)
	})
}

// Write sends b followed by the line terminator.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return 0, fmt.Errorf("%w: %s is not open", transport.ErrTransport, p.Address)
	}
	frame := make([]byte, 0, len(b)+len(Terminator))
	frame = append(frame, b...)
	frame = append(frame, Terminator...)
	if _, err := p.port.Write(frame); err != nil {
		return 0, err
	}
	return len(b), nil
}

// ReadAvailable drains the receive buffer until a read times out or returns nothing.
func (p *Port) ReadAvailable() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return nil, fmt.Errorf("%w: %s is not open", transport.ErrTransport, p.Address)
	}
	var data []byte
	buf := make([]byte, readChunk)
	for {
		n, err := p.port.Read(buf)
		data = append(data, buf[:n]...)
		if err != nil {
			if errors.Is(err, goserial.ErrTimeout) || errors.Is(err, io.EOF) {
				return data, nil
			}
			return data, err
		}
		if n == 0 {
			return data, nil
		}
	}
}

// IsOpen reports whether the device is open.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.port != nil
}

// Close closes the serial port if it is connected.
func (p *Port) Close() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port != nil {
		err = p.port.Close()
		p.port = nil
	}
	return
}
