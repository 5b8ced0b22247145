// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pump

import (
	"context"
	"fmt"
	"time"

	"github.com/ffutop/syringe-pump/transport"
)

// DefaultSettle is the wait between writing a command and reading the reply.
const DefaultSettle = 500 * time.Millisecond

// Exchange performs one round trip on port: write command, wait settle,
// then read whatever the pump has sent. The port appends the line terminator.
// An empty reply is returned as "" without error. Nothing is retried.
//
// ctx is only checked before the write. Once the command is on the wire the
// settle and the read always run, so the reply never leaks into the next
// exchange on the line.
func Exchange(ctx context.Context, port transport.Port, command string, settle time.Duration) (string, error) {
	if port == nil || !port.IsOpen() {
		return "", fmt.Errorf("%w: port is not open", transport.ErrTransport)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := port.Write([]byte(command)); err != nil {
		return "", fmt.Errorf("%w: write %q: %w", transport.ErrTransport, command, err)
	}

	if settle > 0 {
		time.Sleep(settle)
	}

	data, err := port.ReadAvailable()
	if err != nil {
		return "", fmt.Errorf("%w: read reply to %q: %w", transport.ErrTransport, command, err)
	}
	return string(data), nil
}
