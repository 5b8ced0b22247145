// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package pump

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffutop/syringe-pump/internal/emulator"
	"github.com/ffutop/syringe-pump/internal/emulator/model"
	"github.com/ffutop/syringe-pump/protocol"
	"github.com/ffutop/syringe-pump/transport"
	"github.com/ffutop/syringe-pump/transport/local"
)

// recordingPort logs every write and read in order and answers each read with reply.
type recordingPort struct {
	events   []string
	reply    string
	open     bool
	writeErr error
	readErr  error
}

func (r *recordingPort) Write(b []byte) (int, error) {
	if r.writeErr != nil {
		return 0, r.writeErr
	}
	r.events = append(r.events, "write "+string(b))
	return len(b), nil
}

func (r *recordingPort) ReadAvailable() ([]byte, error) {
	if r.readErr != nil {
		return nil, r.readErr
	}
	r.events = append(r.events, "read")
	return []byte(r.reply), nil
}

func (r *recordingPort) IsOpen() bool { return r.open }

func (r *recordingPort) Close() error {
	r.open = false
	return nil
}

func openRecording(t *testing.T, registry *transport.Registry, reply string) (*Pump, *recordingPort) {
	t.Helper()
	port := &recordingPort{reply: reply, open: true}
	opener := transport.OpenerFunc(func(ctx context.Context, name string) (transport.Port, error) {
		return port, nil
	})
	p, err := Open(context.Background(), registry, opener, "/dev/ttyTEST", WithSettle(0), WithOpenSettle(0))
	require.NoError(t, err)
	return p, port
}

func TestPump_CommandForms(t *testing.T) {
	ctx := context.Background()
	p, port := openRecording(t, nil, "\x0200S\x03")
	defer p.Close()

	resp, err := p.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "\x0200S\x03", resp)

	_, err = p.Run(ctx, protocol.At(5))
	require.NoError(t, err)
	_, err = p.Direction(ctx, DirectionArgs{Direction: "inf"})
	require.NoError(t, err)
	_, err = p.Rate(ctx, RateArgs{Value: protocol.Float(1500), Unit: protocol.MicrolitersPerHour, Address: protocol.At(103)})
	require.NoError(t, err)
	_, err = p.Rate(ctx, RateArgs{Value: protocol.Float(2), Unit: "XX"})
	require.NoError(t, err)
	_, err = p.Diameter(ctx, DiameterArgs{Value: protocol.Float(26.59), Address: protocol.At(7)})
	require.NoError(t, err)
	_, err = p.Volume(ctx, VolumeArgs{})
	require.NoError(t, err)
	_, err = p.ClearDispensed(ctx, ClearArgs{Direction: protocol.Withdraw})
	require.NoError(t, err)
	_, err = p.Dispensed(ctx, nil)
	require.NoError(t, err)
	_, err = p.SafeMode(ctx, nil)
	require.NoError(t, err)
	_, err = p.Version(ctx, protocol.At(0))
	require.NoError(t, err)

	require.Equal(t, []string{
		"write RUN", "read",
		"write 05RUN", "read",
		"write DIR INF", "read",
		"write 03RAT 1500 UH", "read",
		"write RAT 2.000", "read",
		"write 07DIA 26.59", "read",
		"write VOL", "read",
		"write CLD WDR", "read",
		"write DIS", "read",
		"write SAF", "read",
		"write 00VER", "read",
	}, port.events)
}

func TestPump_ValidationBeforeWrite(t *testing.T) {
	ctx := context.Background()
	p, port := openRecording(t, nil, "")
	defer p.Close()

	_, err := p.Direction(ctx, DirectionArgs{Direction: "XYZ"})
	require.ErrorIs(t, err, protocol.ErrInvalidParameter)
	_, err = p.ClearDispensed(ctx, ClearArgs{Direction: protocol.Reverse})
	require.ErrorIs(t, err, protocol.ErrInvalidParameter)
	_, err = p.Volume(ctx, VolumeArgs{Value: protocol.Float(-1)})
	require.ErrorIs(t, err, protocol.ErrInvalidParameter)
	_, err = p.Do(ctx, protocol.Command{Kind: protocol.Kind(99)})
	require.ErrorIs(t, err, protocol.ErrUnknownCommand)

	require.Empty(t, port.events)
	require.False(t, IsConnectionError(err))
}

func TestPump_StopThenRun(t *testing.T) {
	ctx := context.Background()
	p, port := openRecording(t, nil, "")
	defer p.Close()

	_, err := p.Stop(ctx, protocol.At(12))
	require.NoError(t, err)
	_, err = p.Run(ctx, protocol.At(12))
	require.NoError(t, err)

	require.Equal(t, []string{"write 12STP", "read", "write 12RUN", "read"}, port.events)
}

func TestPump_StrictUnits(t *testing.T) {
	port := &recordingPort{open: true}
	opener := transport.OpenerFunc(func(ctx context.Context, name string) (transport.Port, error) {
		return port, nil
	})
	p, err := Open(context.Background(), nil, opener, "COM1", WithSettle(0), WithOpenSettle(0), WithStrictUnits())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Rate(context.Background(), RateArgs{Value: protocol.Float(2), Unit: "XX"})
	require.ErrorIs(t, err, protocol.ErrInvalidParameter)
	require.Empty(t, port.events)
}

func TestPump_Closed(t *testing.T) {
	ctx := context.Background()
	registry := transport.NewRegistry()
	p, port := openRecording(t, registry, "")

	require.Equal(t, StateOpen, p.State())
	require.True(t, registry.Live("/dev/ttyTEST"))

	require.NoError(t, p.Close())
	require.Equal(t, StateClosed, p.State())
	require.False(t, port.open)
	require.False(t, registry.Live("/dev/ttyTEST"))
	require.NoError(t, p.Close())

	ops := map[string]func() (string, error){
		"Diameter":       func() (string, error) { return p.Diameter(ctx, DiameterArgs{Value: protocol.Float(1)}) },
		"Rate":           func() (string, error) { return p.Rate(ctx, RateArgs{}) },
		"Volume":         func() (string, error) { return p.Volume(ctx, VolumeArgs{}) },
		"Direction":      func() (string, error) { return p.Direction(ctx, DirectionArgs{Direction: "XYZ"}) },
		"ClearDispensed": func() (string, error) { return p.ClearDispensed(ctx, ClearArgs{Direction: protocol.Infuse}) },
		"Run":            func() (string, error) { return p.Run(ctx, nil) },
		"Stop":           func() (string, error) { return p.Stop(ctx, protocol.At(1)) },
		"Dispensed":      func() (string, error) { return p.Dispensed(ctx, nil) },
		"SafeMode":       func() (string, error) { return p.SafeMode(ctx, nil) },
		"Version":        func() (string, error) { return p.Version(ctx, nil) },
	}
	for name, op := range ops {
		_, err := op()
		require.ErrorIs(t, err, ErrNotConnected, name)
		require.True(t, IsConnectionError(err), name)
	}
	require.Empty(t, port.events)
}

func TestOpen_Failures(t *testing.T) {
	ctx := context.Background()
	registry := transport.NewRegistry()
	p, _ := openRecording(t, registry, "")
	defer p.Close()

	// Second session on the same port
	_, err := Open(ctx, registry, transport.OpenerFunc(func(ctx context.Context, name string) (transport.Port, error) {
		t.Fatal("opener must not be called for a claimed port")
		return nil, nil
	}), "/dev/ttyTEST", WithOpenSettle(0))
	require.ErrorIs(t, err, transport.ErrPortUnavailable)
	require.True(t, IsConnectionError(err))

	// Underlying open fails; the claim is released
	boom := errors.New("no such device")
	_, err = Open(ctx, registry, transport.OpenerFunc(func(ctx context.Context, name string) (transport.Port, error) {
		return nil, boom
	}), "/dev/ttyMISSING", WithOpenSettle(0))
	require.ErrorIs(t, err, transport.ErrPortOpenFailed)
	require.ErrorIs(t, err, boom)
	require.False(t, registry.Live("/dev/ttyMISSING"))
}

func TestOpen_CancelledDuringSettle(t *testing.T) {
	registry := transport.NewRegistry()
	port := &recordingPort{open: true}
	opener := transport.OpenerFunc(func(ctx context.Context, name string) (transport.Port, error) {
		return port, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Open(ctx, registry, opener, "COM9", WithOpenSettle(time.Minute))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, port.open)
	require.False(t, registry.Live("COM9"))
}

func TestPump_WithEmulator(t *testing.T) {
	ctx := context.Background()
	opener := local.NewOpenerWith(emulator.New(model.NewBank(), nil))
	p, err := Open(ctx, nil, opener, "local", WithSettle(0), WithOpenSettle(0))
	require.NoError(t, err)
	defer p.Close()

	addr := protocol.At(2)
	_, err = p.Diameter(ctx, DiameterArgs{Value: protocol.Float(26.59), Address: addr})
	require.NoError(t, err)
	_, err = p.Rate(ctx, RateArgs{Value: protocol.Float(5), Unit: protocol.MillilitersPerMinute, Address: addr})
	require.NoError(t, err)
	_, err = p.Volume(ctx, VolumeArgs{Value: protocol.Float(1.5), Address: addr})
	require.NoError(t, err)

	resp, err := p.Run(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, "\x0202I\x03", resp)

	resp, err = p.Dispensed(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, "\x0202II1.500W0.000ML\x03", resp)

	resp, err = p.Rate(ctx, RateArgs{Address: addr})
	require.NoError(t, err)
	require.Equal(t, "\x0202I5.000MM\x03", resp)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "disconnected", StateDisconnected.String())
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "open", StateOpen.String())
	require.Equal(t, "closed", StateClosed.String())
	require.Equal(t, "State(9)", State(9).String())
}
