// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pump

import (
	"context"

	"github.com/ffutop/syringe-pump/protocol"
)

// DiameterArgs sets (Value non-nil) or queries the syringe inner diameter in mm.
type DiameterArgs struct {
	Value   *float64
	Address *protocol.Address
}

// VolumeArgs sets or queries the volume to dispense.
type VolumeArgs struct {
	Value   *float64
	Address *protocol.Address
}

// RateArgs sets or queries the pumping rate. An unknown Unit is dropped
// unless the pump was opened WithStrictUnits.
type RateArgs struct {
	Value   *float64
	Unit    protocol.RateUnit
	Address *protocol.Address
}

// DirectionArgs sets (INF, WDR, REV) or queries the pumping direction.
type DirectionArgs struct {
	Direction protocol.Direction
	Address   *protocol.Address
}

// ClearArgs clears the infused (INF) or withdrawn (WDR) volume counter.
type ClearArgs struct {
	Direction protocol.Direction
	Address   *protocol.Address
}

// Diameter sets the syringe inner diameter in mm, or queries it when Value is nil.
func (p *Pump) Diameter(ctx context.Context, args DiameterArgs) (string, error) {
	return p.Do(ctx, protocol.Command{
		Address: args.Address,
		Kind:    protocol.KindDiameter,
		Params:  protocol.Params{Number: args.Value},
	})
}

// Volume sets the volume to dispense, or queries it when Value is nil.
func (p *Pump) Volume(ctx context.Context, args VolumeArgs) (string, error) {
	return p.Do(ctx, protocol.Command{
		Address: args.Address,
		Kind:    protocol.KindVolume,
		Params:  protocol.Params{Number: args.Value},
	})
}

// Rate sets the pumping rate, or queries it when Value is nil.
func (p *Pump) Rate(ctx context.Context, args RateArgs) (string, error) {
	return p.Do(ctx, protocol.Command{
		Address: args.Address,
		Kind:    protocol.KindRate,
		Params:  protocol.Params{Number: args.Value, Unit: string(args.Unit)},
	})
}

// Direction sets the pumping direction, or queries it when empty.
func (p *Pump) Direction(ctx context.Context, args DirectionArgs) (string, error) {
	return p.Do(ctx, protocol.Command{
		Address: args.Address,
		Kind:    protocol.KindDirection,
		Params:  protocol.Params{Token: string(args.Direction)},
	})
}

// ClearDispensed resets one dispensed volume counter.
func (p *Pump) ClearDispensed(ctx context.Context, args ClearArgs) (string, error) {
	return p.Do(ctx, protocol.Command{
		Address: args.Address,
		Kind:    protocol.KindClearDispense,
		Params:  protocol.Params{Token: string(args.Direction)},
	})
}

// Run starts pumping.
func (p *Pump) Run(ctx context.Context, addr *protocol.Address) (string, error) {
	return p.query(ctx, protocol.KindRun, addr)
}

// Stop stops pumping.
func (p *Pump) Stop(ctx context.Context, addr *protocol.Address) (string, error) {
	return p.query(ctx, protocol.KindStop, addr)
}

// Dispensed queries the infused and withdrawn volumes.
func (p *Pump) Dispensed(ctx context.Context, addr *protocol.Address) (string, error) {
	return p.query(ctx, protocol.KindDispensed, addr)
}

// SafeMode queries the safe mode timeout.
func (p *Pump) SafeMode(ctx context.Context, addr *protocol.Address) (string, error) {
	return p.query(ctx, protocol.KindSafeMode, addr)
}

// Version queries the firmware version.
func (p *Pump) Version(ctx context.Context, addr *protocol.Address) (string, error) {
	return p.query(ctx, protocol.KindVersion, addr)
}

func (p *Pump) query(ctx context.Context, kind protocol.Kind, addr *protocol.Address) (string, error) {
	return p.Do(ctx, protocol.Command{Address: addr, Kind: kind})
}
