// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/ffutop/syringe-pump/protocol"
)

const (
	// Slots is the number of addressable pumps on one line.
	Slots = protocol.MaxAddress + 1

	// SlotSize is the encoded size of one pump state.
	//
	// Layout:
	// - 0: flags (bit 0 running)
	// - 1: direction index
	// - 2: rate unit index
	// - 3: reserved
	// - 4..: diameter, rate, volume, infused, withdrawn as little-endian float64
	SlotSize = 48

	// TotalSize is the encoded size of a whole bank.
	TotalSize = Slots * SlotSize
)

const (
	offsetFlags     = 0
	offsetDirection = 1
	offsetUnit      = 2
	offsetDiameter  = 4
	offsetRate      = offsetDiameter + 8
	offsetVolume    = offsetRate + 8
	offsetInfused   = offsetVolume + 8
	offsetWithdrawn = offsetInfused + 8

	flagRunning = 1 << 0
)

var (
	directions = []protocol.Direction{protocol.Infuse, protocol.Withdraw}
	units      = []protocol.RateUnit{
		protocol.MicrolitersPerMinute,
		protocol.MillilitersPerMinute,
		protocol.MicrolitersPerHour,
		protocol.MillilitersPerHour,
	}
)

// PumpState is the programmed and accumulated state of one emulated pump.
type PumpState struct {
	Running   bool
	Direction protocol.Direction
	Unit      protocol.RateUnit
	Diameter  float64
	Rate      float64
	Volume    float64
	Infused   float64
	Withdrawn float64
}

// Bank holds the state of every address on a line in a flat byte slice,
// so that storages can back it with a file or a memory map.
type Bank struct {
	mu   sync.RWMutex
	data []byte
}

// NewBank creates a bank with every pump zeroed.
func NewBank() *Bank {
	return &Bank{data: make([]byte, TotalSize)}
}

// BankFrom creates a bank backed by data, which must be TotalSize long.
func BankFrom(data []byte) (*Bank, error) {
	if len(data) != TotalSize {
		return nil, fmt.Errorf("bank size %d, want %d", len(data), TotalSize)
	}
	return &Bank{data: data}, nil
}

// Bytes returns the backing slice.
func (b *Bank) Bytes() []byte {
	return b.data
}

// Get returns the state at address.
func (b *Bank) Get(address int) (PumpState, error) {
	if err := validateAddress(address); err != nil {
		return PumpState{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	return decode(b.slot(address)), nil
}

// Update applies fn to the state at address and stores the result.
func (b *Bank) Update(address int, fn func(*PumpState)) (PumpState, error) {
	if err := validateAddress(address); err != nil {
		return PumpState{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	slot := b.slot(address)
	s := decode(slot)
	fn(&s)
	encode(slot, s)
	return s, nil
}

func (b *Bank) slot(address int) []byte {
	return b.data[address*SlotSize : (address+1)*SlotSize]
}

func decode(slot []byte) PumpState {
	s := PumpState{
		Running:   slot[offsetFlags]&flagRunning != 0,
		Direction: directions[int(slot[offsetDirection])%len(directions)],
		Unit:      units[int(slot[offsetUnit])%len(units)],
		Diameter:  getFloat(slot, offsetDiameter),
		Rate:      getFloat(slot, offsetRate),
		Volume:    getFloat(slot, offsetVolume),
		Infused:   getFloat(slot, offsetInfused),
		Withdrawn: getFloat(slot, offsetWithdrawn),
	}
	return s
}

func encode(slot []byte, s PumpState) {
	var flags byte
	if s.Running {
		flags |= flagRunning
	}
	slot[offsetFlags] = flags
	slot[offsetDirection] = byte(indexOf(directions, s.Direction))
	slot[offsetUnit] = byte(indexOf(units, s.Unit))
	putFloat(slot, offsetDiameter, s.Diameter)
	putFloat(slot, offsetRate, s.Rate)
	putFloat(slot, offsetVolume, s.Volume)
	putFloat(slot, offsetInfused, s.Infused)
	putFloat(slot, offsetWithdrawn, s.Withdrawn)
}

func getFloat(slot []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(slot[off:]))
}

func putFloat(slot []byte, off int, v float64) {
	binary.LittleEndian.PutUint64(slot[off:], math.Float64bits(v))
}

func indexOf[T comparable](set []T, v T) int {
	for i, x := range set {
		if x == v {
			return i
		}
	}
	return 0
}

func validateAddress(address int) error {
	if address < 0 || address >= Slots {
		return fmt.Errorf("address %d out of range", address)
	}
	return nil
}
