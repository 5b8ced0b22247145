// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package emulator

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/ffutop/syringe-pump/internal/emulator/model"
	"github.com/ffutop/syringe-pump/internal/emulator/persistence"
	"github.com/ffutop/syringe-pump/protocol"
)

// Response framing
const (
	STX = '\x02'
	ETX = '\x03'
)

// Status characters
const (
	StatusStopped     = 'S'
	StatusInfusing    = 'I'
	StatusWithdrawing = 'W'
)

// Alarm payloads
const (
	ReplyUnknown       = "?"
	ReplyOutOfRange    = "?OOR"
	ReplyNotApplicable = "?NA"
)

const (
	// Version is reported by VER.
	Version = "NE1000V3.928"

	MaxDiameter = 50.0

	// Syringes up to this diameter report volumes in microliters.
	microliterDiameter = 14.0
)

// Emulator answers the pump dialect on behalf of every address of one line.
type Emulator struct {
	bank    *model.Bank
	storage persistence.Storage
}

// New creates an Emulator over bank. storage may be nil.
func New(bank *model.Bank, storage persistence.Storage) *Emulator {
	if storage == nil {
		storage = persistence.NewMemoryStorage()
	}
	return &Emulator{bank: bank, storage: storage}
}

// Process executes one command line and returns the framed reply
// `STX AA status [data] ETX`. A line without address acts on address 0.
func (e *Emulator) Process(line string) string {
	cmd, err := protocol.Parse(line)
	if err != nil {
		slog.Debug("emulator rejected command", "line", line, "err", err)
		reply := ReplyUnknown
		if errors.Is(err, protocol.ErrInvalidParameter) {
			reply = ReplyOutOfRange
		}
		return frame(0, StatusStopped, reply)
	}

	address := 0
	if cmd.Address != nil {
		address = cmd.Address.Code()
	}

	var data string
	state, err := e.bank.Update(address, func(s *model.PumpState) {
		data = e.apply(s, cmd)
	})
	if err != nil {
		return frame(address, StatusStopped, ReplyUnknown)
	}
	e.storage.OnWrite(address)

	return frame(address, status(state), data)
}

// apply mutates s according to cmd and returns the reply payload.
func (e *Emulator) apply(s *model.PumpState, cmd protocol.Command) string {
	p := cmd.Params
	switch cmd.Kind {
	case protocol.KindDiameter:
		if p.Number == nil {
			return formatVolume(s.Diameter)
		}
		if *p.Number <= 0 || *p.Number > MaxDiameter {
			return ReplyOutOfRange
		}
		s.Diameter = *p.Number

	case protocol.KindRate:
		if p.Number == nil {
			rate, _ := protocol.FormatRate(s.Rate)
			return rate + string(s.Unit)
		}
		if *p.Number < 0 {
			return ReplyOutOfRange
		}
		if p.Unit != "" {
			unit, ok := protocol.ParseRateUnit(p.Unit)
			if !ok {
				return ReplyOutOfRange
			}
			s.Unit = unit
		}
		s.Rate = *p.Number

	case protocol.KindVolume:
		if p.Number == nil {
			return formatVolume(s.Volume) + volumeUnit(s.Diameter)
		}
		if *p.Number < 0 {
			return ReplyOutOfRange
		}
		s.Volume = *p.Number

	case protocol.KindDirection:
		if p.Token == "" {
			return string(s.Direction)
		}
		dir, ok := protocol.ParseDirection(p.Token)
		if !ok {
			return ReplyNotApplicable
		}
		if dir == protocol.Reverse {
			dir = protocol.Infuse
			if s.Direction == protocol.Infuse {
				dir = protocol.Withdraw
			}
		}
		s.Direction = dir

	case protocol.KindClearDispense:
		dir, ok := protocol.ParseDirection(p.Token)
		switch {
		case ok && dir == protocol.Infuse:
			s.Infused = 0
		case ok && dir == protocol.Withdraw:
			s.Withdrawn = 0
		default:
			return ReplyNotApplicable
		}

	case protocol.KindRun:
		if s.Running {
			return ""
		}
		s.Running = true
		if s.Direction == protocol.Withdraw {
			s.Withdrawn += s.Volume
		} else {
			s.Infused += s.Volume
		}

	case protocol.KindStop:
		s.Running = false

	case protocol.KindDispensed:
		return "I" + formatVolume(s.Infused) + "W" + formatVolume(s.Withdrawn) + volumeUnit(s.Diameter)

	case protocol.KindSafeMode:
		return "0"

	case protocol.KindVersion:
		return Version

	default:
		return ReplyUnknown
	}
	return ""
}

// Close closes the underlying storage.
func (e *Emulator) Close() error {
	return e.storage.Close()
}

func status(s model.PumpState) byte {
	if !s.Running {
		return StatusStopped
	}
	if s.Direction == protocol.Withdraw {
		return StatusWithdrawing
	}
	return StatusInfusing
}

func formatVolume(v float64) string {
	s, err := protocol.FormatVolume(v)
	if err != nil {
		return ReplyOutOfRange
	}
	return s
}

func volumeUnit(diameter float64) string {
	if diameter <= microliterDiameter {
		return "UL"
	}
	return "ML"
}

func frame(address int, status byte, data string) string {
	var b strings.Builder
	b.WriteByte(STX)
	b.WriteString(protocol.Address(address).String())
	b.WriteByte(status)
	b.WriteString(data)
	b.WriteByte(ETX)
	return b.String()
}
