// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package protocol

import "fmt"

// Kind identifies a command of the pump dialect.
type Kind int

// Command kinds
const (
	KindDiameter Kind = iota
	KindRun
	KindStop
	KindRate
	KindVolume
	KindDirection
	KindClearDispense
	KindDispensed
	KindSafeMode
	KindVersion
)

// Mnemonics
const (
	MnemonicDiameter      = "DIA"
	MnemonicRun           = "RUN"
	MnemonicStop          = "STP"
	MnemonicRate          = "RAT"
	MnemonicVolume        = "VOL"
	MnemonicDirection     = "DIR"
	MnemonicClearDispense = "CLD"
	MnemonicDispensed     = "DIS"
	MnemonicSafeMode      = "SAF"
	MnemonicVersion       = "VER"
)

const MnemonicSize = 3

var mnemonics = map[Kind]string{
	KindDiameter:      MnemonicDiameter,
	KindRun:           MnemonicRun,
	KindStop:          MnemonicStop,
	KindRate:          MnemonicRate,
	KindVolume:        MnemonicVolume,
	KindDirection:     MnemonicDirection,
	KindClearDispense: MnemonicClearDispense,
	KindDispensed:     MnemonicDispensed,
	KindSafeMode:      MnemonicSafeMode,
	KindVersion:       MnemonicVersion,
}

var kinds = func() map[string]Kind {
	m := make(map[string]Kind, len(mnemonics))
	for k, v := range mnemonics {
		m[v] = k
	}
	return m
}()

// Mnemonic returns the three letter protocol code of the kind.
func (k Kind) Mnemonic() (string, error) {
	m, ok := mnemonics[k]
	if !ok {
		return "", fmt.Errorf("%w: kind %d", ErrUnknownCommand, int(k))
	}
	return m, nil
}

func (k Kind) String() string {
	if m, ok := mnemonics[k]; ok {
		return m
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindOf looks up the kind for a mnemonic. The match is case-sensitive.
func KindOf(mnemonic string) (Kind, error) {
	k, ok := kinds[mnemonic]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, mnemonic)
	}
	return k, nil
}

// queryOnly reports whether the kind never carries a value.
func (k Kind) queryOnly() bool {
	switch k {
	case KindRun, KindStop, KindDispensed, KindSafeMode, KindVersion:
		return true
	}
	return false
}

// Direction is the pumping direction token.
type Direction string

const (
	Infuse   Direction = "INF"
	Withdraw Direction = "WDR"
	Reverse  Direction = "REV"
)

// RateUnit is the two letter rate unit code.
type RateUnit string

const (
	MicrolitersPerMinute RateUnit = "UM"
	MillilitersPerMinute RateUnit = "MM"
	MicrolitersPerHour   RateUnit = "UH"
	MillilitersPerHour   RateUnit = "MH"
)

var (
	directionTokens = []Direction{Infuse, Withdraw, Reverse}
	clearTokens     = []Direction{Infuse, Withdraw}
	rateUnits       = []RateUnit{MicrolitersPerMinute, MillilitersPerMinute, MicrolitersPerHour, MillilitersPerHour}
)
