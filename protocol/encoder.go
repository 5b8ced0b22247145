// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Params carries the optional fields of a command. A nil Number and empty
// Token/Unit mean "not supplied".
type Params struct {
	Number *float64
	Token  string
	Unit   string
}

func (p Params) empty() bool {
	return p.Number == nil && p.Token == "" && p.Unit == ""
}

// Float returns a pointer to v, for filling optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

type encodeOptions struct {
	strictUnits bool
}

// EncodeOption tunes the encoder.
type EncodeOption func(*encodeOptions)

// WithStrictUnits makes an unrecognised rate unit fail with ErrInvalidParameter
// instead of being dropped from the command.
func WithStrictUnits() EncodeOption {
	return func(o *encodeOptions) {
		o.strictUnits = true
	}
}

// Encode builds the command body `<MMM>[ <value>][ <unit>]` for kind.
// The body carries neither address prefix nor line terminator.
func Encode(kind Kind, p Params, opts ...EncodeOption) (string, error) {
	var o encodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	mnemonic, err := kind.Mnemonic()
	if err != nil {
		return "", err
	}

	if kind.queryOnly() {
		if !p.empty() {
			return "", fmt.Errorf("%w: %s takes no value", ErrInvalidParameter, mnemonic)
		}
		return mnemonic, nil
	}

	switch kind {
	case KindDiameter, KindVolume:
		if p.Token != "" || p.Unit != "" {
			return "", fmt.Errorf("%w: %s takes a number only", ErrInvalidParameter, mnemonic)
		}
		if p.Number == nil {
			return mnemonic, nil
		}
		value, err := FormatVolume(*p.Number)
		if err != nil {
			return "", fmt.Errorf("%s: %w", mnemonic, err)
		}
		return join(mnemonic, value), nil

	case KindRate:
		if p.Token != "" {
			return "", fmt.Errorf("%w: %s takes a number and unit", ErrInvalidParameter, mnemonic)
		}
		if p.Number == nil {
			if p.Unit != "" && o.strictUnits {
				return "", fmt.Errorf("%w: unit %q without rate", ErrInvalidParameter, p.Unit)
			}
			return mnemonic, nil
		}
		value, err := FormatRate(*p.Number)
		if err != nil {
			return "", fmt.Errorf("%s: %w", mnemonic, err)
		}
		if p.Unit == "" {
			return join(mnemonic, value), nil
		}
		unit, ok := ParseRateUnit(p.Unit)
		if !ok {
			if o.strictUnits {
				return "", fmt.Errorf("%w: rate unit %q", ErrInvalidParameter, p.Unit)
			}
			return join(mnemonic, value), nil
		}
		return join(mnemonic, value, string(unit)), nil

	case KindDirection, KindClearDispense:
		if p.Number != nil || p.Unit != "" {
			return "", fmt.Errorf("%w: %s takes a direction only", ErrInvalidParameter, mnemonic)
		}
		if p.Token == "" {
			return mnemonic, nil
		}
		allowed := directionTokens
		if kind == KindClearDispense {
			allowed = clearTokens
		}
		dir, ok := matchDirection(p.Token, allowed)
		if !ok {
			return "", fmt.Errorf("%w: %s does not accept direction %q", ErrInvalidParameter, mnemonic, p.Token)
		}
		return join(mnemonic, string(dir)), nil
	}

	return "", fmt.Errorf("%w: kind %d", ErrUnknownCommand, int(kind))
}

// FormatVolume renders a diameter or volume: 1 decimal from 100 up,
// 2 decimals from 10 up, 3 decimals below.
func FormatVolume(v float64) (string, error) {
	return formatNumber(v, func(v float64) int {
		switch {
		case v >= 100:
			return 1
		case v >= 10:
			return 2
		}
		return 3
	})
}

// FormatRate renders a rate: no decimals from 1000 up, then 1, 2 and 3
// decimals for each lower decade.
func FormatRate(v float64) (string, error) {
	return formatNumber(v, func(v float64) int {
		switch {
		case v >= 1000:
			return 0
		case v >= 100:
			return 1
		case v >= 10:
			return 2
		}
		return 3
	})
}

func formatNumber(v float64, decimals func(float64) int) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return "", fmt.Errorf("%w: %v is not a non-negative number", ErrInvalidParameter, v)
	}
	if v == 0 {
		v = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(v, 'f', decimals(v), 64), nil
}

// ParseRateUnit matches a rate unit code case-insensitively.
func ParseRateUnit(s string) (RateUnit, bool) {
	for _, u := range rateUnits {
		if strings.EqualFold(s, string(u)) {
			return u, true
		}
	}
	return "", false
}

// ParseDirection matches any direction token case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	return matchDirection(s, directionTokens)
}

func matchDirection(s string, allowed []Direction) (Direction, bool) {
	for _, d := range allowed {
		if strings.EqualFold(s, string(d)) {
			return d, true
		}
	}
	return "", false
}

func join(fields ...string) string {
	return strings.Join(fields, " ")
}
