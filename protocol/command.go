// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is one addressed pump command.
type Command struct {
	Address *Address
	Kind    Kind
	Params  Params
}

// Encode produces the final wire string `[AA]MMM[ V[ UU]]`.
func (c Command) Encode(opts ...EncodeOption) (string, error) {
	body, err := Encode(c.Kind, c.Params, opts...)
	if err != nil {
		return "", err
	}
	return Prefix(body, c.Address), nil
}

// Parse reads a command line in wire grammar. Line terminators and
// surrounding blanks are ignored; the mnemonic is matched case-insensitively.
// Parse checks shape only, value validation is left to Encode.
func Parse(line string) (Command, error) {
	var cmd Command

	s := strings.TrimSpace(line)
	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	switch digits {
	case 0:
	case 2:
		n, _ := strconv.Atoi(s[:2])
		cmd.Address = At(float64(n))
		s = s[2:]
	default:
		return Command{}, fmt.Errorf("%w: malformed address in %q", ErrInvalidParameter, line)
	}

	if len(s) < MnemonicSize {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}
	kind, err := KindOf(strings.ToUpper(s[:MnemonicSize]))
	if err != nil {
		return Command{}, err
	}
	cmd.Kind = kind

	rest := s[MnemonicSize:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return cmd, nil
	}

	switch kind {
	case KindDiameter, KindVolume, KindRate:
		limit := 1
		if kind == KindRate {
			limit = 2
		}
		if len(fields) > limit {
			return Command{}, fmt.Errorf("%w: too many fields in %q", ErrInvalidParameter, line)
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Command{}, fmt.Errorf("%w: number %q", ErrInvalidParameter, fields[0])
		}
		cmd.Params.Number = &v
		if len(fields) == 2 {
			cmd.Params.Unit = fields[1]
		}
	case KindDirection, KindClearDispense:
		if len(fields) > 1 {
			return Command{}, fmt.Errorf("%w: too many fields in %q", ErrInvalidParameter, line)
		}
		cmd.Params.Token = fields[0]
	default:
		return Command{}, fmt.Errorf("%w: %s takes no value", ErrInvalidParameter, kind)
	}
	return cmd, nil
}
