// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package protocol

import "errors"

var (
	// ErrUnknownCommand indicates a kind or mnemonic outside the command table.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidParameter indicates a value, direction or unit outside the domain of the command.
	ErrInvalidParameter = errors.New("invalid parameter")
)
