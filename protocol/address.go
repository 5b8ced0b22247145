// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package protocol

import (
	"fmt"
	"math"
)

// MaxAddress is the highest address of the two digit multi-drop field.
const MaxAddress = 99

// Address selects one pump on a shared line. Values outside [0, 99] are
// rounded and folded modulo 100 when encoded.
type Address float64

// At returns a pointer to the address a.
func At(a float64) *Address {
	addr := Address(a)
	return &addr
}

// Code returns round(a) mod 100, always in [0, 99].
func (a Address) Code() int {
	f := float64(a)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	n := math.Mod(math.Round(f), MaxAddress+1)
	if n < 0 {
		n += MaxAddress + 1
	}
	return int(n)
}

// String renders the address as exactly two digits.
func (a Address) String() string {
	return fmt.Sprintf("%02d", a.Code())
}

// Prefix glues the address onto body. A nil address leaves body unchanged.
func Prefix(body string, addr *Address) string {
	if addr == nil {
		return body
	}
	return addr.String() + body
}
