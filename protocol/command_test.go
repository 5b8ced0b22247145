// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package protocol

import (
	"errors"
	"testing"
)

func TestPrefix(t *testing.T) {
	tests := []struct {
		addr *Address
		want string
	}{
		{nil, "RUN"},
		{At(0), "00RUN"},
		{At(5), "05RUN"},
		{At(7), "07RUN"},
		{At(99), "99RUN"},
		{At(103), "03RUN"},
		{At(12.4), "12RUN"},
		{At(12.6), "13RUN"},
		{At(99.5), "00RUN"},
		{At(-3), "97RUN"},
	}
	for _, tt := range tests {
		if got := Prefix("RUN", tt.addr); got != tt.want {
			t.Errorf("Prefix(%v) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestAddressCode_Range(t *testing.T) {
	for a := -250.0; a <= 250; a += 0.25 {
		code := Address(a).Code()
		if code < 0 || code > MaxAddress {
			t.Fatalf("Address(%v).Code() = %d out of range", a, code)
		}
	}
}

func TestCommand_Encode(t *testing.T) {
	cmd := Command{Address: At(12), Kind: KindRate, Params: Params{Number: Float(3.5), Unit: "mh"}}
	got, err := cmd.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if got != "12RAT 3.500 MH" {
		t.Errorf("Encode() = %q", got)
	}

	cmd = Command{Address: At(1), Kind: KindDirection, Params: Params{Token: "XYZ"}}
	if _, err := cmd.Encode(); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Encode() error = %v, want ErrInvalidParameter", err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    string
		wantErr error
	}{
		{"Plain", "RUN", "RUN", nil},
		{"Addressed", "05RUN\r", "05RUN", nil},
		{"LowerCase", "05run", "05RUN", nil},
		{"Rate", "01RAT 12.5 mm", "01RAT 12.50 MM", nil},
		{"Diameter", "DIA 26.59", "DIA 26.59", nil},
		{"Direction", "03dir wdr", "03DIR WDR", nil},
		{"Query", "00VOL", "00VOL", nil},
		{"UnknownMnemonic", "05XYZ", "", ErrUnknownCommand},
		{"Short", "RU", "", ErrUnknownCommand},
		{"GluedValue", "DIA10", "", ErrUnknownCommand},
		{"OneDigitAddress", "5RUN", "", ErrInvalidParameter},
		{"BadNumber", "VOL abc", "", ErrInvalidParameter},
		{"TooManyFields", "VOL 1 2", "", ErrInvalidParameter},
		{"ValueOnQueryOnly", "RUN 1", "", ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.line)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.line, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.line, err)
			}
			got, err := cmd.Encode()
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q).Encode() = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}
