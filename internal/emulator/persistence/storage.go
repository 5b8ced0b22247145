// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"os"

	"github.com/ffutop/syringe-pump/internal/emulator/model"
)

// Storage defines the interface for persisting the emulated pump bank.
type Storage interface {
	// Load loads the bank from storage.
	// If no data exists, it returns a zeroed bank.
	Load() (*model.Bank, error)

	// Save saves the current bank to storage.
	Save(bank *model.Bank) error

	// OnWrite is a hook called whenever the state of a pump address is modified.
	// It allows the storage to perform real-time persistence (e.g. sync to disk).
	OnWrite(address int)

	Close() error
}

// openBankFile opens path read-write, creating it and sizing it to hold a
// whole bank.
func openBankFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open bank file %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat bank file %s: %w", path, err)
	}
	if fi.Size() != int64(model.TotalSize) {
		if err := f.Truncate(int64(model.TotalSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("resize bank file %s: %w", path, err)
		}
	}
	return f, nil
}

// slotRange returns the byte range of the pump at address within a bank.
func slotRange(address int) (off, end int, ok bool) {
	if address < 0 || address >= model.Slots {
		return 0, 0, false
	}
	return address * model.SlotSize, (address + 1) * model.SlotSize, true
}
