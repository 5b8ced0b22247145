// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/ffutop/syringe-pump/internal/emulator/model"
)

// MmapStorage backs the bank directly with a memory-mapped file, using the
// FileStorage layout. A pump update flushes only the pages of its slot.
type MmapStorage struct {
	path     string
	file     *os.File
	data     mmap.MMap
	pageSize int
}

// NewMmapStorage creates a new MmapStorage.
func NewMmapStorage(path string) *MmapStorage {
	return &MmapStorage{
		path:     path,
		pageSize: os.Getpagesize(),
	}
}

// Load maps the bank file into memory.
func (ms *MmapStorage) Load() (*model.Bank, error) {
	f, err := openBankFile(ms.path)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map bank file %s: %w", ms.path, err)
	}
	ms.file = f
	ms.data = data
	return model.BankFrom(data)
}

// Save flushes the whole mapping.
func (ms *MmapStorage) Save(bank *model.Bank) error {
	if ms.data == nil {
		return fmt.Errorf("bank file %s is not mapped", ms.path)
	}
	return ms.data.Flush()
}

// OnWrite flushes the pages holding the slot of address.
func (ms *MmapStorage) OnWrite(address int) {
	if ms.data == nil {
		return
	}
	off, end, ok := slotRange(address)
	if !ok {
		return
	}
	if err := ms.flushRange(off, end); err != nil {
		slog.Error("Failed to flush pump state", "address", address, "err", err)
	}
}

// flushRange flushes the page-aligned span covering [off, end). Platforms
// that only flush whole mappings fall back to a full flush.
func (ms *MmapStorage) flushRange(off, end int) error {
	start := off / ms.pageSize * ms.pageSize
	stop := (end + ms.pageSize - 1) / ms.pageSize * ms.pageSize
	if stop > len(ms.data) {
		stop = len(ms.data)
	}
	if start == 0 && stop == len(ms.data) {
		return ms.data.Flush()
	}
	if err := ms.data[start:stop].Flush(); err != nil {
		return ms.data.Flush()
	}
	return nil
}

// Close unmaps and closes the file.
func (ms *MmapStorage) Close() error {
	var err error
	if ms.data != nil {
		err = ms.data.Unmap()
		ms.data = nil
	}
	if ms.file != nil {
		if e := ms.file.Close(); e != nil && err == nil {
			err = e
		}
		ms.file = nil
	}
	return err
}
