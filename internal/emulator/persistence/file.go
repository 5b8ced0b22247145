// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ffutop/syringe-pump/internal/emulator/model"
)

// FileStorage keeps the bank in memory and writes each changed pump slot
// through to a file.
//
// Layout: model.Slots consecutive slots of model.SlotSize bytes,
// slot N holding the pump at address N. Total size is model.TotalSize.
type FileStorage struct {
	path string
	file *os.File
	data []byte
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

// Load reads the bank from the file. A new file yields a zeroed bank.
func (fs *FileStorage) Load() (*model.Bank, error) {
	f, err := openBankFile(fs.path)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read bank file %s: %w", fs.path, err)
	}
	fs.file = f
	fs.data = data
	return model.BankFrom(data)
}

// Save writes every slot to disk.
func (fs *FileStorage) Save(bank *model.Bank) error {
	return fs.writeThrough(0, model.TotalSize)
}

// OnWrite writes the slot of address to disk.
func (fs *FileStorage) OnWrite(address int) {
	off, end, ok := slotRange(address)
	if !ok {
		return
	}
	if err := fs.writeThrough(off, end); err != nil {
		slog.Error("Failed to persist pump state", "address", address, "err", err)
	}
}

func (fs *FileStorage) writeThrough(off, end int) error {
	if fs.data == nil || fs.file == nil {
		return nil
	}
	if _, err := fs.file.WriteAt(fs.data[off:end], int64(off)); err != nil {
		return fmt.Errorf("write bank file %s: %w", fs.path, err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("sync bank file %s: %w", fs.path, err)
	}
	return nil
}

// Close closes the file.
func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}
