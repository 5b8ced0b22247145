// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry records which port names are held by an open session.
// Claim and Release are atomic per port name.
type Registry struct {
	live *xsync.MapOf[string, bool]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		live: xsync.NewMapOf[string, bool](),
	}
}

// Claim marks name as live. It fails with ErrPortUnavailable when another
// session already holds it.
func (r *Registry) Claim(name string) error {
	claimed := false
	r.live.Compute(name, func(live bool, loaded bool) (bool, bool) {
		if loaded && live {
			return live, false
		}
		claimed = true
		return true, false
	})
	if !claimed {
		return fmt.Errorf("%w: %s is in use", ErrPortUnavailable, name)
	}
	return nil
}

// Release drops the claim on name. Releasing an unclaimed name is a no-op.
func (r *Registry) Release(name string) {
	r.live.Delete(name)
}

// Live reports whether name is currently claimed.
func (r *Registry) Live(name string) bool {
	live, ok := r.live.Load(name)
	return ok && live
}

// Len returns the number of claimed ports.
func (r *Registry) Len() int {
	return r.live.Size()
}
