// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveExchange(t *testing.T) {
	ok := Exchanges.WithLabelValues("VER", "ok")
	failed := Exchanges.WithLabelValues("VER", "error")
	before, beforeErr := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveExchange("VER", time.Now(), nil)
	ObserveExchange("VER", time.Now(), errors.New("boom"))
	ObserveExchange("VER", time.Now(), nil)

	require.Equal(t, before+2, testutil.ToFloat64(ok))
	require.Equal(t, beforeErr+1, testutil.ToFloat64(failed))
}
