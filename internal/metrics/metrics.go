// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Exchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pump_exchanges_total",
			Help: "Command exchanges with pumps, by mnemonic and result",
		},
		[]string{"mnemonic", "result"},
	)

	ExchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pump_exchange_duration_seconds",
			Help:    "Time from command write to response read",
			Buckets: []float64{.05, .1, .25, .5, .75, 1, 2, 5},
		},
		[]string{"mnemonic"},
	)

	OpenLines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pump_open_lines",
		Help: "Pump lines currently open",
	})
)

func init() {
	prometheus.MustRegister(Exchanges, ExchangeDuration, OpenLines)
}

// ObserveExchange records one exchange.
func ObserveExchange(mnemonic string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Exchanges.WithLabelValues(mnemonic, result).Inc()
	ExchangeDuration.WithLabelValues(mnemonic).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on address until ctx is done.
func Serve(ctx context.Context, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: address, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	slog.Info("Metrics server listening", "addr", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
