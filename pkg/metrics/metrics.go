// Package metrics 提供 Prometheus helper，包含服务级 counter/gauge/histogram
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/volatility/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// 期权定价计数与耗时
	PricingsTotal   prometheus.Counter
	PricingDuration prometheus.Histogram

	// 曲面构建计数、耗时与未收敛单元数
	SurfacesTotal        prometheus.Counter
	SurfaceDuration      prometheus.Histogram
	SurfaceCellsTotal    prometheus.Counter
	SurfaceCellsDiverged prometheus.Counter

	// 校准计数、失败数与耗时
	CalibrationsTotal    prometheus.Counter
	CalibrationFailures  prometheus.Counter
	CalibrationDuration  prometheus.Histogram
	CalibrationClipped   prometheus.Counter
	FellerViolationsSeen prometheus.Counter
}

// New 创建并注册指标集合
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		PricingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricings_total",
			Help:      "Total number of Monte Carlo option pricings.",
		}),
		PricingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_duration_seconds",
			Help:      "Option pricing latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		SurfacesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surfaces_total",
			Help:      "Total number of implied-volatility surfaces built.",
		}),
		SurfaceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "surface_duration_seconds",
			Help:      "Surface construction latency in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SurfaceCellsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surface_cells_total",
			Help:      "Total number of surface grid cells computed.",
		}),
		SurfaceCellsDiverged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surface_cells_diverged_total",
			Help:      "Grid cells whose implied-vol inversion did not converge.",
		}),
		CalibrationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibrations_total",
			Help:      "Total number of parameter calibrations.",
		}),
		CalibrationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibration_failures_total",
			Help:      "Calibrations rejected before fitting (e.g. insufficient data).",
		}),
		CalibrationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calibration_duration_seconds",
			Help:      "Calibration latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		CalibrationClipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibration_clipped_total",
			Help:      "Calibrations whose parameters were clipped to sanity bounds.",
		}),
		FellerViolationsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feller_violations_total",
			Help:      "Calibrations whose fitted parameters violate the Feller condition.",
		}),
	}

	registry.MustRegister(
		m.PricingsTotal,
		m.PricingDuration,
		m.SurfacesTotal,
		m.SurfaceDuration,
		m.SurfaceCellsTotal,
		m.SurfaceCellsDiverged,
		m.CalibrationsTotal,
		m.CalibrationFailures,
		m.CalibrationDuration,
		m.CalibrationClipped,
		m.FellerViolationsSeen,
	)

	return m
}

// Serve 启动 /metrics HTTP 监听，阻塞直到 ctx 取消
func (m *Metrics) Serve(ctx context.Context, port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "Metrics listener started", "port", port, "path", path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
