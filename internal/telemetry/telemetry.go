// Package telemetry provides OpenTelemetry metrics for the coordinator.
//
// Telemetry is disabled by default (zero overhead when off).
//
// # Configuration
//
//	GV_OTEL_ENABLED=true   enable metrics, exported to stdout
package telemetry

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	initOnce sync.Once
	provider *sdkmetric.MeterProvider
)

// Enabled reports whether telemetry was switched on via environment.
func Enabled() bool {
	v := strings.ToLower(os.Getenv("GV_OTEL_ENABLED"))
	return v == "1" || v == "true" || v == "yes"
}

// Init installs the global meter provider. Safe to call more than once;
// only the first call takes effect. No-op when telemetry is disabled.
func Init(ctx context.Context) error {
	if !Enabled() {
		return nil
	}
	var initErr error
	initOnce.Do(func() {
		exp, err := stdoutmetric.New()
		if err != nil {
			initErr = err
			return
		}
		res, err := resource.New(ctx,
			resource.WithAttributes(semconv.ServiceName("gvd")),
		)
		if err != nil {
			initErr = err
			return
		}
		provider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp,
				sdkmetric.WithInterval(30*time.Second))),
		)
		otel.SetMeterProvider(provider)
	})
	return initErr
}

// Shutdown flushes and stops the meter provider.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

// Meter returns a named meter, or a noop meter when telemetry is off.
func Meter(scope string) metric.Meter {
	if !Enabled() {
		return noop.NewMeterProvider().Meter(scope)
	}
	return otel.Meter(scope)
}
