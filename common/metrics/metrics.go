package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// latencyBuckets covers 1ms to 10s.
var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// Metrics groups the infrastructure collectors shared by every package:
// query timings, broker publishes, dependency health and gRPC calls.
type Metrics struct {
	Runtime   *RuntimeMetrics
	Database  *DatabaseMetrics
	Messaging *MessagingMetrics
	Health    *HealthMetrics
	Grpc      *GrpcMetrics
}

// New builds all collectors on meter. Every name in dependencies gets an
// availability gauge that readiness checks keep current.
func New(ctx context.Context, meter metric.Meter, logger *slog.Logger, dependencies ...string) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.Runtime, err = NewRuntimeMetrics(ctx, meter); err != nil {
		return nil, fmt.Errorf("runtime collectors: %w", err)
	}
	if m.Database, err = NewDatabaseMetrics(meter); err != nil {
		return nil, fmt.Errorf("database collectors: %w", err)
	}
	if m.Messaging, err = NewMessagingMetrics(meter); err != nil {
		return nil, fmt.Errorf("messaging collectors: %w", err)
	}
	if m.Health, err = NewHealthMetrics(meter); err != nil {
		return nil, fmt.Errorf("health collectors: %w", err)
	}
	if m.Grpc, err = NewGrpcMetrics(meter); err != nil {
		return nil, fmt.Errorf("grpc collectors: %w", err)
	}

	if len(dependencies) > 0 {
		if err := m.Health.RegisterDependencies(meter, dependencies...); err != nil {
			return nil, fmt.Errorf("dependency gauges: %w", err)
		}
	}

	logger.Info("metrics collectors initialized", "dependencies", dependencies)
	return m, nil
}

// NewMock returns a Metrics whose Record* calls are no-ops.
func NewMock() *Metrics {
	return &Metrics{
		Database:  &DatabaseMetrics{},
		Messaging: &MessagingMetrics{},
		Health:    &HealthMetrics{dependencies: map[string]*DependencyStatus{}},
		Runtime:   &RuntimeMetrics{},
		Grpc:      &GrpcMetrics{},
	}
}
