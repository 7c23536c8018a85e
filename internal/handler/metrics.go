package handler

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/xenking/salesdesk/internal/handler"

type metrics struct {
	opened    metric.Int64Counter
	submitted metric.Int64Counter
	failed    metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider, reg *Registry) (*metrics, error) {
	meter := mp.Meter(meterName)

	opened, err := meter.Int64Counter("salesdesk.builders.opened",
		metric.WithDescription("Builder sessions opened"))
	if err != nil {
		return nil, errors.Wrap(err, "opened counter")
	}
	submitted, err := meter.Int64Counter("salesdesk.sales.submitted",
		metric.WithDescription("Sales accepted by the back office"))
	if err != nil {
		return nil, errors.Wrap(err, "submitted counter")
	}
	failed, err := meter.Int64Counter("salesdesk.sales.failed",
		metric.WithDescription("Submissions that were rejected or failed"))
	if err != nil {
		return nil, errors.Wrap(err, "failed counter")
	}
	if _, err := meter.Int64ObservableGauge("salesdesk.builders.open",
		metric.WithDescription("Builder sessions currently open"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(reg.Len()))
			return nil
		}),
	); err != nil {
		return nil, errors.Wrap(err, "open gauge")
	}

	return &metrics{
		opened:    opened,
		submitted: submitted,
		failed:    failed,
	}, nil
}

func (m *metrics) submitFailed(ctx context.Context, code string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}
