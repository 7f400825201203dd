package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the business counters of the scholarship service.
type Metrics struct {
	accountsRegistered    metric.Int64Counter
	applicationsSubmitted metric.Int64Counter
	applicationsRejected  metric.Int64Counter
	reviewsRecorded       metric.Int64Counter
	scholarshipsClosed    metric.Int64Counter
	notifications         metric.Int64Counter
	authFailures          metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.accountsRegistered, "scholarship_service.accounts.registered", "Accounts created from a verified identity", "{account}"},
		{&m.applicationsSubmitted, "scholarship_service.applications.submitted", "Applications accepted for review", "{application}"},
		{&m.applicationsRejected, "scholarship_service.applications.refused", "Submissions refused before creation, by reason", "{application}"},
		{&m.reviewsRecorded, "scholarship_service.reviews.recorded", "Reviews appended to applications", "{review}"},
		{&m.scholarshipsClosed, "scholarship_service.scholarships.closed", "Scholarships closed after their deadline", "{scholarship}"},
		{&m.notifications, "scholarship_service.notifications", "Notification outcomes by template and result", "{notification}"},
		{&m.authFailures, "scholarship_service.auth.failures", "Requests halted by the authorization pipeline, by reason", "{request}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	return m, nil
}

// NewMock returns a Metrics whose Record* calls are no-ops.
func NewMock() *Metrics {
	return &Metrics{}
}

func add(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordAccountRegistered(ctx context.Context, method string) {
	if m != nil {
		add(ctx, m.accountsRegistered, 1, attribute.String("method", method))
	}
}

func (m *Metrics) RecordApplicationSubmitted(ctx context.Context) {
	if m != nil {
		add(ctx, m.applicationsSubmitted, 1)
	}
}

func (m *Metrics) RecordSubmissionRefused(ctx context.Context, reason string) {
	if m != nil {
		add(ctx, m.applicationsRejected, 1, attribute.String("reason", reason))
	}
}

func (m *Metrics) RecordReview(ctx context.Context, status string) {
	if m != nil {
		add(ctx, m.reviewsRecorded, 1, attribute.String("status", status))
	}
}

func (m *Metrics) RecordScholarshipsClosed(ctx context.Context, n int) {
	if m != nil && n > 0 {
		add(ctx, m.scholarshipsClosed, int64(n))
	}
}

func (m *Metrics) RecordNotification(ctx context.Context, template, result string) {
	if m != nil {
		add(ctx, m.notifications, 1, attribute.String("template", template), attribute.String("result", result))
	}
}

func (m *Metrics) RecordAuthFailure(ctx context.Context, reason string) {
	if m != nil {
		add(ctx, m.authFailures, 1, attribute.String("reason", reason))
	}
}
