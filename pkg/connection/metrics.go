package connection

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/solarview/telemetry-core-go/log"
)

func (m *Manager) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("stc.connection")
	type data struct {
		name  string
		desc  string
		value func() int64
	}
	for _, d := range []*data{
		{"stc.connection.frames", "Number of processed frames",
			func() int64 { return m.numFrames.Load() }},
		{"stc.connection.decode_errors", "Number of dropped malformed frames",
			func() int64 { return m.numDecodeErrors.Load() }},
		{"stc.connection.reconnects", "Number of successful reconnects",
			func() int64 { return m.numReconnects.Load() }},
		{"stc.connection.buffer_len", "Number of packets in the history buffer",
			func() int64 { return int64(m.Buffer().Len()) }},
		{"stc.connection.buffer_evicted", "Number of packets evicted from the buffer",
			func() int64 { return int64(m.Buffer().Stats().Evicted) }},
	} {
		provider := d.value
		if _, err := meter.Int64ObservableGauge(
			d.name,
			metric.WithDescription(d.desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(
				func(_ context.Context, o metric.Int64Observer) error {
					o.Observe(provider(),
						metric.WithAttributes(attribute.String("vehicle", m.vehicleID)))
					return nil
				})); err != nil {
			log.Error("failed to register metric",
				log.String("metric", d.name), log.ErrorField(err))
		}
	}
}
