// Package otel publishes session manager metrics through an OpenTelemetry meter.
//
// Counters become Int64ObservableCounter instruments; the latency histogram is
// exposed as one cumulative gauge per bucket plus a count gauge. The caller owns the
// MeterProvider.
package otel
