// Package prometheus exposes session manager metrics as a prometheus.Collector.
//
// Counters are named gosession_*_total; the request latency histogram is
// gosession_request_latency_seconds. Register the Exporter with your own registry or
// mount Handler, which uses a private one.
package prometheus
