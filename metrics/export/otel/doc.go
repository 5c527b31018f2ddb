// Package otel publishes memberAuth engine metrics through an OpenTelemetry
// Meter.
//
// [New] registers one observable counter per family (login outcomes, cookie
// checks, cookie rejections, account and session events), each series
// distinguished by an attribute, plus the validate latency buckets, count
// and sum. A single callback reads the engine snapshot per collection.
//
// The caller owns the MeterProvider and its readers.
package otel
