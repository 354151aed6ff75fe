// Package observability provides an [ext.Extension] that records
// engine-wide task lifecycle counters through OpenTelemetry metrics.
//
// Per-attempt spans and durations live in the middleware package.
package observability
