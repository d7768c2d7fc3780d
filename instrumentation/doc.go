// Package instrumentation provides OpenTelemetry metrics and tracing for the
// token lifecycle library. When disabled it falls back to no-op providers with
// zero overhead, so callers can wire it unconditionally.
package instrumentation
