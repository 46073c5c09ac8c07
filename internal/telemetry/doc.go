// Package telemetry provides OpenTelemetry initialization for the cart
// service.
//
// The exporter is chosen from EXPORT_TYPE (Jaeger by default, OTLP over gRPC
// or HTTP, New Relic, or stdout), the process is described by a service name
// and a per-start instance id, and the resulting tracer provider is
// registered once. Backends that expose a Redis client get command tracing.
package telemetry
