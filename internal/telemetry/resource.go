package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// noSuffixKind is exported under the bare service name; that backend keys
// entities on the name and expects it unsuffixed.
const noSuffixKind = KindNewRelic

// Descriptor identifies this process in every span it emits.
type Descriptor struct {
	ServiceName   string
	RunInstanceID string
}

// BuildDescriptor names the service after base and the exporter kind, and
// mints a fresh instance id. Two calls never share an instance id.
func BuildDescriptor(base string, kind ExporterKind) Descriptor {
	name := base
	if kind != noSuffixKind {
		name = base + "-" + kind.String()
	}
	return Descriptor{
		ServiceName:   name,
		RunInstanceID: kind.String() + "-" + uuid.New().String(),
	}
}

// Resource converts the descriptor into OTel resource attributes.
func (d Descriptor) Resource(ctx context.Context) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(d.ServiceName),
			semconv.ServiceInstanceIDKey.String(d.RunInstanceID),
		),
	)
}
