package telemetry

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/boutique/cartservice/internal/config"
	apperrors "github.com/boutique/cartservice/internal/errors"
)

// ExporterKind is the closed set of span exporters the service can run with.
type ExporterKind string

const (
	KindJaeger   ExporterKind = "jaeger"
	KindOTLP     ExporterKind = "otlp"
	KindNewRelic ExporterKind = "newrelic"
	KindStdout   ExporterKind = "stdout"

	DefaultKind = KindJaeger
)

const (
	DefaultJaegerEndpoint  = "http://localhost:14268/api/traces"
	DefaultJaegerAgentPort = "6831"
	DefaultNewRelicOTLP    = "https://otlp.nr-data.net:4317"
)

// OTLPProtocol selects the OTLP transport.
type OTLPProtocol string

const (
	ProtocolGRPC         OTLPProtocol = "grpc"
	ProtocolHTTPProtobuf OTLPProtocol = "http/protobuf"
)

// ParseExporterKind maps an EXPORT_TYPE value to a kind. Matching is case
// sensitive and anything unrecognized, including "", resolves to Jaeger.
func ParseExporterKind(raw string) ExporterKind {
	switch ExporterKind(raw) {
	case KindOTLP:
		return KindOTLP
	case KindNewRelic:
		return KindNewRelic
	case KindStdout:
		return KindStdout
	case KindJaeger:
		return KindJaeger
	default:
		return DefaultKind
	}
}

func (k ExporterKind) String() string {
	return string(k)
}

// JaegerConfig targets either a Jaeger agent (AgentHost set) or a collector.
type JaegerConfig struct {
	AgentHost string
	AgentPort string
	Endpoint  string
	Username  string
	Password  string
}

// OTLPConfig is shared by the otlp and newrelic kinds.
type OTLPConfig struct {
	Endpoint string
	Protocol OTLPProtocol
	Headers  map[string]string
}

type StdoutConfig struct {
	PrettyPrint bool
}

// ExporterConfig carries exactly one non-nil variant, the one Kind uses.
type ExporterConfig struct {
	Kind   ExporterKind
	Jaeger *JaegerConfig
	OTLP   *OTLPConfig
	Stdout *StdoutConfig
}

// SelectExporter derives the exporter configuration from the environment.
// It has no side effects and performs no validation; endpoints are checked
// by NewSpanExporter.
func SelectExporter(src config.Source) ExporterConfig {
	kind := ParseExporterKind(src.Get(config.KeyExportType))

	switch kind {
	case KindOTLP:
		return ExporterConfig{
			Kind: KindOTLP,
			OTLP: &OTLPConfig{
				Endpoint: src.FirstNonEmpty(config.KeyOTLPSpanEndpoint, config.KeyOTLPEndpoint),
				Protocol: parseProtocol(src.Get(config.KeyOTLPProtocol)),
				Headers:  parseHeaders(src.Get(config.KeyOTLPHeaders)),
			},
		}
	case KindNewRelic:
		endpoint := src.FirstNonEmpty(config.KeyOTLPSpanEndpoint, config.KeyOTLPEndpoint)
		if endpoint == "" {
			endpoint = DefaultNewRelicOTLP
		}
		headers := parseHeaders(src.Get(config.KeyOTLPHeaders))
		if key := src.Get(config.KeyNewRelicAPIKey); key != "" {
			if headers == nil {
				headers = make(map[string]string, 1)
			}
			headers["api-key"] = key
		}
		return ExporterConfig{
			Kind: KindNewRelic,
			OTLP: &OTLPConfig{
				Endpoint: endpoint,
				Protocol: parseProtocol(src.Get(config.KeyOTLPProtocol)),
				Headers:  headers,
			},
		}
	case KindStdout:
		return ExporterConfig{
			Kind:   KindStdout,
			Stdout: &StdoutConfig{PrettyPrint: true},
		}
	default:
		return ExporterConfig{
			Kind:   KindJaeger,
			Jaeger: selectJaeger(src),
		}
	}
}

func selectJaeger(src config.Source) *JaegerConfig {
	cfg := &JaegerConfig{}
	if host := src.Get(config.KeyJaegerAgentHost); host != "" {
		cfg.AgentHost = host
		cfg.AgentPort = src.Get(config.KeyJaegerAgentPort)
		if cfg.AgentPort == "" {
			cfg.AgentPort = DefaultJaegerAgentPort
		}
		return cfg
	}
	cfg.Endpoint = src.Get(config.KeyJaegerEndpoint)
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultJaegerEndpoint
	}
	cfg.Username = src.Get(config.KeyJaegerUser)
	cfg.Password = src.Get(config.KeyJaegerPassword)
	return cfg
}

func parseProtocol(raw string) OTLPProtocol {
	switch raw {
	case "http/protobuf", "http":
		return ProtocolHTTPProtobuf
	default:
		return ProtocolGRPC
	}
}

// parseHeaders reads the OTEL_EXPORTER_OTLP_HEADERS format: comma separated
// key=value pairs with URL-encoded values.
func parseHeaders(raw string) map[string]string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		if unescaped, err := url.QueryUnescape(strings.TrimSpace(v)); err == nil {
			v = unescaped
		}
		headers[k] = strings.TrimSpace(v)
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// NewSpanExporter builds the exporter described by cfg. Malformed endpoints
// fail here rather than on the first export.
func NewSpanExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, apperrors.NewExporterConstructionError(cfg.Kind.String(), err)
	}
	return exp, nil
}

func newSpanExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Kind {
	case KindOTLP, KindNewRelic:
		if cfg.OTLP == nil {
			return nil, fmt.Errorf("%s exporter requires OTLP settings", cfg.Kind)
		}
		return newOTLPExporter(ctx, cfg.OTLP)
	case KindStdout:
		opts := []stdouttrace.Option{stdouttrace.WithWriter(os.Stdout)}
		if cfg.Stdout != nil && cfg.Stdout.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		return stdouttrace.New(opts...)
	case KindJaeger:
		if cfg.Jaeger == nil {
			return nil, fmt.Errorf("jaeger exporter requires Jaeger settings")
		}
		return newJaegerExporter(cfg.Jaeger)
	default:
		return nil, fmt.Errorf("unknown exporter kind %q", cfg.Kind)
	}
}

func newOTLPExporter(ctx context.Context, cfg *OTLPConfig) (sdktrace.SpanExporter, error) {
	endpoint, isURL, err := checkEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	if cfg.Protocol == ProtocolHTTPProtobuf {
		var opts []otlptracehttp.Option
		switch {
		case endpoint == "":
		case isURL:
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		default:
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	var opts []otlptracegrpc.Option
	switch {
	case endpoint == "":
	case isURL:
		opts = append(opts, otlptracegrpc.WithEndpointURL(endpoint))
	default:
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func newJaegerExporter(cfg *JaegerConfig) (sdktrace.SpanExporter, error) {
	if cfg.AgentHost != "" {
		if _, err := strconv.ParseUint(cfg.AgentPort, 10, 16); err != nil {
			return nil, fmt.Errorf("invalid jaeger agent port %q", cfg.AgentPort)
		}
		return jaeger.New(jaeger.WithAgentEndpoint(
			jaeger.WithAgentHost(cfg.AgentHost),
			jaeger.WithAgentPort(cfg.AgentPort),
		))
	}

	if _, isURL, err := checkEndpoint(cfg.Endpoint); err != nil {
		return nil, err
	} else if !isURL {
		return nil, fmt.Errorf("jaeger collector endpoint %q must be an http(s) URL", cfg.Endpoint)
	}

	opts := []jaeger.CollectorEndpointOption{jaeger.WithEndpoint(cfg.Endpoint)}
	if cfg.Username != "" {
		opts = append(opts, jaeger.WithUsername(cfg.Username))
	}
	if cfg.Password != "" {
		opts = append(opts, jaeger.WithPassword(cfg.Password))
	}
	return jaeger.New(jaeger.WithCollectorEndpoint(opts...))
}

// checkEndpoint accepts "" (library default), host:port, or an http(s) URL
// with a host.
func checkEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, nil
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", false, fmt.Errorf("malformed endpoint %q: %w", endpoint, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", false, fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("endpoint %q has no host", endpoint)
		}
		return endpoint, true, nil
	}
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("malformed endpoint %q: %w", endpoint, err)
	}
	if host == "" {
		return "", false, fmt.Errorf("endpoint %q has no host", endpoint)
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return "", false, fmt.Errorf("endpoint %q has invalid port", endpoint)
	}
	return endpoint, false, nil
}
