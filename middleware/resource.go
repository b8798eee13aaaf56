package middleware

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/garciabuilder/site-service/config"
)

// unknownService is the default service name when detection fails
const unknownService = "unknown-service"

// serviceIdentity resolves the service name and namespace reported to
// tracing and profiling backends. OTEL_SERVICE_NAME and
// OTEL_RESOURCE_ATTRIBUTES win over config so a collector-side convention
// can be applied without a redeploy.
func serviceIdentity(cfg *config.Config) (serviceName, namespace string) {
	serviceName = os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" && cfg != nil {
		serviceName = cfg.Service.Name
	}
	if serviceName == "" {
		serviceName = unknownService
	}

	for _, attr := range strings.Split(os.Getenv("OTEL_RESOURCE_ATTRIBUTES"), ",") {
		if k, v, ok := strings.Cut(attr, "="); ok && strings.TrimSpace(k) == "service.namespace" {
			return serviceName, strings.TrimSpace(v)
		}
	}
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return serviceName, ns
	}
	if cfg != nil && cfg.Service.Env != "" {
		return serviceName, cfg.Service.Env
	}
	return serviceName, "default"
}

// CreateResource creates an OpenTelemetry resource describing this service.
// On partial detection failure it returns a minimal resource and the error.
func CreateResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	serviceName, namespace := serviceIdentity(cfg)
	attrs := []resource.Option{
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceNamespaceKey.String(namespace),
		),
	}
	if cfg != nil {
		attrs = append(attrs, resource.WithAttributes(
			semconv.ServiceVersionKey.String(cfg.Service.Version),
			semconv.DeploymentEnvironmentKey.String(cfg.Service.Env),
		))
	}

	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceNamespaceKey.String(namespace),
		), fmt.Errorf("resource detection partial failure (using fallback): %w", err)
	}
	return res, nil
}

// GetServiceName extracts service name from a resource
func GetServiceName(res *resource.Resource) string {
	for _, attr := range res.Attributes() {
		if attr.Key == semconv.ServiceNameKey {
			return attr.Value.AsString()
		}
	}
	return unknownService
}
