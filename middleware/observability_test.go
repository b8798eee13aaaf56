package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/garciabuilder/site-service/config"
)

func TestShouldTrace(t *testing.T) {
	assert.False(t, shouldTrace("/health"))
	assert.False(t, shouldTrace("/ready"))
	assert.False(t, shouldTrace("/metrics"))
	assert.True(t, shouldTrace("/api/v1/users/profile"))
	assert.True(t, shouldTrace("/api/contact"))
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestInitTracing_Disabled(t *testing.T) {
	err := InitTracing(context.Background(), &config.Config{})
	assert.True(t, errors.Is(err, ErrTracingDisabled))

	cfg := &config.Config{Tracing: config.TracingConfig{Enabled: true}}
	assert.ErrorContains(t, InitTracing(context.Background(), cfg), "OTEL_COLLECTOR_ENDPOINT")

	// nothing was installed, so shutdown is a no-op
	assert.NoError(t, Shutdown(context.Background()))
}

func TestRecordError_NonRecordingSpan(t *testing.T) {
	_, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "op")
	assert.NotPanics(t, func() {
		RecordError(span, errors.New("boom"))
		RecordError(span, nil)
	})
}

func TestServiceIdentity(t *testing.T) {
	cfg := &config.Config{Service: config.ServiceConfig{Name: "site-service", Env: "staging"}}

	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "")
	t.Setenv("POD_NAMESPACE", "")
	name, ns := serviceIdentity(cfg)
	assert.Equal(t, "site-service", name)
	assert.Equal(t, "staging", ns)

	t.Setenv("OTEL_SERVICE_NAME", "coaching-site")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "team=web, service.namespace=prod")
	name, ns = serviceIdentity(cfg)
	assert.Equal(t, "coaching-site", name)
	assert.Equal(t, "prod", ns)

	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "")
	name, ns = serviceIdentity(nil)
	assert.Equal(t, unknownService, name)
	assert.Equal(t, "default", ns)
}

func TestCreateResource(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "")
	cfg := &config.Config{Service: config.ServiceConfig{Name: "site-service", Version: "1.2.3"}}

	res, _ := CreateResource(context.Background(), cfg)
	require.NotNil(t, res)
	assert.Equal(t, "site-service", GetServiceName(res))
}

func TestMetricsLabels(t *testing.T) {
	assert.False(t, shouldCollectMetrics("/metrics"))
	assert.False(t, shouldCollectMetrics("/health"))
	assert.True(t, shouldCollectMetrics("/api/v1/pricing"))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware())

	var seen string
	r.GET("/api/v1/users/profile/:section", func(c *gin.Context) {
		seen = routeLabel(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/profile/habits", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "/api/v1/users/profile/:section", seen)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, "unmatched", routeLabel(c))
}
