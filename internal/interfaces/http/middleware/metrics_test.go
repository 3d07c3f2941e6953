package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetricByName(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestHTTPMetrics_DisabledOrUnconfigured(t *testing.T) {
	for _, cfg := range []HTTPMetricsConfig{{Enabled: false}, {Enabled: true}} {
		router := gin.New()
		router.Use(HTTPMetrics(cfg))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/test", "").Code)
	}
}

func TestHTTPMetricsWithMeter_RequestCounter(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server"), true))
	router.GET("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	router.GET("/boom", func(c *gin.Context) { c.JSON(http.StatusInternalServerError, gin.H{"ok": false}) })

	for _, path := range []string{"/test", "/test", "/test", "/boom"} {
		serve(router, http.MethodGet, path, "")
	}

	rm := collectMetrics(t, reader)
	total := findMetricByName(rm, "http_server_request_total")
	require.NotNil(t, total)

	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	byStatus := map[int64]int64{}
	for _, dp := range sum.DataPoints {
		status, found := dp.Attributes.Value(attribute.Key("http.response.status_code"))
		require.True(t, found)
		byStatus[status.AsInt64()] = dp.Value
	}
	assert.Equal(t, int64(3), byStatus[http.StatusOK])
	assert.Equal(t, int64(1), byStatus[http.StatusInternalServerError])

	require.NotNil(t, findMetricByName(rm, "http_server_request_duration_seconds"))
	require.NotNil(t, findMetricByName(rm, "http_server_response_size_bytes"))
}

func TestHTTPMetricsWithMeter_RouteAndSizes(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server"), true))
	router.POST("/api/v1/admin/tenants/:id/suspend", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(router, http.MethodPost, "/api/v1/admin/tenants/abc/suspend", `{"reason":"overdue"}`)

	rm := collectMetrics(t, reader)
	size := findMetricByName(rm, "http_server_request_size_bytes")
	require.NotNil(t, size)

	hist, ok := size.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	route, found := hist.DataPoints[0].Attributes.Value(attribute.Key("http.route"))
	require.True(t, found)
	assert.Equal(t, "/api/v1/admin/tenants/:id/suspend", route.AsString())
}

func TestHTTPMetricsWithMeter_ActiveRequestsSettle(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server"), true))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, http.MethodGet, "/test", "")

	active := findMetricByName(collectMetrics(t, reader), "http_server_active_requests")
	require.NotNil(t, active)
	sum, ok := active.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(0), sum.DataPoints[0].Value)
}

func TestHTTPMetricsWithMeter_TenantAttribute(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server"), true))
	router.Use(func(c *gin.Context) {
		c.Set(TenantIDKey, "5f0c8a52-8a4e-4c57-9d3e-0c9a7f1e2b11")
		c.Next()
	})
	router.GET("/api/v1/tenant", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, http.MethodGet, "/api/v1/tenant", "")

	total := findMetricByName(collectMetrics(t, reader), "http_server_request_total")
	require.NotNil(t, total)
	sum := total.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)

	tenant, found := sum.DataPoints[0].Attributes.Value(attribute.Key("tenant.id"))
	require.True(t, found)
	assert.Equal(t, "5f0c8a52-8a4e-4c57-9d3e-0c9a7f1e2b11", tenant.AsString())
}

func TestGetRoutePattern(t *testing.T) {
	var matched string
	router := gin.New()
	router.GET("/api/v1/admin/tenants/:id", func(c *gin.Context) {
		matched = getRoutePattern(c)
	})
	var unmatched string
	router.NoRoute(func(c *gin.Context) {
		unmatched = getRoutePattern(c)
	})

	serve(router, http.MethodGet, "/api/v1/admin/tenants/42", "")
	serve(router, http.MethodGet, "/nowhere", "")

	assert.Equal(t, "/api/v1/admin/tenants/:id", matched)
	assert.Equal(t, "unknown", unmatched)
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		204: "2xx",
		301: "3xx",
		404: "4xx",
		422: "4xx",
		503: "5xx",
		100: "other",
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusClass(code), "status %d", code)
	}
}
