package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/observability"
	apperrors "github.com/spec-kit/ticket-assistant/pkg/util/errorutil"
)

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestApp(metrics *observability.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterMiddlewares(app, zap.NewNop(), metrics, 20*time.Millisecond)
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	})
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("boom")
	})
	app.Get("/slow", func(c *fiber.Ctx) error {
		<-c.UserContext().Done()
		return c.UserContext().Err()
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func call(t *testing.T, app *fiber.App, path string) (int, errorEnvelope) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body errorEnvelope
	if resp.StatusCode >= 400 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func TestErrorEnvelope(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newTestApp(metrics)

	status, body := call(t, app, "/invalid")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Equal(t, "title is required", body.Error.Message)
	assert.Equal(t, "title", body.Error.Details["field"])

	var recorded int64
	for key, n := range metrics.Snapshot().Errors {
		if strings.HasSuffix(key, "|GET|VALIDATION_FAILED") {
			recorded += n
		}
	}
	assert.Equal(t, int64(1), recorded)
}

func TestPanicBecomesInternalError(t *testing.T) {
	status, body := call(t, newTestApp(observability.NewMetrics()), "/panic")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Empty(t, body.Error.Details)
}

func TestUnknownRoute(t *testing.T) {
	status, body := call(t, newTestApp(observability.NewMetrics()), "/nowhere")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestRequestTimeout(t *testing.T) {
	status, body := call(t, newTestApp(observability.NewMetrics()), "/slow")
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, "TIMEOUT", body.Error.Code)
}

func TestSuccessPassesThrough(t *testing.T) {
	status, _ := call(t, newTestApp(observability.NewMetrics()), "/ok")
	assert.Equal(t, http.StatusOK, status)
}

func TestFiberCode(t *testing.T) {
	assert.Equal(t, "METHOD_NOT_ALLOWED", fiberCode(http.StatusMethodNotAllowed))
	assert.Equal(t, "INTERNAL_ERROR", fiberCode(http.StatusBadGateway))
	assert.Equal(t, "TOO_MANY_REQUESTS", fiberCode(http.StatusTooManyRequests))
}
