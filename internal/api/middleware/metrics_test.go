package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInstrumentedEcho wires the metrics middleware together with an error
// handler the way the gateway does: handler errors are mapped to a status
// by statusFor and written only after the middleware chain has unwound.
func newInstrumentedEcho(statusFor func(error) int) *echo.Echo {
	ec := echo.New()
	ec.HideBanner = true
	ec.Use(Metrics(statusFor))
	ec.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		c.JSON(statusFor(err), map[string]string{"detail": err.Error()})
	}

	return ec
}

func requestCount(method string, path string, status string) float64 {
	return testutil.ToFloat64(httpRequestsTotal.WithLabelValues(method, path, status))
}

func TestMetrics_ErrorResponsesCountUnderTheirStatus(t *testing.T) {
	ec := newInstrumentedEcho(func(error) int { return http.StatusNotFound })
	ec.GET("/missing/file", func(c echo.Context) error {
		return errors.New("no such file")
	})

	before404 := requestCount(http.MethodGet, "/missing/file", "404")
	before200 := requestCount(http.MethodGet, "/missing/file", "200")

	rec := httptest.NewRecorder()
	ec.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing/file", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, before404+1, requestCount(http.MethodGet, "/missing/file", "404"))
	assert.Equal(t, before200, requestCount(http.MethodGet, "/missing/file", "200"))
}

func TestMetrics_HTTPErrorsCountUnderTheirCode(t *testing.T) {
	statusFor := func(err error) int {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr.Code
		}

		return http.StatusInternalServerError
	}

	ec := newInstrumentedEcho(statusFor)
	ec.POST("/reject", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	})

	before := requestCount(http.MethodPost, "/reject", "400")

	rec := httptest.NewRecorder()
	ec.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reject", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, before+1, requestCount(http.MethodPost, "/reject", "400"))
}

func TestMetrics_SuccessResponsesCountAsWritten(t *testing.T) {
	ec := newInstrumentedEcho(func(error) int { return http.StatusInternalServerError })
	ec.GET("/ok", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	before := requestCount(http.MethodGet, "/ok", "200")

	rec := httptest.NewRecorder()
	ec.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, before+1, requestCount(http.MethodGet, "/ok", "200"))
}
