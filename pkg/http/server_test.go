package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupRequest struct {
	Symbol string `query:"symbol" default:"TSLA" validate:"required,max=5"`
	Limit  int    `query:"limit" validate:"gte=0,lte=10"`
}

type lookupHandler struct{}

func (lookupHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/lookup", func(c echo.Context) error {
		var req lookupRequest
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		return SuccessResponse(c, req)
	})
	e.GET("/conflict", func(c echo.Context) error {
		return AppErrorResponse(c, ConflictError("busy").WithError(errors.New("locked")))
	})
	e.GET("/panic", func(c echo.Context) error {
		panic("kaboom")
	})
}

func serve(t *testing.T, s *Server, target string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestServerAppliesDefaultsAndValidation(t *testing.T) {
	s := NewServer(lookupHandler{}, nil)

	rec, body := serve(t, s, "/lookup")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, body.Status)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, "TSLA", data["Symbol"])

	rec, body = serve(t, s, "/lookup?symbol=TOOLONG&limit=3")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := body.Data.([]interface{})
	require.Len(t, errs, 1)
	first := errs[0].(map[string]interface{})
	assert.Equal(t, "ERR_MAX", first["code"])
	assert.Equal(t, "symbol", first["field"])
	assert.Equal(t, "symbol must be at most 5 characters", first["message"])
}

func TestServerAppErrorUsesItsStatus(t *testing.T) {
	s := NewServer(lookupHandler{}, nil)

	rec, body := serve(t, s, "/conflict")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Conflict", body.Message)
	errs := body.Data.([]interface{})
	assert.Equal(t, "ERR_CONFLICT", errs[0].(map[string]interface{})["code"])
}

func TestServerRecoversPanics(t *testing.T) {
	s := NewServer(lookupHandler{}, nil)

	rec, _ := serve(t, s, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServerCORSPreflight(t *testing.T) {
	s := NewServer(lookupHandler{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/lookup", nil)
	req.Header.Set("Origin", "http://dash.local")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://dash.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestServerWithoutCORS(t *testing.T) {
	s := NewServer(lookupHandler{}, nil, WithCORS(false))

	req := httptest.NewRequest(http.MethodGet, "/lookup", nil)
	req.Header.Set("Origin", "http://dash.local")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAppErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("rate limited")
	err := error(BadGatewayError("quote provider failed").WithError(cause))

	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "quote provider failed: rate limited")
}

func TestServerExposesMetrics(t *testing.T) {
	s := NewServer(lookupHandler{}, nil)
	serve(t, s, "/lookup")

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/lookup",status="200"}`)
}
