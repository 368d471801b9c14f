package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"FinScan/internal/domain/models"
	xhttp "FinScan/pkg/http"
	xlogger "FinScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Scanner is the scan side of the API.
type Scanner interface {
	Scan(ctx context.Context) (*models.ScanResult, error)
	Board(limit int) *models.BoardView
	Reset()
	Status() *models.Status
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Universe is the universe side of the API.
type Universe interface {
	Build(ctx context.Context) (*models.BuildResult, error)
	Refresh(ctx context.Context) (*models.BuildResult, error)
	Universe() *models.UniverseView
}

// ScannerEchoHandler serves the scanner routes.
type ScannerEchoHandler struct {
	logger   *xlogger.Logger
	scanner  Scanner
	universe Universe
	hub      *BoardHub
	now      func() time.Time
}

func NewScannerEchoHandler(logger *xlogger.Logger, scanner Scanner, universe Universe, hub *BoardHub) *ScannerEchoHandler {
	return &ScannerEchoHandler{logger: logger, scanner: scanner, universe: universe, hub: hub, now: time.Now}
}

func (h *ScannerEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Status)
	e.GET("/health", h.Health)
	e.GET("/quote", h.Quote)
	e.GET("/build-universe", h.BuildUniverse)
	e.GET("/refresh-universe", h.RefreshUniverse)
	e.GET("/universe", h.Universe)
	e.GET("/scan", h.Scan)
	e.POST("/scan", h.Scan)
	e.GET("/board", h.Board)
	e.POST("/reset", h.Reset)
	if h.hub != nil {
		e.GET("/ws/board", h.hub.Serve)
	}
}

// Status godoc
// @Summary  Service overview
// @Success  200 {object} xhttp.APIResponse{data=models.Status}
// @Router   / [get]
func (h *ScannerEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.scanner.Status())
}

func (h *ScannerEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{"ok": true, "ts": h.now().Unix()})
}

// Quote godoc
// @Summary  Latest quote passthrough
// @Param    symbol query string false "ticker" default(TSLA)
// @Success  200 {object} xhttp.APIResponse{data=models.Quote}
// @Failure  400 {object} xhttp.APIResponse400Err
// @Failure  502 {object} xhttp.APIResponse
// @Router   /quote [get]
func (h *ScannerEchoHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, err := h.scanner.Quote(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "quote", err)
	}
	return xhttp.SuccessResponse(c, q)
}

func (h *ScannerEchoHandler) BuildUniverse(c echo.Context) error {
	res, err := h.universe.Build(c.Request().Context())
	if err != nil {
		return h.fail(c, "build universe", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScannerEchoHandler) RefreshUniverse(c echo.Context) error {
	res, err := h.universe.Refresh(c.Request().Context())
	if err != nil {
		return h.fail(c, "refresh universe", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScannerEchoHandler) Universe(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.universe.Universe())
}

// Scan godoc
// @Summary  Run the gates over the universe and replace the board
// @Success  200 {object} xhttp.APIResponse{data=models.ScanResult}
// @Failure  409 {object} xhttp.APIResponse409Err
// @Failure  502 {object} xhttp.APIResponse
// @Router   /scan [post]
func (h *ScannerEchoHandler) Scan(c echo.Context) error {
	res, err := h.scanner.Scan(c.Request().Context())
	if err != nil {
		return h.fail(c, "scan", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Board godoc
// @Summary  Latest near-trigger board
// @Param    limit query int false "max rows, 0 for all"
// @Success  200 {object} xhttp.APIResponse{data=models.BoardView}
// @Failure  400 {object} xhttp.APIResponse400Err
// @Router   /board [get]
func (h *ScannerEchoHandler) Board(c echo.Context) error {
	req := &models.BoardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, h.scanner.Board(req.Limit))
}

func (h *ScannerEchoHandler) Reset(c echo.Context) error {
	h.scanner.Reset()
	return xhttp.SuccessResponse(c, map[string]string{"message": "state reset"})
}

// fail maps domain errors onto AppError statuses.
func (h *ScannerEchoHandler) fail(c echo.Context, op string, err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, models.ErrScanInProgress):
		appErr = xhttp.ConflictError("scan already in progress")
	case errors.Is(err, models.ErrNotFound):
		appErr = xhttp.NotFoundError("symbol not found")
	case errors.Is(err, models.ErrRateLimited):
		appErr = xhttp.BadGatewayError("market data provider rate limited")
	case errors.Is(err, models.ErrProviderUnavailable), errors.Is(err, models.ErrNoCandidates):
		appErr = xhttp.BadGatewayError(op + " failed upstream")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		appErr = xhttp.ServiceUnavailableError(op + " cancelled")
	default:
		appErr = xhttp.BadGatewayError(op + " failed")
	}

	if appErr.Status == http.StatusConflict {
		h.logger.Info(op+" rejected", xlogger.Error(err))
	} else {
		h.logger.Error(op+" failed", xlogger.Error(err), xlogger.Int("status", appErr.Status))
	}
	return xhttp.AppErrorResponse(c, appErr.WithError(err))
}
