package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dkotelnikov/authd/internal/models"
	"github.com/dkotelnikov/authd/internal/service"
)

type Controller struct {
	zapLogger   *zap.SugaredLogger
	authService *service.AuthService
}

func NewController(logger *zap.SugaredLogger, authService *service.AuthService) *Controller {
	return &Controller{
		zapLogger:   logger,
		authService: authService,
	}
}

// (POST /api/auth/access-token).
func (c *Controller) LoginAccessToken(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pair, err := c.authService.Login(ctx.Request().Context(), string(req.Email), req.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, models.NewTokenPairResponse(pair))
}

// (POST /api/auth/refresh-token).
func (c *Controller) RefreshToken(ctx echo.Context) error {
	var req models.RefreshRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pair, err := c.authService.Refresh(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, models.NewTokenPairResponse(pair))
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

func RegisterHandlersWithBaseURL(e *echo.Echo, c *Controller, base string, loginMiddleware ...echo.MiddlewareFunc) {
	g := e.Group(base)
	g.GET("/ping", c.CheckServer)
	g.POST("/auth/access-token", c.LoginAccessToken, loginMiddleware...)
	g.POST("/auth/refresh-token", c.RefreshToken)
}
