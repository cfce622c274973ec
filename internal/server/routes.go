package server

import (
	"net/http"
	"time"

	"neasmart2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type commandRequest struct {
	InstallationID string `json:"installationId"`
	ZoneDatabaseID string `json:"zoneDatabaseId"`
	CommandType    string `json:"commandType"`
	Payload        string `json:"payload"`
}

type commandResponse struct {
	CommandID string `json:"commandId"`
}

type commandStatusResponse struct {
	CommandID   string     `json:"commandId"`
	State       string     `json:"state"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

type sessionResponse struct {
	Authenticated     bool  `json:"authenticated"`
	SessionAgeSeconds int64 `json:"sessionAgeSeconds"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.POST("/api/command", s.IssueCommandHandler)
	e.GET("/api/commands/:id", s.CommandStatusHandler)
	e.GET("/api/installations/:id", s.InstallationHandler)
	e.GET("/api/session", s.SessionHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) IssueCommandHandler(c echo.Context) error {
	var req commandRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ZoneDatabaseID == "" || req.CommandType == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "zoneDatabaseId and commandType are required"})
	}

	res, err := s.rootContext.RequestFuture(s.masterActor, domain.IssueCommandRequest{
		InstallationID: req.InstallationID,
		ZoneID:         req.ZoneDatabaseID,
		Type:           domain.CommandType(req.CommandType),
		Payload:        req.Payload,
	}, 5*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}
	response, ok := res.(domain.IssueCommandResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "unexpected response"})
	}
	if response.HasResponseError() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": response.GetResponseError().Error()})
	}
	return c.JSON(http.StatusAccepted, commandResponse{CommandID: response.CommandID})
}

func (s *Server) CommandStatusHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.CommandStatusRequest{
		CommandID: c.Param("id"),
	}, 5*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}
	response, ok := res.(domain.CommandStatusResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "unexpected response"})
	}
	if response.HasResponseError() || response.Command == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown command"})
	}
	return c.JSON(http.StatusOK, commandStatusResponse{
		CommandID:   response.Command.ID,
		State:       string(response.Command.State),
		ConfirmedAt: response.Command.ConfirmedAt,
	})
}

func (s *Server) InstallationHandler(c echo.Context) error {
	inst := s.store.Get(c.Param("id"))
	if inst == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown installation"})
	}
	return c.JSON(http.StatusOK, inst)
}

func (s *Server) SessionHandler(c echo.Context) error {
	authenticated, age := s.tokenManager.Status()
	return c.JSON(http.StatusOK, sessionResponse{
		Authenticated:     authenticated,
		SessionAgeSeconds: int64(age.Seconds()),
	})
}
