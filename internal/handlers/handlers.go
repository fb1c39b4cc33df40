// Package handlers is the HTTP control API: focus, pause, resume, status and
// the viewer stream, all routed through the command dispatcher.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/azurexth/LimSim/internal/dispatcher"
	"github.com/azurexth/LimSim/internal/geo"
	"github.com/azurexth/LimSim/internal/logging"
	"github.com/azurexth/LimSim/internal/parser"
	"github.com/azurexth/LimSim/internal/worker"
)

// Commander executes control commands. *dispatcher.Dispatcher implements it.
type Commander interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Dependencies holds all dependencies for the HTTP service.
type Dependencies struct {
	Commander  Commander
	Stream     http.Handler // viewer WebSocket, optional
	LogManager *logging.SlogManager
}

// Service serves the control API.
type Service struct {
	deps Dependencies
}

// NewService creates the HTTP service.
func NewService(deps Dependencies) *Service {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Service{deps: deps}
}

// FocusRequest is the body of POST /api/focus.
type FocusRequest struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Router builds the gin engine with every route registered.
func (s *Service) Router() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery(), s.requestLog())

	api := r.Group("/api")
	api.POST("/focus", s.Focus)
	api.POST("/pause", s.Pause)
	api.POST("/resume", s.Resume)
	api.GET("/status", s.Status)

	if s.deps.Stream != nil {
		r.GET("/ws", gin.WrapH(s.deps.Stream))
	}
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

// Focus queues a focus request at the given point.
func (s *Service) Focus(c *gin.Context) {
	var req FocusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "body must be {\"x\": number, \"y\": number}")
		return
	}
	args := []string{
		strconv.FormatFloat(*req.X, 'f', -1, 64),
		strconv.FormatFloat(*req.Y, 'f', -1, 64),
	}
	s.dispatch(c, dispatcher.CommandFocus, args)
}

// Pause freezes vehicle motion.
func (s *Service) Pause(c *gin.Context) {
	s.dispatch(c, dispatcher.CommandPause, nil)
}

// Resume undoes Pause.
func (s *Service) Resume(c *gin.Context) {
	s.dispatch(c, dispatcher.CommandResume, nil)
}

// Status returns the current run status.
func (s *Service) Status(c *gin.Context) {
	s.dispatch(c, dispatcher.CommandStatus, nil)
}

func (s *Service) dispatch(c *gin.Context, command string, args []string) {
	if s.deps.Commander == nil {
		writeError(c, http.StatusServiceUnavailable, "no simulation attached")
		return
	}
	result, err := s.deps.Commander.Dispatch(dispatcher.Event{Command: command, Args: args})
	if err != nil {
		writeCommandError(c, err)
		return
	}
	if command == dispatcher.CommandStatus {
		writeJSON(c, http.StatusOK, result)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok", "result": result})
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeCommandError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, geo.ErrInvalidCoordinates), errors.Is(err, parser.ErrMissingArgs):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatcher.ErrUnknownCommand):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, dispatcher.ErrQueueFull):
		writeError(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, worker.ErrNoRun), errors.Is(err, dispatcher.ErrClosed):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func (s *Service) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				s.deps.LogManager.WriteLog("recovery", fmt.Sprintf("panic serving %s: %v", c.Request.URL.Path, rec), "ERROR")
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

func (s *Service) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.deps.LogManager.WriteLog("http", fmt.Sprintf("%s %s %d %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start)), "DEBUG")
	}
}
