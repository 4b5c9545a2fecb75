// Package httpserver implements the minimal embedded host surface (§6): a
// gin router exposing health, skill status/ranking, and metrics summary
// endpoints, plus a WebSocket upgrade point that accepts one JSON prompt
// frame and echoes task-status frames back.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/skillcore/skillcore/internal/engine"
	"github.com/skillcore/skillcore/internal/metrics"
	"github.com/skillcore/skillcore/internal/skills"
	"github.com/skillcore/skillcore/pkg/observability"
)

// Server wraps the embedded gin router over the resilience engine and its
// skill/metrics collaborators.
type Server struct {
	router  *gin.Engine
	engine  *engine.Engine
	tracker *skills.Tracker
	metrics *metrics.Collector
	logger  observability.Logger
}

// New builds the router and registers every §6 route.
func New(eng *engine.Engine, tracker *skills.Tracker, collector *metrics.Collector, logger observability.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{router: router, engine: eng, tracker: tracker, metrics: collector, logger: logger}

	router.GET("/healthz", s.handleHealthz)
	router.GET("/skills/status", s.handleSkillsStatus)
	router.GET("/skills/rank", s.handleSkillsRank)
	router.GET("/metrics/summary", s.handleMetricsSummary)
	router.GET("/ws", s.handleWebSocket)

	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSkillsStatus(c *gin.Context) {
	if id := c.Query("skill_id"); id != "" {
		stats, ok := s.tracker.GetSkillStats(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "skill not found"})
			return
		}
		c.JSON(http.StatusOK, stats)
		return
	}
	c.JSON(http.StatusOK, s.tracker.GetAllStats())
}

func (s *Server) handleSkillsRank(c *gin.Context) {
	top := 10
	if v := c.Query("top"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			top = parsed
		}
	}
	c.JSON(http.StatusOK, s.tracker.GetTopPerformers(top))
}

func (s *Server) handleMetricsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.GetSummary())
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// promptFrame is the single inbound frame the WebSocket endpoint accepts.
type promptFrame struct {
	Operation string `json:"operation"`
	Prompt    string `json:"prompt"`
}

// taskStatusFrame is echoed back once the operation completes.
type taskStatusFrame struct {
	TaskID    string `json:"task_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	TotalTime string `json:"total_time"`
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}

	var frame promptFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		conn.Close(websocket.StatusInvalidFramePayloadData, "invalid prompt frame")
		return
	}

	result := s.engine.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return frame.Prompt, nil
	}, frame.Operation, nil)

	status := taskStatusFrame{Success: result.Success, TotalTime: result.TotalTime.String()}
	if result.Error != nil {
		status.Error = result.Error.Error()
		status.ErrorKind = string(result.ErrorKind)
	}

	response, err := json.Marshal(status)
	if err != nil {
		return
	}
	_ = conn.Write(ctx, websocket.MessageText, response)
}
