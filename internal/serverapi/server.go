// Package serverapi implements the client-facing and agent-facing HTTP
// surfaces of SPEC_FULL.md §6 as gin handlers, grounded on the teacher's
// handler-then-service split (internal/handler/orchestrator calling
// into internal/service/orchestrator) — collapsed to a single Server
// type here since the coordination core's handlers are thin enough not
// to need a separate service layer between them and the store.
package serverapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relaydev/commandhub/internal/httpmw"
	"github.com/relaydev/commandhub/internal/logging"
	"github.com/relaydev/commandhub/internal/store"
)

// Server holds the dependencies every handler needs.
type Server struct {
	store store.Store
	log   *logging.Manager
}

// New builds a Server.
func New(st store.Store, log *logging.Manager) *Server {
	return &Server{store: st, log: log}
}

// Router builds the gin engine with both API surfaces registered.
func (s *Server) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(httpmw.Recovery(s.log), httpmw.AccessLog(s.log))

	engine.GET("/health", s.Health)

	engine.POST("/commands", s.SubmitCommand)
	engine.GET("/commands", s.ListCommands)
	engine.GET("/commands/:id", s.GetCommand)
	engine.GET("/commands/:id/events", s.ListCommandEvents)

	agent := engine.Group("/agent")
	agent.POST("/fetch", s.Fetch)
	agent.POST("/result", s.Result)
	agent.POST("/sync", s.Sync)
	agent.POST("/heartbeat", s.Heartbeat)

	return engine
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
