package serverapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relaydev/commandhub/internal/httpmw"
	"github.com/relaydev/commandhub/internal/store"
	"github.com/relaydev/commandhub/pkg/wire"
)

// SubmitCommand handles POST /commands.
func (s *Server) SubmitCommand(c *gin.Context) {
	var req wire.SubmitCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpmw.RespondError(c, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := validateSubmission(req); err != nil {
		httpmw.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.NewString()
	if err := s.store.InsertCommand(id, string(req.Type), req.Payload); err != nil {
		s.log.Error("client_api", "submit_command", "insert command failed", err, nil)
		httpmw.RespondError(c, http.StatusInternalServerError, "failed to submit command")
		return
	}

	s.log.Info("client_api", "submit_command", "command submitted", map[string]interface{}{
		"command_id": id, "kind": req.Type,
	})
	c.JSON(http.StatusCreated, wire.SubmitCommandResponse{CommandID: id})
}

// GetCommand handles GET /commands/{id}.
func (s *Server) GetCommand(c *gin.Context) {
	id := c.Param("id")
	cmd, err := s.store.GetCommand(id)
	if err != nil {
		s.log.Error("client_api", "get_command", "lookup failed", err, map[string]interface{}{"command_id": id})
		httpmw.RespondError(c, http.StatusInternalServerError, "failed to look up command")
		return
	}
	if cmd == nil {
		httpmw.RespondError(c, http.StatusNotFound, "command not found")
		return
	}

	wc := toWireCommand(cmd)
	c.JSON(http.StatusOK, wire.GetCommandResponse{
		Status:  wc.Status,
		Result:  wc.Result,
		AgentID: wc.AgentID,
	})
}

// ListCommands handles GET /commands, optionally filtered by ?status=.
func (s *Server) ListCommands(c *gin.Context) {
	status := c.Query("status")

	var (
		cmds []store.Command
		err  error
	)
	if status != "" {
		cmds, err = s.store.ListCommandsByStatus(status)
	} else {
		cmds, err = s.store.ListCommands()
	}
	if err != nil {
		s.log.Error("client_api", "list_commands", "list failed", err, nil)
		httpmw.RespondError(c, http.StatusInternalServerError, "failed to list commands")
		return
	}

	c.JSON(http.StatusOK, wire.ListCommandsResponse{Commands: toWireCommands(cmds)})
}

// ListCommandEvents handles GET /commands/{id}/events.
func (s *Server) ListCommandEvents(c *gin.Context) {
	id := c.Param("id")
	cmd, err := s.store.GetCommand(id)
	if err != nil {
		httpmw.RespondError(c, http.StatusInternalServerError, "failed to look up command")
		return
	}
	if cmd == nil {
		httpmw.RespondError(c, http.StatusNotFound, "command not found")
		return
	}

	events, err := s.store.ListEvents(id)
	if err != nil {
		s.log.Error("client_api", "list_command_events", "list failed", err, map[string]interface{}{"command_id": id})
		httpmw.RespondError(c, http.StatusInternalServerError, "failed to list command events")
		return
	}
	c.JSON(http.StatusOK, wire.ListCommandEventsResponse{Events: toWireEvents(events)})
}

// Health handles GET /health.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, wire.HealthResponse{Status: "ok", Timestamp: nowUTC()})
}
