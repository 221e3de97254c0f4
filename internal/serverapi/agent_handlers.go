package serverapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaydev/commandhub/internal/httpmw"
	"github.com/relaydev/commandhub/pkg/wire"
)

// reasonCrashUnknown is the sentinel reason string an agent's
// crash-recovery report carries (SPEC_FULL.md §4.6). The Result handler
// recognizes it to decide reopening instead of leaving the record
// terminal.
const reasonCrashUnknown = "crash — state unknown"

// Fetch handles POST /agent/fetch.
func (s *Server) Fetch(c *gin.Context) {
	var req wire.FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AgentID == "" {
		httpmw.RespondError(c, http.StatusBadRequest, "agentId is required")
		return
	}

	cmd, err := s.store.AssignNextTo(req.AgentID, nowUTC())
	if err != nil {
		s.log.Error("agent_api", "fetch", "assignment failed", err, map[string]interface{}{"agent_id": req.AgentID})
		httpmw.RespondError(c, http.StatusInternalServerError, "failed to fetch next command")
		return
	}

	resp := wire.FetchResponse{}
	if cmd != nil {
		wc := toWireCommand(cmd)
		resp.Command = &wc
		s.log.Info("agent_api", "fetch", "assigned command", map[string]interface{}{
			"agent_id": req.AgentID, "command_id": cmd.ID,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Result handles POST /agent/result.
func (s *Server) Result(c *gin.Context) {
	var req wire.ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AgentID == "" || req.CommandID == "" {
		httpmw.RespondError(c, http.StatusBadRequest, "agentId and commandId are required")
		return
	}
	if req.Status != wire.StatusCompleted && req.Status != wire.StatusFailed {
		httpmw.RespondError(c, http.StatusBadRequest, "status must be COMPLETED or FAILED")
		return
	}

	now := nowUTC()

	// Open Question resolution (SPEC_FULL.md §4.6, option b): a FAILED
	// report carrying the crash-recovery reason reopens the command to
	// Pending instead of leaving it terminal.
	if req.Status == wire.StatusFailed && req.Error == reasonCrashUnknown {
		ok, err := s.store.FailAndReopen(req.CommandID, req.AgentID, now)
		if err != nil {
			s.log.Error("agent_api", "result", "reopen after crash failed", err, map[string]interface{}{
				"agent_id": req.AgentID, "command_id": req.CommandID,
			})
			httpmw.RespondError(c, http.StatusInternalServerError, "failed to record result")
			return
		}
		if ok {
			c.JSON(http.StatusOK, wire.ResultResponse{
				Acknowledged: true,
				Message:      "command reopened to pending after agent crash",
			})
			return
		}
		httpmw.RespondError(c, http.StatusConflict, "command is not running under this agent")
		return
	}

	ok, err := s.store.Complete(req.CommandID, req.AgentID, string(req.Status), req.Result, req.Error, now)
	if err != nil {
		s.log.Error("agent_api", "result", "complete failed", err, map[string]interface{}{
			"agent_id": req.AgentID, "command_id": req.CommandID,
		})
		httpmw.RespondError(c, http.StatusInternalServerError, "failed to record result")
		return
	}
	if ok {
		c.JSON(http.StatusOK, wire.ResultResponse{Acknowledged: true})
		return
	}

	// complete() returned false: either this is a duplicate report
	// crossing a retry (idempotent no-op) or a genuine conflict.
	cmd, lookupErr := s.store.GetCommand(req.CommandID)
	if lookupErr != nil {
		httpmw.RespondError(c, http.StatusInternalServerError, "failed to verify result conflict")
		return
	}
	if cmd != nil && cmd.Status == string(req.Status) && cmd.Owner == req.AgentID {
		c.JSON(http.StatusOK, wire.ResultResponse{
			Acknowledged: true,
			Message:      "result already recorded; treated as a retry",
		})
		return
	}
	httpmw.RespondError(c, http.StatusConflict, "command is not running under this agent")
}

// Sync handles POST /agent/sync.
func (s *Server) Sync(c *gin.Context) {
	var req wire.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AgentID == "" {
		httpmw.RespondError(c, http.StatusBadRequest, "agentId is required")
		return
	}

	cmd, err := s.store.GetRunningFor(req.AgentID)
	if err != nil {
		s.log.Error("agent_api", "sync", "lookup failed", err, map[string]interface{}{"agent_id": req.AgentID})
		httpmw.RespondError(c, http.StatusInternalServerError, "failed to sync")
		return
	}

	resp := wire.SyncResponse{}
	if cmd != nil {
		wc := toWireCommand(cmd)
		resp.UnfinishedCommand = &wc
	}
	c.JSON(http.StatusOK, resp)
}

// Heartbeat handles POST /agent/heartbeat. It never fails hard —
// SPEC_FULL.md §6 requires it always acknowledge.
func (s *Server) Heartbeat(c *gin.Context) {
	var req wire.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AgentID == "" {
		c.JSON(http.StatusOK, wire.HeartbeatResponse{Acknowledged: true})
		return
	}

	if err := s.store.TouchHeartbeat(req.AgentID, req.CommandID, nowUTC()); err != nil {
		s.log.Warn("agent_api", "heartbeat", "heartbeat store write failed", map[string]interface{}{
			"agent_id": req.AgentID, "error": err.Error(),
		})
	}
	c.JSON(http.StatusOK, wire.HeartbeatResponse{Acknowledged: true})
}
