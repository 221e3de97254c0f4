package serverapi

import (
	"encoding/json"

	"github.com/relaydev/commandhub/internal/store"
	"github.com/relaydev/commandhub/pkg/wire"
)

func toWireCommand(cmd *store.Command) wire.Command {
	out := wire.Command{
		ID:          cmd.ID,
		Kind:        wire.CommandKind(cmd.Kind),
		Status:      wire.CommandStatus(cmd.Status),
		Error:       cmd.Error,
		AgentID:     cmd.Owner,
		CreatedAt:   cmd.CreatedAt,
		UpdatedAt:   cmd.UpdatedAt,
		StartedAt:   cmd.StartedAt,
		CompletedAt: cmd.CompletedAt,
	}

	if cmd.Payload != "" {
		var payload interface{}
		if err := json.Unmarshal([]byte(cmd.Payload), &payload); err == nil {
			out.Payload = payload
		}
	}
	if cmd.Result != "" {
		var result interface{}
		if err := json.Unmarshal([]byte(cmd.Result), &result); err == nil {
			out.Result = result
		}
	}
	return out
}

func toWireCommands(cmds []store.Command) []wire.Command {
	out := make([]wire.Command, 0, len(cmds))
	for i := range cmds {
		out = append(out, toWireCommand(&cmds[i]))
	}
	return out
}

func toWireEvents(events []store.CommandEvent) []wire.CommandEvent {
	out := make([]wire.CommandEvent, 0, len(events))
	for _, e := range events {
		out = append(out, wire.CommandEvent{
			CommandID:  e.CommandID,
			FromStatus: wire.CommandStatus(e.FromStatus),
			ToStatus:   wire.CommandStatus(e.ToStatus),
			AgentID:    e.AgentID,
			At:         e.At,
		})
	}
	return out
}
