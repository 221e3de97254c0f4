package serverapi

import (
	"fmt"
	"net/url"

	"github.com/relaydev/commandhub/pkg/wire"
)

// validateSubmission enforces the payload shape SPEC_FULL.md §6 requires
// for each command kind before anything is persisted.
func validateSubmission(req wire.SubmitCommandRequest) error {
	switch req.Type {
	case wire.KindDelay:
		payload, ok := req.Payload.(map[string]interface{})
		if !ok {
			return fmt.Errorf("payload must be an object with an ms field")
		}
		ms, ok := payload["ms"].(float64)
		if !ok {
			return fmt.Errorf("payload.ms is required and must be a number")
		}
		if ms <= 0 {
			return fmt.Errorf("payload.ms must be a positive integer")
		}
		return nil
	case wire.KindHTTPGetJSON:
		payload, ok := req.Payload.(map[string]interface{})
		if !ok {
			return fmt.Errorf("payload must be an object with a url field")
		}
		rawURL, ok := payload["url"].(string)
		if !ok || rawURL == "" {
			return fmt.Errorf("payload.url is required")
		}
		parsed, err := url.ParseRequestURI(rawURL)
		if err != nil || !parsed.IsAbs() {
			return fmt.Errorf("payload.url must be a valid absolute URL")
		}
		return nil
	case wire.KindNoop:
		return nil
	default:
		return fmt.Errorf("unknown command type %q", req.Type)
	}
}
