package slack

import (
	"github.com/tzrikka/hookgate/pkg/extract"
)

// URLVerificationType is the event type of Slack's endpoint-ownership handshake,
// which is sent as a signed POST request rather than a GET challenge.
const URLVerificationType = "url_verification"

// URLVerification returns the challenge value that must be echoed back to Slack,
// if the given events (extracted from a verified request) contain a handshake.
func URLVerification(events []extract.Event) (string, bool) {
	for _, e := range events {
		if e.Type != URLVerificationType {
			continue
		}
		m, ok := e.Data.(map[string]any)
		if !ok {
			continue
		}
		if c, ok := m["challenge"].(string); ok && c != "" {
			return c, true
		}
	}
	return "", false
}
