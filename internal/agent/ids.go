package agent

import (
	"strings"

	"github.com/google/uuid"
)

// NewMessageID returns a fresh assistant message id of the form
// "msg_" + 8 hex characters. Each model round-trip within a turn gets
// its own id so clients render continuation segments separately.
func NewMessageID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "msg_" + hex[:8]
}
