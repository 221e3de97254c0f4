package agentrun

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const identityFileName = "agent-id.txt"

// LoadOrCreateIdentity loads the agent's persistent id from
// dataPath/agent-id.txt, generating and persisting a fresh one if the
// file is absent (SPEC_FULL.md §4.6 step 1).
func LoadOrCreateIdentity(dataPath string) (string, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return "", fmt.Errorf("create agent data dir: %w", err)
	}

	path := filepath.Join(dataPath, identityFileName)
	raw, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read identity file: %w", err)
	}

	id := "agent-" + uuid.NewString()
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("write identity file: %w", err)
	}
	return id, nil
}
