package batch

import (
	"encoding/json"
	"fmt"
	"os"

	"orderflow/src/engine"
)

// ReadIntents loads an ordered intent sequence from a JSON file holding
// an array of intent records. A file that cannot be read or parsed into
// a well-formed list is a fatal error for the whole run; per-record
// problems are left for the runner's partial-failure handling.
func ReadIntents(path string) ([]engine.Intent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read orders file: %w", err)
	}

	var intents []engine.Intent
	if err := json.Unmarshal(data, &intents); err != nil {
		return nil, fmt.Errorf("parse orders file %s: %w", path, err)
	}
	return intents, nil
}
