package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().Format("20060102-150405")
	id := uuid.New()
	return fmt.Sprintf("run-%s-%s", timestamp, id.String()[:8])
}
