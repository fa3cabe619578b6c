package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func LastRunKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s:last_run", jobID)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
