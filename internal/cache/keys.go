package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Keys share the handreel: namespace with the dispatch queue so one
// Redis instance can back both.

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("handreel:job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("handreel:ratelimit:%s", keyPrefix)
}
