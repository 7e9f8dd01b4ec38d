package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func TenantAssignmentKey(userID uuid.UUID) string {
	return fmt.Sprintf("tenant:assignment:%s", userID)
}

func RateLimitKey(tokenDigest string) string {
	return fmt.Sprintf("ratelimit:%s", tokenDigest)
}
