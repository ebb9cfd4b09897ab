package core

import (
	"fmt"
	"time"
)

// DeliveryKey produces the deterministic idempotency key for one delivery:
// {contentId}-{platform}-{scheduledFor as epoch millis}. Identical inputs
// yield the identical key across process restarts, which lets an adapter
// recognize a duplicate attempt even after local state was lost.
func DeliveryKey(contentID int64, platform Platform, scheduledFor time.Time) string {
	return fmt.Sprintf("%d-%s-%d", contentID, platform, scheduledFor.UTC().UnixMilli())
}
