package sqlstore

import "github.com/goliatone/go-publisher/core"

var (
	_ core.ContentStore      = (*ContentStore)(nil)
	_ core.DeliveryJobStore  = (*DeliveryJobStore)(nil)
	_ core.SubscriptionStore = (*SubscriptionStore)(nil)
	_ core.InboundEventStore = (*InboundEventStore)(nil)
)
