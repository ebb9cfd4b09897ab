package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-publisher/core"
)

var (
	_ gocmd.Querier[GetContentMessage, core.Content]                  = (*GetContentQuery)(nil)
	_ gocmd.Querier[ListDeliveriesMessage, []core.DeliveryJob]        = (*ListDeliveriesQuery)(nil)
	_ gocmd.Querier[GetSubscriptionMessage, core.WebhookSubscription] = (*GetSubscriptionQuery)(nil)
)
