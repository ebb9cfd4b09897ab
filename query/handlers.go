package query

import (
	"context"

	"github.com/goliatone/go-publisher/core"
)

type ContentReader interface {
	Get(ctx context.Context, id int64) (core.Content, error)
}

type DeliveryReader interface {
	ListForContent(ctx context.Context, contentID int64) ([]core.DeliveryJob, error)
}

type SubscriptionReader interface {
	GetByRemoteID(ctx context.Context, remoteID string) (core.WebhookSubscription, error)
}

type GetContentQuery struct {
	reader ContentReader
}

func NewGetContentQuery(reader ContentReader) *GetContentQuery {
	return &GetContentQuery{reader: reader}
}

func (q *GetContentQuery) Query(ctx context.Context, msg GetContentMessage) (core.Content, error) {
	if q == nil || q.reader == nil {
		return core.Content{}, queryDependencyError("query: content reader is required")
	}
	return q.reader.Get(ctx, msg.ContentID)
}

type ListDeliveriesQuery struct {
	reader DeliveryReader
}

func NewListDeliveriesQuery(reader DeliveryReader) *ListDeliveriesQuery {
	return &ListDeliveriesQuery{reader: reader}
}

func (q *ListDeliveriesQuery) Query(ctx context.Context, msg ListDeliveriesMessage) ([]core.DeliveryJob, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.ListForContent(ctx, msg.ContentID)
}

type GetSubscriptionQuery struct {
	reader SubscriptionReader
}

func NewGetSubscriptionQuery(reader SubscriptionReader) *GetSubscriptionQuery {
	return &GetSubscriptionQuery{reader: reader}
}

func (q *GetSubscriptionQuery) Query(ctx context.Context, msg GetSubscriptionMessage) (core.WebhookSubscription, error) {
	if q == nil || q.reader == nil {
		return core.WebhookSubscription{}, queryDependencyError("query: subscription reader is required")
	}
	return q.reader.GetByRemoteID(ctx, msg.RemoteID)
}
