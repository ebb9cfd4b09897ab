package query

import "strings"

const (
	TypeGetContent      = "publisher.query.content.get"
	TypeListDeliveries  = "publisher.query.delivery.list"
	TypeGetSubscription = "publisher.query.subscription.get"
)

type GetContentMessage struct {
	ContentID int64
}

func (GetContentMessage) Type() string { return TypeGetContent }

func (m GetContentMessage) Validate() error {
	if m.ContentID <= 0 {
		return queryValidationError("content_id", "content id is required")
	}
	return nil
}

type ListDeliveriesMessage struct {
	ContentID int64
}

func (ListDeliveriesMessage) Type() string { return TypeListDeliveries }

func (m ListDeliveriesMessage) Validate() error {
	if m.ContentID <= 0 {
		return queryValidationError("content_id", "content id is required")
	}
	return nil
}

type GetSubscriptionMessage struct {
	RemoteID string
}

func (GetSubscriptionMessage) Type() string { return TypeGetSubscription }

func (m GetSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.RemoteID) == "" {
		return queryValidationError("remote_id", "remote subscription id is required")
	}
	return nil
}
