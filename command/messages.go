package command

import "strings"

const (
	TypeDispatchTick         = "publisher.command.dispatch.tick"
	TypeRollup               = "publisher.command.content.rollup"
	TypeCancelContent        = "publisher.command.content.cancel"
	TypeCreateSubscription   = "publisher.command.subscription.create"
	TypeTeardownSubscription = "publisher.command.subscription.teardown"
)

// DispatchTickMessage asks the engine to materialize delivery jobs for
// content whose scheduled time has passed.
type DispatchTickMessage struct{}

func (DispatchTickMessage) Type() string { return TypeDispatchTick }

func (DispatchTickMessage) Validate() error { return nil }

// RollupMessage asks the engine to recompute aggregate content status from
// delivery job outcomes.
type RollupMessage struct{}

func (RollupMessage) Type() string { return TypeRollup }

func (RollupMessage) Validate() error { return nil }

type CancelContentMessage struct {
	ContentID int64
}

func (CancelContentMessage) Type() string { return TypeCancelContent }

func (m CancelContentMessage) Validate() error {
	if m.ContentID <= 0 {
		return commandValidationError("content_id", "content id is required")
	}
	return nil
}

type CreateSubscriptionMessage struct {
	BroadcasterID string
	EventType     string
	AppToken      string
}

func (CreateSubscriptionMessage) Type() string { return TypeCreateSubscription }

func (m CreateSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.BroadcasterID) == "" {
		return commandValidationError("broadcaster_id", "broadcaster id is required")
	}
	return nil
}

type TeardownSubscriptionMessage struct {
	RemoteID string
	AppToken string
}

func (TeardownSubscriptionMessage) Type() string { return TypeTeardownSubscription }

func (m TeardownSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.RemoteID) == "" {
		return commandValidationError("remote_id", "remote subscription id is required")
	}
	return nil
}
