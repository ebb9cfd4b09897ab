package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-publisher/core"
	"github.com/goliatone/go-publisher/webhooks"
)

// DispatchEngine is the dispatcher surface commands drive on demand,
// outside the periodic Run loop.
type DispatchEngine interface {
	Tick(ctx context.Context) (core.DispatchStats, error)
	Rollup(ctx context.Context) (int, error)
}

type ContentCanceler interface {
	CancelContent(ctx context.Context, contentID int64) (int, error)
}

type SubscriptionProvisioner interface {
	Provision(ctx context.Context, req webhooks.ProvisionRequest) (core.WebhookSubscription, error)
	Teardown(ctx context.Context, remoteID string, appToken string) error
}

type DispatchTickCommand struct {
	engine DispatchEngine
}

func NewDispatchTickCommand(engine DispatchEngine) *DispatchTickCommand {
	return &DispatchTickCommand{engine: engine}
}

func (c *DispatchTickCommand) Execute(ctx context.Context, _ DispatchTickMessage) error {
	if c == nil || c.engine == nil {
		return commandDependencyError("command: dispatch engine is required")
	}
	out, err := c.engine.Tick(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RollupCommand struct {
	engine DispatchEngine
}

func NewRollupCommand(engine DispatchEngine) *RollupCommand {
	return &RollupCommand{engine: engine}
}

func (c *RollupCommand) Execute(ctx context.Context, _ RollupMessage) error {
	if c == nil || c.engine == nil {
		return commandDependencyError("command: dispatch engine is required")
	}
	out, err := c.engine.Rollup(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CancelContentCommand struct {
	service ContentCanceler
}

func NewCancelContentCommand(service ContentCanceler) *CancelContentCommand {
	return &CancelContentCommand{service: service}
}

func (c *CancelContentCommand) Execute(ctx context.Context, msg CancelContentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: content cancel service is required")
	}
	out, err := c.service.CancelContent(ctx, msg.ContentID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateSubscriptionCommand struct {
	provisioner SubscriptionProvisioner
}

func NewCreateSubscriptionCommand(provisioner SubscriptionProvisioner) *CreateSubscriptionCommand {
	return &CreateSubscriptionCommand{provisioner: provisioner}
}

func (c *CreateSubscriptionCommand) Execute(ctx context.Context, msg CreateSubscriptionMessage) error {
	if c == nil || c.provisioner == nil {
		return commandDependencyError("command: subscription provisioner is required")
	}
	out, err := c.provisioner.Provision(ctx, webhooks.ProvisionRequest{
		BroadcasterID: msg.BroadcasterID,
		EventType:     msg.EventType,
		AppToken:      msg.AppToken,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TeardownSubscriptionCommand struct {
	provisioner SubscriptionProvisioner
}

func NewTeardownSubscriptionCommand(provisioner SubscriptionProvisioner) *TeardownSubscriptionCommand {
	return &TeardownSubscriptionCommand{provisioner: provisioner}
}

func (c *TeardownSubscriptionCommand) Execute(ctx context.Context, msg TeardownSubscriptionMessage) error {
	if c == nil || c.provisioner == nil {
		return commandDependencyError("command: subscription provisioner is required")
	}
	return c.provisioner.Teardown(ctx, msg.RemoteID, msg.AppToken)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
