package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[DispatchTickMessage]         = (*DispatchTickCommand)(nil)
	_ gocmd.Commander[RollupMessage]               = (*RollupCommand)(nil)
	_ gocmd.Commander[CancelContentMessage]        = (*CancelContentCommand)(nil)
	_ gocmd.Commander[CreateSubscriptionMessage]   = (*CreateSubscriptionCommand)(nil)
	_ gocmd.Commander[TeardownSubscriptionMessage] = (*TeardownSubscriptionCommand)(nil)
)
