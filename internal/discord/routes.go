package discord

import (
	"context"

	"github.com/spec-kit/ticket-bot/internal/service"
)

// Action keys. Subcommands are addressed as "<command> <subcommand>";
// buttons as "button:<custom id>".
const (
	KeyTicket       = "ticket"
	KeyClose        = "close"
	KeyClaim        = "claim"
	KeyUnclaim      = "unclaim"
	KeyTicketStats  = "ticketstats"
	KeySetupStart   = "setup start"
	KeySetupView    = "setup view"
	KeySetupReset   = "setup reset"
	KeySetupRefresh = "setup refresh"
)

// ButtonKey returns the action key for a component custom id.
func ButtonKey(customID string) string {
	return "button:" + customID
}

// RegisterRoutes binds every command and the panel button to the services.
func RegisterRoutes(r *Router, tickets *service.TicketService, setup *service.SetupService) {
	create := Route{
		Handler: func(ctx context.Context, t Trigger) (*service.Result, error) {
			return tickets.Create(ctx, t.Actor)
		},
		Defer:     true,
		Ephemeral: true,
	}
	r.Handle(KeyTicket, create)
	r.Handle(ButtonKey(service.ActionCreateTicket), create)

	r.Handle(KeyClose, Route{Handler: func(ctx context.Context, t Trigger) (*service.Result, error) {
		return tickets.Close(ctx, t.Actor, t.ChannelID, t.Option("reason"))
	}})
	r.Handle(KeyClaim, Route{Handler: func(ctx context.Context, t Trigger) (*service.Result, error) {
		return tickets.Claim(ctx, t.Actor, t.ChannelID)
	}})
	r.Handle(KeyUnclaim, Route{Handler: func(ctx context.Context, t Trigger) (*service.Result, error) {
		return tickets.Unclaim(ctx, t.Actor, t.ChannelID)
	}})
	r.Handle(KeyTicketStats, Route{
		Handler: func(ctx context.Context, t Trigger) (*service.Result, error) {
			return tickets.Stats(ctx, t.Actor)
		},
		Defer:     true,
		Ephemeral: true,
	})

	r.Handle(KeySetupStart, Route{Handler: func(ctx context.Context, t Trigger) (*service.Result, error) {
		return setup.Start(ctx, t.Actor)
	}})
	r.Handle(KeySetupView, Route{Handler: func(ctx context.Context, t Trigger) (*service.Result, error) {
		return setup.View(ctx, t.Actor)
	}})
	r.Handle(KeySetupReset, Route{Handler: func(ctx context.Context, t Trigger) (*service.Result, error) {
		return setup.Reset(ctx, t.Actor)
	}})
	r.Handle(KeySetupRefresh, Route{
		Handler: func(ctx context.Context, t Trigger) (*service.Result, error) {
			return setup.Refresh(ctx, t.Actor)
		},
		Defer:     true,
		Ephemeral: true,
	})
}
