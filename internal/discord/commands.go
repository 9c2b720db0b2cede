package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/service"
)

// Commands returns the slash command definitions synced on startup.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: KeyTicket, Description: "Create a new support ticket"},
		{
			Name:        KeyClose,
			Description: "Close the current ticket",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "reason",
				Description: "Why the ticket is being closed",
				Required:    false,
				MaxLength:   service.MaxCloseReasonLength,
			}},
		},
		{Name: KeyClaim, Description: "Claim the current ticket"},
		{Name: KeyUnclaim, Description: "Release your claim on the current ticket"},
		{Name: KeyTicketStats, Description: "Show ticket statistics (staff only)"},
		{
			Name:        "setup",
			Description: "Configure the ticket system",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "start", Description: "Start the interactive setup process (admin only)"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "view", Description: "View current configuration (admin only)"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "reset", Description: "Reset ticket system configuration (admin only)"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "refresh", Description: "Refresh the ticket panel (admin only)"},
			},
		},
	}
}

// commandKey flattens a command invocation into an action key and its string options.
func commandKey(data discordgo.ApplicationCommandInteractionData) (string, map[string]string) {
	key := data.Name
	options := data.Options
	for len(options) == 1 && (options[0].Type == discordgo.ApplicationCommandOptionSubCommand ||
		options[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup) {
		key += " " + options[0].Name
		options = options[0].Options
	}
	values := make(map[string]string, len(options))
	for _, opt := range options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			values[opt.Name] = opt.StringValue()
		}
	}
	return key, values
}
