package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// ActionCreateTicket is the stable id of the panel's "Create Ticket" button.
const ActionCreateTicket = "create_ticket"

const (
	colorGreen  = 0x2ecc71
	colorOrange = 0xe67e22
	colorRed    = 0xe74c3c
	colorBlue   = 0x3498db
	colorGold   = 0xf1c40f

	noticeFooter = "Ticket System"

	defaultPanelTitle       = "Support Tickets"
	defaultPanelDescription = "Click the button below to create a support ticket."
)

func userMention(id string) string    { return "<@" + id + ">" }
func roleMention(id string) string    { return "<@&" + id + ">" }
func channelMention(id string) string { return "<#" + id + ">" }

func baseNotice(now time.Time, title, description string, color int) platform.Notice {
	return platform.Notice{
		Title:       title,
		Description: description,
		Color:       color,
		Footer:      noticeFooter,
		Timestamp:   now,
	}
}

// ErrorNotice renders a failure message.
func ErrorNotice(now time.Time, message string) platform.Notice {
	return baseNotice(now, "Error", message, colorRed)
}

func ticketCreatedNotice(now time.Time, ownerID string, ticketID int64, pingRoleID string) platform.Notice {
	n := baseNotice(now, "Ticket Created",
		fmt.Sprintf("Welcome %s! A support ticket has been created for you.", userMention(ownerID)), colorGreen)
	n.Fields = []platform.Field{
		{Name: "Instructions", Value: "Please describe your issue or question. A staff member will assist you shortly.\n\n" +
			"Use `/close` to close this ticket when your issue is resolved."},
		{Name: "Ticket ID", Value: fmt.Sprintf("#%d", ticketID)},
	}
	if pingRoleID != "" {
		n.Content = roleMention(pingRoleID)
	}
	return n
}

func ticketClosingNotice(now time.Time, closerID string, reason *string, delay time.Duration) platform.Notice {
	n := baseNotice(now, "Ticket Closing",
		fmt.Sprintf("This ticket is being closed by %s.", userMention(closerID)), colorOrange)
	if reason != nil {
		n.Fields = append(n.Fields, platform.Field{Name: "Reason", Value: *reason})
	}
	n.Fields = append(n.Fields, platform.Field{
		Name:  "Notice",
		Value: fmt.Sprintf("This channel will be deleted in %d seconds.", int(delay.Seconds())),
	})
	return n
}

func ticketClaimedNotice(now time.Time, staffID string) platform.Notice {
	return baseNotice(now, "Ticket Claimed",
		fmt.Sprintf("%s is now handling this ticket.", userMention(staffID)), colorGreen)
}

func ticketUnclaimedNotice(now time.Time, staffID string) platform.Notice {
	return baseNotice(now, "Ticket Unclaimed",
		fmt.Sprintf("%s released this ticket. Any staff member can claim it now.", userMention(staffID)), colorBlue)
}

func statsNotice(now time.Time, overall domain.TicketStatistics, periods []domain.PeriodStatistics, claimed []domain.Ticket) platform.Notice {
	n := baseNotice(now, "Ticket Statistics", "", colorBlue)
	n.Fields = []platform.Field{
		{Name: "Total", Value: fmt.Sprint(overall.Total), Inline: true},
		{Name: "Open", Value: fmt.Sprint(overall.Open), Inline: true},
		{Name: "Closed", Value: fmt.Sprint(overall.Closed), Inline: true},
		{Name: "Claimed", Value: fmt.Sprint(overall.Claimed), Inline: true},
		{Name: "Unclaimed", Value: fmt.Sprint(overall.Unclaimed), Inline: true},
	}
	for _, p := range periods {
		label := fmt.Sprintf("Last %d days", p.Days)
		if p.Days == 1 {
			label = "Last 24 hours"
		}
		n.Fields = append(n.Fields, platform.Field{
			Name:  label,
			Value: fmt.Sprintf("%d created, %d open, %d closed", p.Total, p.Open, p.Closed),
		})
	}
	value := "None"
	if len(claimed) > 0 {
		lines := make([]string, 0, len(claimed))
		for _, t := range claimed {
			lines = append(lines, fmt.Sprintf("#%d %s", t.ID, channelMention(t.ChannelID)))
		}
		value = joinWithin(lines, platform.MaxFieldValueLength)
	}
	n.Fields = append(n.Fields, platform.Field{Name: "Your claimed tickets", Value: value})
	return n
}

// PanelNotice renders the ticket panel; nil overrides fall back to defaults.
func PanelNotice(now time.Time, title, description, pingRoleID *string) platform.Notice {
	t := defaultPanelTitle
	if title != nil && *title != "" {
		t = *title
	}
	d := defaultPanelDescription
	if description != nil && *description != "" {
		d = *description
	}
	n := baseNotice(now, t, d, colorBlue)
	n.Fields = []platform.Field{{
		Name: "How it works",
		Value: "1. Click the button below\n" +
			"2. A private channel will be created for you\n" +
			"3. Describe your issue or question\n" +
			"4. A staff member will assist you\n" +
			"5. Use `/close` to close the ticket when done",
	}}
	if pingRoleID != nil && *pingRoleID != "" {
		n.Fields = append(n.Fields, platform.Field{
			Name:  "Support team",
			Value: fmt.Sprintf("%s will be notified when you open a ticket.", roleMention(*pingRoleID)),
		})
	}
	n.Button = &platform.Button{Label: "Create Ticket", ActionID: ActionCreateTicket}
	return n
}

func setupStepNotice(now time.Time, step int, body string) platform.Notice {
	return baseNotice(now, fmt.Sprintf("Ticket Setup - Step %d of 5", step), body, colorGold)
}

func configViewNotice(now time.Time, cfg *domain.GuildConfig) platform.Notice {
	optional := func(v *string, render func(string) string) string {
		if v == nil || *v == "" {
			return "Not set"
		}
		return render(*v)
	}
	plain := func(s string) string { return s }

	n := baseNotice(now, "Ticket System Configuration", "", colorBlue)
	n.Fields = []platform.Field{
		{Name: "Panel Channel", Value: channelMention(cfg.PanelChannelID), Inline: true},
		{Name: "Ping Role", Value: optional(cfg.PingRoleID, roleMention), Inline: true},
		{Name: "Support Role", Value: optional(cfg.SupportRoleID, roleMention), Inline: true},
		{Name: "Ticket Category", Value: optional(cfg.TicketCategoryID, plain), Inline: true},
		{Name: "Panel Title", Value: optional(cfg.PanelTitle, plain)},
		{Name: "Panel Description", Value: optional(cfg.PanelDescription, plain)},
		{Name: "Last Updated", Value: cfg.UpdatedAt.UTC().Format(time.RFC1123)},
	}
	return n
}

func textNotice(content string) platform.Notice {
	return platform.Notice{Content: content}
}

// ticketChannelName derives the channel name for a requester.
func ticketChannelName(username string) string {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(username)), " ", "-")
	if name == "" {
		name = "user"
	}
	return "ticket-" + name
}

// joinWithin joins lines with newlines, dropping trailing lines that would push
// the result past limit and noting how many were left out.
func joinWithin(lines []string, limit int) string {
	var b strings.Builder
	for i, line := range lines {
		more := fmt.Sprintf("…and %d more", len(lines)-i)
		sep := ""
		if i > 0 {
			sep = "\n"
		}
		last := i == len(lines)-1
		needed := len(sep) + len(line)
		if !last {
			needed += len("\n") + len(more)
		}
		if b.Len()+needed > limit {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(more)
			return b.String()
		}
		b.WriteString(sep)
		b.WriteString(line)
	}
	return b.String()
}
