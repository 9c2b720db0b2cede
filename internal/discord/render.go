package discord

import (
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

func toEmbeds(n platform.Notice) []*discordgo.MessageEmbed {
	if !n.HasEmbed() {
		return []*discordgo.MessageEmbed{}
	}
	embed := &discordgo.MessageEmbed{
		Title:       truncate(n.Title, platform.MaxTitleLength),
		Description: truncate(n.Description, platform.MaxDescriptionLength),
		Color:       n.Color,
	}
	for _, f := range n.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   truncate(f.Name, platform.MaxFieldNameLength),
			Value:  truncate(f.Value, platform.MaxFieldValueLength),
			Inline: f.Inline,
		})
	}
	if n.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: truncate(n.Footer, platform.MaxFooterLength)}
	}
	if !n.Timestamp.IsZero() {
		embed.Timestamp = n.Timestamp.UTC().Format(time.RFC3339)
	}
	return []*discordgo.MessageEmbed{embed}
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

func toComponents(n platform.Notice) []discordgo.MessageComponent {
	if n.Button == nil {
		return nil
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: n.Button.Label, Style: discordgo.PrimaryButton, CustomID: n.Button.ActionID},
		}},
	}
}

func toMessageSend(n platform.Notice) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    n.Content,
		Embeds:     toEmbeds(n),
		Components: toComponents(n),
	}
}

func responseData(n platform.Notice, ephemeral bool) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:    n.Content,
		Embeds:     toEmbeds(n),
		Components: toComponents(n),
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

func followupParams(n platform.Notice, ephemeral bool) *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{
		Content:    n.Content,
		Embeds:     toEmbeds(n),
		Components: toComponents(n),
	}
	if ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	return params
}
