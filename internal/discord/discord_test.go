package discord

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func TestResolveRendersResultsAndErrors(t *testing.T) {
	metrics := observability.NewMetrics()
	r := NewRouter(zap.NewNop(), metrics)
	r.Handle("ok", Route{Handler: func(context.Context, Trigger) (*service.Result, error) {
		return &service.Result{Reply: platform.Notice{Content: "done"}, Ephemeral: true}, nil
	}})
	r.Handle("denied", Route{Handler: func(context.Context, Trigger) (*service.Result, error) {
		return nil, apperrors.NewForbidden("nope")
	}})
	r.Handle("broken", Route{Handler: func(context.Context, Trigger) (*service.Result, error) {
		return nil, errors.New("db down")
	}})
	r.Handle("panics", Route{Handler: func(context.Context, Trigger) (*service.Result, error) {
		panic("boom")
	}})

	ctx := context.Background()
	reply := r.Resolve(ctx, "ok", Trigger{})
	assert.Equal(t, "done", reply.Notice.Content)
	assert.True(t, reply.Ephemeral)

	reply = r.Resolve(ctx, "denied", Trigger{})
	assert.Equal(t, "Error", reply.Notice.Title)
	assert.Equal(t, "nope", reply.Notice.Description)
	assert.True(t, reply.Ephemeral)

	reply = r.Resolve(ctx, "broken", Trigger{})
	assert.NotContains(t, reply.Notice.Description, "db down")

	reply = r.Resolve(ctx, "panics", Trigger{})
	assert.Equal(t, "Error", reply.Notice.Title)

	reply = r.Resolve(ctx, "missing", Trigger{})
	assert.Equal(t, "This action is no longer available.", reply.Notice.Description)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Triggers["ok"])
	assert.Equal(t, int64(1), snap.Errors["denied|"+apperrors.CodeForbidden])
	assert.Equal(t, int64(1), snap.Errors["broken|"+apperrors.CodeInternal])
	assert.Equal(t, int64(1), snap.Errors["panics|"+apperrors.CodeInternal])
}

func TestRegisterRoutesCoversCommandSurface(t *testing.T) {
	r := NewRouter(nil, nil)
	RegisterRoutes(r, service.NewTicketService(service.TicketDependencies{}), service.NewSetupService(service.SetupDependencies{}))

	var expected []string
	for _, cmd := range Commands() {
		if len(cmd.Options) > 0 && cmd.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
			for _, sub := range cmd.Options {
				expected = append(expected, cmd.Name+" "+sub.Name)
			}
			continue
		}
		expected = append(expected, cmd.Name)
	}
	expected = append(expected, ButtonKey(service.ActionCreateTicket))

	keys := r.Keys()
	sort.Strings(keys)
	sort.Strings(expected)
	assert.Equal(t, expected, keys)

	create, ok := r.Lookup(ButtonKey("create_ticket"))
	require.True(t, ok)
	assert.True(t, create.Defer)
	refresh, _ := r.Lookup(KeySetupRefresh)
	assert.True(t, refresh.Defer)
	closeRoute, _ := r.Lookup(KeyClose)
	assert.False(t, closeRoute.Defer)
}

func TestCommandKeyFlattensSubcommands(t *testing.T) {
	key, opts := commandKey(discordgo.ApplicationCommandInteractionData{
		Name: "setup",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{{
			Name: "refresh",
			Type: discordgo.ApplicationCommandOptionSubCommand,
		}},
	})
	assert.Equal(t, KeySetupRefresh, key)
	assert.Empty(t, opts)

	key, opts = commandKey(discordgo.ApplicationCommandInteractionData{
		Name: "close",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{{
			Name:  "reason",
			Type:  discordgo.ApplicationCommandOptionString,
			Value: "resolved",
		}},
	})
	assert.Equal(t, KeyClose, key)
	assert.Equal(t, map[string]string{"reason": "resolved"}, opts)

	trigger := Trigger{Options: opts}
	require.NotNil(t, trigger.Option("reason"))
	assert.Equal(t, "resolved", *trigger.Option("reason"))
	assert.Nil(t, trigger.Option("other"))
}

func TestNoticeRendering(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	panel := service.PanelNotice(ts, nil, nil, nil)

	send := toMessageSend(panel)
	require.Len(t, send.Embeds, 1)
	assert.Equal(t, "Support Tickets", send.Embeds[0].Title)
	assert.Equal(t, "2026-01-02T03:04:05Z", send.Embeds[0].Timestamp)
	assert.Equal(t, "Ticket System", send.Embeds[0].Footer.Text)
	require.Len(t, send.Components, 1)
	row, ok := send.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	button, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, service.ActionCreateTicket, button.CustomID)

	plain := responseData(platform.Notice{Content: "hi"}, true)
	assert.Empty(t, plain.Embeds)
	assert.Nil(t, plain.Components)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, plain.Flags)

	params := followupParams(platform.Notice{Content: "hi"}, false)
	assert.Zero(t, params.Flags)
}

func TestEmbedTextIsCappedToPlatformLimits(t *testing.T) {
	n := platform.Notice{
		Title:  strings.Repeat("t", 300),
		Fields: []platform.Field{{Name: "Reason", Value: strings.Repeat("ü", 3000)}},
		Footer: "Ticket System",
	}

	embeds := toEmbeds(n)
	require.Len(t, embeds, 1)
	assert.Equal(t, platform.MaxTitleLength, utf8.RuneCountInString(embeds[0].Title))
	value := embeds[0].Fields[0].Value
	assert.Equal(t, platform.MaxFieldValueLength, utf8.RuneCountInString(value))
	assert.True(t, strings.HasSuffix(value, "…"))
	assert.Equal(t, "Ticket System", embeds[0].Footer.Text)
}

func TestCloseReasonOptionHasMaxLength(t *testing.T) {
	for _, cmd := range Commands() {
		if cmd.Name != KeyClose {
			continue
		}
		require.Len(t, cmd.Options, 1)
		assert.Equal(t, service.MaxCloseReasonLength, cmd.Options[0].MaxLength)
		return
	}
	t.Fatal("close command not defined")
}

func TestPermissionAndOverwriteMapping(t *testing.T) {
	bits := toPermissionBits(platform.PermView | platform.PermManage)
	assert.Equal(t, int64(discordgo.PermissionViewChannel|discordgo.PermissionManageChannels), bits)

	everyone := toOverwrite(platform.Overwrite{Kind: platform.TargetEveryone, ID: "g", Deny: platform.PermView})
	assert.Equal(t, discordgo.PermissionOverwriteTypeRole, everyone.Type)
	assert.Equal(t, int64(discordgo.PermissionViewChannel), everyone.Deny)

	member := toOverwrite(platform.Overwrite{Kind: platform.TargetMember, ID: "u", Allow: platform.PermSend})
	assert.Equal(t, discordgo.PermissionOverwriteTypeMember, member.Type)
}

func TestMapError(t *testing.T) {
	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	assert.ErrorIs(t, mapError("create channel", forbidden), platform.ErrForbidden)

	missing := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	assert.ErrorIs(t, mapError("get channel", missing), platform.ErrNotFound)

	assert.ErrorIs(t, mapError("role", discordgo.ErrStateNotFound), platform.ErrNotFound)
	assert.NoError(t, mapError("noop", nil))

	other := mapError("send", errors.New("timeout"))
	assert.False(t, errors.Is(other, platform.ErrForbidden))
	assert.Contains(t, other.Error(), "send: timeout")
}
