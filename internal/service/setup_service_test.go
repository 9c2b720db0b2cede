package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/session"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	setupChannel = "100"
	panelChannel = "200"
	pingRole     = "300"
	categoryID   = "400"
)

func newSetupHarness(t *testing.T) *harness {
	h := newHarness(t)
	h.platform.AddTextChannel(testGuild, setupChannel, "admin-chat")
	h.platform.AddTextChannel(testGuild, panelChannel, "support-tickets")
	h.platform.AddRole(testGuild, pingRole, "Helpers")
	h.platform.AddCategory(testGuild, categoryID, "Tickets")
	return h
}

func (h *harness) say(t *testing.T, authorID, content string) {
	t.Helper()
	handled, err := h.setupSvc.HandleMessage(context.Background(), IncomingMessage{
		GuildID:   testGuild,
		ChannelID: setupChannel,
		AuthorID:  authorID,
		Content:   content,
	})
	require.NoError(t, err)
	require.True(t, handled)
}

func (h *harness) lastReply(t *testing.T) string {
	t.Helper()
	msgs := h.platform.Messages(setupChannel)
	require.NotEmpty(t, msgs)
	n := msgs[len(msgs)-1].Notice
	return n.Title + "|" + n.Description + "|" + n.Content
}

func (h *harness) step(t *testing.T, userID string) int {
	t.Helper()
	sess, err := h.sessions.Get(context.Background(), testGuild, userID)
	require.NoError(t, err)
	return sess.Step
}

func TestSetupWizardPublishesOnePanel(t *testing.T) {
	ctx := context.Background()
	h := newSetupHarness(t)

	res, err := h.setupSvc.Start(ctx, admin("a"))
	require.NoError(t, err)
	assert.Contains(t, res.Reply.Title, "Step 1")

	h.say(t, "a", "<#"+panelChannel+">")
	assert.Equal(t, session.StepPingRole, h.step(t, "a"))
	h.say(t, "a", "<@&"+pingRole+">")
	h.say(t, "a", "Tickets")
	h.say(t, "a", "Help Desk")
	h.say(t, "a", "Press the button to reach us.")
	assert.Contains(t, h.lastReply(t), "Setup complete! Ticket panel created.")

	_, err = h.sessions.Get(ctx, testGuild, "a")
	assert.ErrorIs(t, err, session.ErrNotFound)

	cfg, err := h.configs.Get(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(t, panelChannel, cfg.PanelChannelID)
	assert.Equal(t, pingRole, domain.StringOrEmpty(cfg.PingRoleID))
	assert.Equal(t, categoryID, domain.StringOrEmpty(cfg.TicketCategoryID))
	assert.Equal(t, "Help Desk", domain.StringOrEmpty(cfg.PanelTitle))
	assert.Equal(t, "Press the button to reach us.", domain.StringOrEmpty(cfg.PanelDescription))

	panels := h.platform.Messages(panelChannel)
	require.Len(t, panels, 1)
	assert.Equal(t, "Help Desk", panels[0].Notice.Title)
	require.NotNil(t, panels[0].Notice.Button)
	assert.Equal(t, ActionCreateTicket, panels[0].Notice.Button.ActionID)
	panelID := panels[0].ID

	cfg.PanelTitle = domain.OptionalString("Helpdesk v2")
	require.NoError(t, h.configs.Save(ctx, cfg))
	refreshed, err := h.setupSvc.Refresh(ctx, admin("a"))
	require.NoError(t, err)
	assert.True(t, refreshed.Ephemeral)

	panels = h.platform.Messages(panelChannel)
	require.Len(t, panels, 1)
	assert.Equal(t, panelID, panels[0].ID)
	assert.Equal(t, "Helpdesk v2", panels[0].Notice.Title)

	var saved int
	for _, e := range h.published {
		if e.Type == events.EventGuildConfigSaved {
			saved++
		}
	}
	assert.Equal(t, 1, saved)
}

func TestSetupWizardRerunEditsExistingPanel(t *testing.T) {
	ctx := context.Background()
	h := newSetupHarness(t)

	for run := 0; run < 2; run++ {
		_, err := h.setupSvc.Start(ctx, admin("a"))
		require.NoError(t, err)
		for _, answer := range []string{panelChannel, "none", "none", "none", "none"} {
			h.say(t, "a", answer)
		}
	}
	assert.Contains(t, h.lastReply(t), "Ticket panel updated.")
	panels := h.platform.Messages(panelChannel)
	require.Len(t, panels, 1)
	assert.Equal(t, "Support Tickets", panels[0].Notice.Title)

	cfg, err := h.configs.Get(ctx, testGuild)
	require.NoError(t, err)
	assert.Nil(t, cfg.PingRoleID)
	assert.Nil(t, cfg.TicketCategoryID)
}

func TestSetupInvalidInputRepromptsSameStep(t *testing.T) {
	ctx := context.Background()
	h := newSetupHarness(t)
	h.platform.AddTextChannel(testGuild, "500", "announcements")
	h.platform.Mute("500")
	h.platform.AddTextChannel("g2", "600", "elsewhere")

	_, err := h.setupSvc.Start(ctx, admin("a"))
	require.NoError(t, err)

	for _, bad := range []string{"hello", "<#404>", "<#400>", "400", "<#500>", "<#600>"} {
		h.say(t, "a", bad)
		assert.True(t, strings.HasPrefix(h.lastReply(t), "Error|"), bad)
		assert.Equal(t, session.StepPanelChannel, h.step(t, "a"), bad)
	}

	h.say(t, "a", panelChannel)
	h.say(t, "a", "<@&404>")
	assert.Equal(t, session.StepPingRole, h.step(t, "a"))
	h.say(t, "a", "skip")
	h.say(t, "a", "Archive")
	assert.Equal(t, session.StepCategory, h.step(t, "a"))
	h.say(t, "a", categoryID)
	assert.Equal(t, session.StepTitle, h.step(t, "a"))

	h.say(t, "a", strings.Repeat("x", 257))
	assert.Contains(t, h.lastReply(t), "Title is too long")
	assert.Equal(t, session.StepTitle, h.step(t, "a"))
	h.say(t, "a", strings.Repeat("é", 256))
	assert.Equal(t, session.StepDescription, h.step(t, "a"))

	h.say(t, "a", strings.Repeat("x", 2001))
	assert.Contains(t, h.lastReply(t), "Description is too long")
	assert.Equal(t, session.StepDescription, h.step(t, "a"))

	_, err = h.configs.Get(ctx, testGuild)
	assert.ErrorIs(t, err, domain.ErrGuildConfigNotFound)
}

func TestSetupCancel(t *testing.T) {
	ctx := context.Background()
	h := newSetupHarness(t)
	_, err := h.setupSvc.Start(ctx, admin("a"))
	require.NoError(t, err)
	h.say(t, "a", panelChannel)

	h.say(t, "a", "  CANCEL ")
	assert.Contains(t, h.lastReply(t), "Setup cancelled.")
	_, err = h.sessions.Get(ctx, testGuild, "a")
	assert.ErrorIs(t, err, session.ErrNotFound)

	handled, err := h.setupSvc.HandleMessage(ctx, IncomingMessage{GuildID: testGuild, ChannelID: setupChannel, AuthorID: "a", Content: panelChannel})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestSetupIgnoresUnrelatedMessages(t *testing.T) {
	ctx := context.Background()
	h := newSetupHarness(t)
	_, err := h.setupSvc.Start(ctx, admin("a"))
	require.NoError(t, err)

	for _, msg := range []IncomingMessage{
		{GuildID: testGuild, ChannelID: setupChannel, AuthorID: "someone-else", Content: panelChannel},
		{GuildID: "g2", ChannelID: setupChannel, AuthorID: "a", Content: panelChannel},
		{GuildID: testGuild, ChannelID: setupChannel, AuthorID: "a", AuthorIsBot: true, Content: panelChannel},
		{ChannelID: "dm", AuthorID: "a", Content: panelChannel},
	} {
		handled, err := h.setupSvc.HandleMessage(ctx, msg)
		require.NoError(t, err)
		assert.False(t, handled)
	}
	assert.Equal(t, session.StepPanelChannel, h.step(t, "a"))
}

func TestSetupRequiresAdminOrOwner(t *testing.T) {
	ctx := context.Background()
	h := newSetupHarness(t)

	_, err := h.setupSvc.Start(ctx, member("u1", "support"))
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.setupSvc.View(ctx, member("u1"))
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.setupSvc.Reset(ctx, member("u1"))
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.setupSvc.Refresh(ctx, member("u1"))
	requireCode(t, err, apperrors.CodeForbidden)

	owner := member("o1")
	owner.IsOwner = true
	_, err = h.setupSvc.Start(ctx, owner)
	assert.NoError(t, err)
}

func TestSetupRepliesFallBackToDirectMessage(t *testing.T) {
	ctx := context.Background()
	h := newSetupHarness(t)
	h.platform.Mute(setupChannel)

	_, err := h.setupSvc.Start(ctx, admin("a"))
	require.NoError(t, err)
	h.say(t, "a", panelChannel)

	assert.Empty(t, h.platform.Messages(setupChannel))
	direct := h.platform.Direct("a")
	require.Len(t, direct, 1)
	assert.Contains(t, direct[0].Title, "Step 2")

	// An unreachable admin still advances; the failure is only logged.
	h.platform.BlockDirect("a")
	h.say(t, "a", "none")
	assert.Equal(t, session.StepCategory, h.step(t, "a"))
}

func TestSetupViewResetAndMissingConfig(t *testing.T) {
	ctx := context.Background()
	h := newSetupHarness(t)

	_, err := h.setupSvc.View(ctx, admin("a"))
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = h.setupSvc.Reset(ctx, admin("a"))
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = h.setupSvc.Refresh(ctx, admin("a"))
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.setupSvc.Start(ctx, admin("a"))
	require.NoError(t, err)
	for _, answer := range []string{panelChannel, pingRole, "none", "none", "none"} {
		h.say(t, "a", answer)
	}
	h.platform.Post(panelChannel, "u9", false)

	view, err := h.setupSvc.View(ctx, admin("a"))
	require.NoError(t, err)
	assert.Equal(t, "<#"+panelChannel+">", view.Reply.Fields[0].Value)
	assert.Equal(t, "<@&"+pingRole+">", view.Reply.Fields[1].Value)
	assert.Equal(t, "Not set", view.Reply.Fields[3].Value)

	_, err = h.setupSvc.Reset(ctx, admin("a"))
	require.NoError(t, err)
	_, err = h.configs.Get(ctx, testGuild)
	assert.ErrorIs(t, err, domain.ErrGuildConfigNotFound)

	remaining := h.platform.Messages(panelChannel)
	require.Len(t, remaining, 1)
	assert.Equal(t, "u9", remaining[0].AuthorID)
}

func TestRefreshWithDeletedPanelChannel(t *testing.T) {
	ctx := context.Background()
	h := newSetupHarness(t)
	require.NoError(t, h.configs.Save(ctx, &domain.GuildConfig{GuildID: testGuild, PanelChannelID: "999"}))

	_, err := h.setupSvc.Refresh(ctx, admin("a"))
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestEnsureDefaultPanelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newSetupHarness(t)
	h.platform.Post(panelChannel, "u9", true)

	require.NoError(t, h.setupSvc.EnsureDefaultPanel(ctx, panelChannel))
	require.NoError(t, h.setupSvc.EnsureDefaultPanel(ctx, panelChannel))
	require.NoError(t, h.setupSvc.EnsureDefaultPanel(ctx, ""))

	var fromBot int
	for _, m := range h.platform.Messages(panelChannel) {
		if m.AuthorID == "bot" {
			fromBot++
			assert.Equal(t, "Support Tickets", m.Notice.Title)
		}
	}
	assert.Equal(t, 1, fromBot)
}

func TestExtractID(t *testing.T) {
	assert.Equal(t, "123", extractID("<#123>", channelMentionPattern))
	assert.Equal(t, "456", extractID("<@&456>", roleMentionPattern))
	assert.Equal(t, "789", extractID("use 789 please", channelMentionPattern))
	assert.Empty(t, extractID("nothing here", roleMentionPattern))
}
