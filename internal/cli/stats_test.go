package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	writeStats(&buf,
		domain.TicketStatistics{Total: 4, Open: 3, Closed: 1, Claimed: 1, Unclaimed: 2},
		domain.PeriodStatistics{Days: 7, Total: 2, Open: 1, Closed: 1},
	)
	out := buf.String()
	assert.Contains(t, out, "total:     4\n")
	assert.Contains(t, out, "unclaimed: 2\n")
	assert.Contains(t, out, "last 7 days: 2 created, 1 open, 1 closed\n")
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "stats", "token"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, statsCmd.Flags().Lookup("days"))
	assert.NotNil(t, tokenCmd.Flags().Lookup("subject"))
}
