package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microbank/internal/economy"
)

var (
	_ economy.Notifier = Log{}
	_ economy.Notifier = (*Discord)(nil)
)

func TestParseWebhookURL(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/1234/abcd-efg")
	require.NoError(t, err)
	assert.Equal(t, "1234", id)
	assert.Equal(t, "abcd-efg", token)

	_, _, err = parseWebhookURL("https://discord.com/api/channels/1234")
	require.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	require.NoError(t, Log{}.Notify(context.Background(), "Order #1", "alice ordered Pen"))
}
