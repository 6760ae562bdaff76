package gateway_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"channel-relay/internal/config"
	"channel-relay/internal/gateway"
)

func configuredCfg() config.Config {
	return config.Config{
		PusherAppID:   "123456",
		PusherKey:     "app-key",
		PusherSecret:  "app-secret",
		PusherCluster: "mt1",
	}
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestConfigured(t *testing.T) {
	assert.False(t, gateway.New(config.Config{}, zap.NewNop()).Configured())
	assert.True(t, gateway.New(configuredCfg(), zap.NewNop()).Configured())

	partial := configuredCfg()
	partial.PusherSecret = ""
	assert.False(t, gateway.New(partial, zap.NewNop()).Configured())
}

func TestUnconfiguredCallsDegrade(t *testing.T) {
	g := gateway.New(config.Config{}, zap.NewNop())

	_, err := g.AuthorizeSubscription("1234.5678", "private-channel-1-abc")
	require.ErrorIs(t, err, gateway.ErrNotConfigured)

	_, err = g.ChannelStatus("private-channel-1-abc")
	require.ErrorIs(t, err, gateway.ErrNotConfigured)

	_, err = g.ParseWebhook(http.Header{}, []byte("{}"))
	require.ErrorIs(t, err, gateway.ErrNotConfigured)

	// Broadcast without credentials is a logged skip, never a panic or block.
	g.Broadcast("private-channel-1-abc", "client-message", map[string]any{"text": "hi"})
	g.Wait()
}

func TestAuthorizeSubscription_SignsSocket(t *testing.T) {
	g := gateway.New(configuredCfg(), zap.NewNop())

	auth, err := g.AuthorizeSubscription("1234.5678", "private-channel-1-abc")
	require.NoError(t, err)
	assert.Contains(t, string(auth), "app-key:")
}

func TestParseWebhook(t *testing.T) {
	g := gateway.New(configuredCfg(), zap.NewNop())

	body := `{"time_ms":1700000000000,"events":[{"name":"channel_vacated","channel":"private-channel-1-abc"}]}`

	header := http.Header{}
	header.Set("X-Pusher-Key", "app-key")
	header.Set("X-Pusher-Signature", sign("app-secret", body))

	wh, err := g.ParseWebhook(header, []byte(body))
	require.NoError(t, err)
	require.Len(t, wh.Events, 1)
	assert.Equal(t, "channel_vacated", wh.Events[0].Name)
	assert.Equal(t, "private-channel-1-abc", wh.Events[0].Channel)
}

func TestParseWebhook_BadSignature(t *testing.T) {
	g := gateway.New(configuredCfg(), zap.NewNop())

	body := `{"time_ms":1,"events":[]}`
	header := http.Header{}
	header.Set("X-Pusher-Key", "app-key")
	header.Set("X-Pusher-Signature", sign("wrong-secret", body))

	_, err := g.ParseWebhook(header, []byte(body))
	assert.Error(t, err)
}
