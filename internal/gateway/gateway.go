// Package gateway wraps the Pusher Channels HTTP API: subscription
// authorization, event broadcast, occupancy lookup, and webhook verification.
// The rest of the service treats it as fire-and-forget for broadcasts; a
// failed trigger never fails the request that recorded the message.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	pusher "github.com/pusher/pusher-http-go/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"channel-relay/internal/config"
)

var ErrNotConfigured = errors.New("pusher credentials are not configured")

const (
	maxTriggerRPS    = 100
	broadcastTimeout = 10 * time.Second
)

type Pusher struct {
	client  *pusher.Client
	log     *zap.Logger
	limiter *rate.Limiter
	tasks   *errgroup.Group
}

// New builds the gateway from config. With any credential missing the client
// stays nil and every call reports ErrNotConfigured; the service keeps
// serving in that degraded state.
func New(cfg config.Config, log *zap.Logger) *Pusher {
	out := &Pusher{
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(maxTriggerRPS), 2*maxTriggerRPS),
		tasks:   new(errgroup.Group),
	}

	if cfg.PusherConfigured() {
		out.client = &pusher.Client{
			AppID:   cfg.PusherAppID,
			Key:     cfg.PusherKey,
			Secret:  cfg.PusherSecret,
			Cluster: cfg.PusherCluster,
			Secure:  true,
		}
	}

	return out
}

func (g *Pusher) Configured() bool {
	return g.client != nil
}

// AuthorizeSubscription produces the signed auth payload a client hands back
// to the delivery network when subscribing to a private channel.
func (g *Pusher) AuthorizeSubscription(socketID, channelName string) ([]byte, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	params := url.Values{
		"socket_id":    {socketID},
		"channel_name": {channelName},
	}
	return g.client.AuthorizePrivateChannel([]byte(params.Encode()))
}

// Broadcast fans the event out asynchronously. The caller has already
// committed the message to history, so trigger failures are only logged.
func (g *Pusher) Broadcast(channelName, eventName string, data any) {
	if g.client == nil {
		g.log.Warn("broadcast skipped, gateway not configured",
			zap.String("channel", channelName),
			zap.String("event", eventName),
		)
		return
	}

	g.tasks.Go(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
		defer cancel()

		if err := g.limiter.Wait(ctx); err != nil {
			g.log.Warn("broadcast limiter cancelled", zap.String("reason", err.Error()))
			return nil
		}

		if status, err := g.ChannelStatus(channelName); err == nil {
			g.log.Info("broadcasting to channel",
				zap.String("channel", channelName),
				zap.String("event", eventName),
				zap.Int("subscribers", status.SubscriptionCount),
			)
		}

		if err := g.client.Trigger(channelName, eventName, data); err != nil {
			g.log.Error("broadcast failed",
				zap.String("channel", channelName),
				zap.String("event", eventName),
				zap.Error(err),
			)
		}
		return nil
	})
}

// ChannelStatus asks the delivery network about a channel's occupancy.
func (g *Pusher) ChannelStatus(channelName string) (*pusher.Channel, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	info := "subscription_count"
	return g.client.Channel(channelName, pusher.ChannelParams{Info: &info})
}

// ParseWebhook verifies the keyed-hash signature over the raw body and
// decodes the event batch. A signature mismatch surfaces as an error.
func (g *Pusher) ParseWebhook(header http.Header, body []byte) (*pusher.Webhook, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}
	return g.client.Webhook(header, body)
}

// Wait blocks until in-flight broadcasts finish. Used on shutdown and in
// tests.
func (g *Pusher) Wait() {
	_ = g.tasks.Wait()
}
