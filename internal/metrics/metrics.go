package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "relay"

	channelNameLabel = "channel_name"
	endpointLabel    = "endpoint"
)

type Metrics struct {
	Reg             *prometheus.Registry
	RPS             *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ChannelsCreated prometheus.Counter
	MessagesStored  prometheus.Counter
	OnlineUsers     *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Reg: reg,
		RPS: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_per_second",
		}, []string{endpointLabel}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.8, 1, 2},
		}, []string{endpointLabel}),
		ChannelsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_created_total",
		}),
		MessagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_stored_total",
		}),
		OnlineUsers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
		}, []string{channelNameLabel}),
	}

	reg.MustRegister(m.RPS)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.ChannelsCreated)
	reg.MustRegister(m.MessagesStored)
	reg.MustRegister(m.OnlineUsers)

	return m
}
