package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"channel-relay/internal"
	"channel-relay/internal/config"
	"channel-relay/internal/gateway"
	"channel-relay/internal/handlers"
	"channel-relay/internal/loggers"
	"channel-relay/internal/metrics"
)

func main() {
	logger, err := loggers.NewZap()
	if err != nil {
		log.Panic(err)
	}

	cfg := config.Load()
	if !cfg.PusherConfigured() {
		logger.Warn("pusher credentials missing, broadcast and auth are degraded",
			zap.Strings("missing", cfg.MissingPusherVars()),
		)
	}

	validate := validator.New()
	m := metrics.New()

	registry := internal.NewRegistry(logger)
	presence := internal.NewPresenceTracker(logger)
	history := internal.NewHistoryRing(logger)
	gw := gateway.New(cfg, logger)

	handler := handlers.NewChannelRelay(logger, validate, cfg, registry, presence, history, gw, m)

	engine := gin.New()

	engine.Use(func(c *gin.Context) {
		c.Next()
		for _, err := range c.Errors {
			logger.Error(err.Error())
		}
	})

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	engine.Use(cors.New(corsConfig))

	engine.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RPS.WithLabelValues(endpoint).Inc()
		m.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, map[string]string{"info": "pong"})
	})

	engine.POST("/create-channel", handler.CreateChannel)
	engine.POST("/join-channel", handler.JoinChannel)
	engine.GET("/channel-info/:code", handler.ChannelInfo)
	engine.POST("/pusher/auth", handler.Auth)
	engine.POST("/pusher/webhook", handler.Webhook)
	engine.POST("/send-message", handler.SendMessage)
	engine.GET("/messages/:channelName", handler.Messages)
	engine.GET("/channel/:channelName", handler.ChannelStatus)
	engine.GET("/online-users/:channelName", handler.OnlineUsers)
	engine.POST("/user-heartbeat", handler.Heartbeat)
	engine.POST("/user-disconnect", handler.Disconnect)
	engine.GET("/health", handler.Health)
	engine.GET("/debug/channels", handler.DebugChannels)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Reg, promhttp.HandlerOpts{})))

	g := new(errgroup.Group)

	g.Go(func() error {
		logger.Info("server starting", zap.String("port", cfg.Port))
		return engine.Run(":" + cfg.Port)
	})

	if cfg.PresenceTTL > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.PresenceTTL)
			defer ticker.Stop()
			for range ticker.C {
				presence.Sweep(cfg.PresenceTTL)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
