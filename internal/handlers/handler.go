package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"channel-relay/internal"
	"channel-relay/internal/config"
	"channel-relay/internal/gateway"
	"channel-relay/internal/metrics"
	"channel-relay/internal/models"
)

const (
	anonymousID   = "anonymous"
	anonymousName = "Anonymous"
)

type ChannelRelay struct {
	logger   *zap.Logger
	validate *validator.Validate
	cfg      config.Config
	registry *internal.Registry
	presence *internal.PresenceTracker
	history  *internal.HistoryRing
	gateway  *gateway.Pusher
	metrics  *metrics.Metrics
}

func NewChannelRelay(
	logger *zap.Logger,
	validate *validator.Validate,
	cfg config.Config,
	registry *internal.Registry,
	presence *internal.PresenceTracker,
	history *internal.HistoryRing,
	gw *gateway.Pusher,
	m *metrics.Metrics,
) *ChannelRelay {
	return &ChannelRelay{
		logger:   logger,
		validate: validate,
		cfg:      cfg,
		registry: registry,
		presence: presence,
		history:  history,
		gateway:  gw,
		metrics:  m,
	}
}

func (h *ChannelRelay) decode(c *gin.Context, dto any) bool {
	err := json.NewDecoder(c.Request.Body).Decode(dto)
	if err != nil {
		h.logger.Error("request body decode failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}

	err = h.validate.Struct(dto)
	if err != nil {
		h.logger.Error("request validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}

	return true
}

func (h *ChannelRelay) CreateChannel(c *gin.Context) {
	var dto models.CreateChannelRequest
	if !h.decode(c, &dto) {
		return
	}

	code, channelID, err := h.registry.CreateChannel(dto.UserID, dto.UserName)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.metrics.ChannelsCreated.Inc()

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"channelCode": code,
		"channelId":   channelID,
		"message":     "channel created",
	})
}

func (h *ChannelRelay) JoinChannel(c *gin.Context) {
	var dto models.JoinChannelRequest
	if !h.decode(c, &dto) {
		return
	}

	snapshot, err := h.registry.JoinChannel(dto.ChannelCode, dto.UserID, dto.UserName)
	if errors.Is(err, internal.ErrCodeNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "invalid channel code"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"channelId":   snapshot.ChannelID,
		"creatorName": snapshot.CreatorName,
		"members":     snapshot.Members,
		"message":     "joined channel",
	})
}

func (h *ChannelRelay) ChannelInfo(c *gin.Context) {
	summary, err := h.registry.LookupByCode(c.Param("code"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"channelId":   summary.ChannelID,
		"creatorName": summary.CreatorName,
		"memberCount": summary.MemberCount,
		"createdAt":   summary.CreatedAt,
	})
}

// Auth handles the delivery network's subscription handshake. Clients may
// post form-encoded or JSON bodies.
func (h *ChannelRelay) Auth(c *gin.Context) {
	var dto models.AuthRequest
	if err := c.ShouldBind(&dto); err != nil {
		h.logger.Debug("auth body bind failed", zap.Error(err))
	}

	if !h.gateway.Configured() {
		h.logger.Error("subscription auth requested but gateway is not configured")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "server configuration error",
			"message": gateway.ErrNotConfigured.Error(),
		})
		return
	}

	if dto.SocketID == "" || dto.ChannelName == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "missing required parameters",
			"message": "socket_id and channel_name are required",
		})
		return
	}

	if internal.IsPrivateChannel(dto.ChannelName) {
		if dto.UserID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "missing user_id",
				"message": "user_id is required for private channel auth",
			})
			return
		}

		if !h.registry.HasAccess(dto.ChannelName, dto.UserID) {
			h.logger.Warn("channel access denied",
				zap.String("channel", dto.ChannelName),
				zap.String("user", dto.UserID),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access to this channel denied"})
			return
		}

		h.presence.MarkOnline(dto.ChannelName, dto.UserID, dto.UserName)
		h.metrics.OnlineUsers.WithLabelValues(dto.ChannelName).Set(float64(len(h.presence.ListOnline(dto.ChannelName))))
	}

	auth, err := h.gateway.AuthorizeSubscription(dto.SocketID, dto.ChannelName)
	if err != nil {
		h.logger.Error("subscription auth failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authentication error"})
		return
	}

	c.Data(http.StatusOK, "application/json", auth)
}

func (h *ChannelRelay) SendMessage(c *gin.Context) {
	var dto models.SendMessageRequest
	if !h.decode(c, &dto) {
		return
	}

	if internal.IsPrivateChannel(dto.Channel) && !h.registry.HasAccess(dto.Channel, dto.UserID) {
		h.logger.Warn("send denied",
			zap.String("channel", dto.Channel),
			zap.String("user", dto.UserID),
		)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access to send on this channel denied"})
		return
	}

	userID := dto.UserID
	if userID == "" {
		userID = anonymousID
	}
	userName := dto.UserName
	if userName == "" {
		userName = anonymousName
	}

	msg := make(internal.Message, len(dto.Data)+3)
	for k, v := range dto.Data {
		msg[k] = v
	}
	msg["from"] = userID
	msg["user_id"] = userID
	msg["user_name"] = userName

	stored := h.history.Append(dto.Channel, msg)
	h.metrics.MessagesStored.Inc()

	// The message is committed to history; live fan-out is best effort.
	h.gateway.Broadcast(dto.Channel, dto.Event, stored)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "message sent",
		"messageId": stored["id"],
		"timestamp": stored["timestamp"],
	})
}

func (h *ChannelRelay) Messages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	channelName := c.Param("channelName")
	messages, total := h.history.Recent(channelName, limit)

	c.JSON(http.StatusOK, gin.H{
		"channel":   channelName,
		"messages":  messages,
		"total":     total,
		"timestamp": time.Now().UTC(),
	})
}

// ChannelStatus proxies the delivery network's occupancy view of a channel.
func (h *ChannelRelay) ChannelStatus(c *gin.Context) {
	channelName := c.Param("channelName")

	status, err := h.gateway.ChannelStatus(channelName)
	if err != nil {
		h.logger.Error("channel status lookup failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch channel info"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel":   channelName,
		"info":      status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *ChannelRelay) OnlineUsers(c *gin.Context) {
	channelName := c.Param("channelName")
	users := h.presence.ListOnline(channelName)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"channel":     channelName,
		"onlineUsers": users,
		"count":       len(users),
		"timestamp":   time.Now().UTC(),
	})
}

func (h *ChannelRelay) Heartbeat(c *gin.Context) {
	var dto models.HeartbeatRequest
	if !h.decode(c, &dto) {
		return
	}

	h.presence.MarkOnline(dto.Channel, dto.UserID, dto.UserName)
	h.metrics.OnlineUsers.WithLabelValues(dto.Channel).Set(float64(len(h.presence.ListOnline(dto.Channel))))

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "heartbeat received"})
}

func (h *ChannelRelay) Disconnect(c *gin.Context) {
	var dto models.DisconnectRequest
	if !h.decode(c, &dto) {
		return
	}

	h.presence.MarkOffline(dto.Channel, dto.UserID)
	h.metrics.OnlineUsers.WithLabelValues(dto.Channel).Set(float64(len(h.presence.ListOnline(dto.Channel))))

	h.logger.Info("user disconnected",
		zap.String("channel", dto.Channel),
		zap.String("user", dto.UserID),
	)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "user disconnected"})
}

// Webhook receives signed event batches from the delivery network and feeds
// the occupancy events back into presence.
func (h *ChannelRelay) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	wh, err := h.gateway.ParseWebhook(c.Request.Header, body)
	if errors.Is(err, gateway.ErrNotConfigured) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server configuration error"})
		return
	}
	if err != nil {
		h.logger.Error("webhook signature rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	for _, event := range wh.Events {
		switch event.Name {
		case "channel_occupied":
			h.logger.Info("channel occupied", zap.String("channel", event.Channel))
		case "channel_vacated":
			h.logger.Info("channel vacated", zap.String("channel", event.Channel))
			h.presence.ClearChannel(event.Channel)
		case "member_added":
			h.logger.Info("member added",
				zap.String("channel", event.Channel),
				zap.String("user", event.UserID),
			)
		case "member_removed":
			h.logger.Info("member removed",
				zap.String("channel", event.Channel),
				zap.String("user", event.UserID),
			)
			h.presence.MarkOffline(event.Channel, event.UserID)
		default:
			h.logger.Info("unhandled webhook event", zap.String("name", event.Name))
		}
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *ChannelRelay) Health(c *gin.Context) {
	out := gin.H{
		"status":           "OK",
		"timestamp":        time.Now().UTC(),
		"pusherConfigured": h.gateway.Configured(),
		"env":              h.cfg.Env,
	}
	if !h.gateway.Configured() {
		out["warning"] = "pusher environment variables are not configured"
		out["missingVars"] = h.cfg.MissingPusherVars()
	}

	c.JSON(http.StatusOK, out)
}

func (h *ChannelRelay) DebugChannels(c *gin.Context) {
	channels := h.registry.Channels()

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"totalChannels": len(channels),
		"channels":      channels,
		"timestamp":     time.Now().UTC(),
	})
}
