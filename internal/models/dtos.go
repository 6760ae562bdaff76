package models

type CreateChannelRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	UserName string `json:"user_name" validate:"required"`
}

type JoinChannelRequest struct {
	ChannelCode string `json:"channelCode" validate:"required"`
	UserID      string `json:"user_id" validate:"required"`
	UserName    string `json:"user_name" validate:"required"`
}

type AuthRequest struct {
	SocketID    string `json:"socket_id" form:"socket_id"`
	ChannelName string `json:"channel_name" form:"channel_name"`
	UserID      string `json:"user_id" form:"user_id"`
	UserName    string `json:"user_name" form:"user_name"`
}

type SendMessageRequest struct {
	Channel  string         `json:"channel" validate:"required"`
	Event    string         `json:"event" validate:"required"`
	Data     map[string]any `json:"data" validate:"required"`
	UserID   string         `json:"user_id"`
	UserName string         `json:"user_name"`
}

type HeartbeatRequest struct {
	Channel  string `json:"channel" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
	UserName string `json:"user_name"`
}

type DisconnectRequest struct {
	Channel string `json:"channel" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
}
