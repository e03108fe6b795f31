package autopush

// MessageType is the messageType field of every autopush frame.
type MessageType string

const (
	TypePing         MessageType = "ping"
	TypeAck          MessageType = "ack"
	TypeHello        MessageType = "hello"
	TypeRegister     MessageType = "register"
	TypeUnregister   MessageType = "unregister"
	TypeNotification MessageType = "notification"
)

const (
	StatusOK       = 200
	StatusConflict = 409
)

type message struct {
	Type MessageType `json:"messageType"`
}

type helloRequest struct {
	Type       MessageType `json:"messageType"`
	UAID       string      `json:"uaid"`
	ChannelIDs []string    `json:"channelIDs"`
	UseWebPush bool        `json:"use_webpush,omitempty"`
}

// HelloResponse carries the user agent id the push service assigned.
type HelloResponse struct {
	UAID   string `json:"uaid"`
	Status int    `json:"status"`
}

type registerRequest struct {
	Type      MessageType `json:"messageType"`
	ChannelID string      `json:"channelID"`
	Key       string      `json:"key,omitempty"`
}

// RegisterResponse carries the endpoint application servers post to.
type RegisterResponse struct {
	ChannelID    string `json:"channelID"`
	Status       int    `json:"status"`
	PushEndpoint string `json:"pushEndpoint"`
}

type unregisterRequest struct {
	Type      MessageType `json:"messageType"`
	ChannelID string      `json:"channelID"`
}

type unregisterResponse struct {
	ChannelID string `json:"channelID"`
	Status    int    `json:"status"`
}

// Notification is an encrypted push message. Data is base64url encoded.
type Notification struct {
	ChannelID string            `json:"channelID"`
	Version   string            `json:"version"`
	Data      string            `json:"data"`
	Headers   map[string]string `json:"headers,omitempty"`
}

type ack struct {
	Type    MessageType `json:"messageType"`
	Updates []ackUpdate `json:"updates"`
}

type ackUpdate struct {
	ChannelID string `json:"channelID"`
	Version   string `json:"version"`
}
