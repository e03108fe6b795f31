package model

import "time"

// PushState is the locally held side of a push service subscription: the
// user agent id the push service assigned, the channel and endpoint it
// registered, and the key material needed to decrypt messages.
type PushState struct {
	UAID       string    `json:"uaid"`
	ChannelID  string    `json:"channel_id"`
	Endpoint   string    `json:"endpoint"`
	AuthSecret []byte    `json:"-"`
	PrivateKey []byte    `json:"-"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Subscribed reports whether the state carries a live registration.
func (s *PushState) Subscribed() bool {
	return s != nil && s.Endpoint != "" && len(s.PrivateKey) > 0
}
