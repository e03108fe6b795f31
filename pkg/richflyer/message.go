package richflyer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
)

// PostMessageOptions are the optional parts of a message post.
type PostMessageOptions struct {
	// Variables are substituted into the message template on the server.
	Variables map[string]string
	// StandbyMinutes delays delivery when set.
	StandbyMinutes *int
}

type postMessageRequest struct {
	Events      []string     `json:"events"`
	Variables   []variable   `json:"variables,omitempty"`
	StandbyTime *standbyTime `json:"standby_time,omitempty"`
}

type variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type standbyTime struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type postMessageResponse struct {
	IDs []struct {
		OneshotPostingID string `json:"oneshot_posting_id"`
	} `json:"ids"`
}

// PostMessage asks the server to send the messages bound to the given
// events to this device. It returns one message id per event, in the order
// the server lists them.
func (c *Client) PostMessage(ctx context.Context, id Identity, events []string, opts PostMessageOptions) ([]string, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	body := postMessageRequest{
		Events:    events,
		Variables: flattenVariables(opts.Variables),
	}
	if opts.StandbyMinutes != nil {
		body.StandbyTime = &standbyTime{Value: *opts.StandbyMinutes, Unit: "m"}
	}

	path := func(deviceID string) string {
		return "/v1/devices/" + url.PathEscape(deviceID) + "/oneshot-posting"
	}
	var resp postMessageResponse
	if err := c.callAuthorized(ctx, id, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("richflyer.PostMessage: %w", err)
	}
	if resp.IDs == nil {
		return nil, fmt.Errorf("richflyer.PostMessage: missing ids: %w", ErrMalformedResponse)
	}

	ids := make([]string, 0, len(resp.IDs))
	for _, v := range resp.IDs {
		ids = append(ids, v.OneshotPostingID)
	}
	return ids, nil
}

// CancelMessage cancels a message previously returned by PostMessage.
func (c *Client) CancelMessage(ctx context.Context, id Identity, eventPostID string) error {
	if eventPostID == "" {
		return ErrNoEventPostID
	}

	path := func(deviceID string) string {
		return "/v1/devices/" + url.PathEscape(deviceID) + "/oneshot-posting/" + url.PathEscape(eventPostID)
	}
	if err := c.callAuthorized(ctx, id, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("richflyer.CancelMessage: %w", err)
	}
	return nil
}

// flattenVariables returns the variables as key/value pairs sorted by key.
func flattenVariables(vars map[string]string) []variable {
	if len(vars) == 0 {
		return nil
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]variable, 0, len(keys))
	for _, k := range keys {
		out = append(out, variable{Key: k, Value: vars[k]})
	}
	return out
}
