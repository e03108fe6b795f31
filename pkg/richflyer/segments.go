package richflyer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// MergeSegments combines typed segment maps into one segment set. On a key
// collision the later map wins.
func MergeSegments(strs map[string]string, numbers map[string]float64, booleans map[string]bool, dates map[string]time.Time) map[string]any {
	segments := make(map[string]any, len(strs)+len(numbers)+len(booleans)+len(dates))
	for k, v := range strs {
		segments[k] = v
	}
	for k, v := range numbers {
		segments[k] = v
	}
	for k, v := range booleans {
		segments[k] = v
	}
	for k, v := range dates {
		segments[k] = v
	}
	return segments
}

// ConvertSegments turns segment values into the strings the server stores.
// Timestamps become unix seconds. Values of other types are dropped.
func ConvertSegments(segments map[string]any) map[string]string {
	converted := make(map[string]string, len(segments))
	for k, v := range segments {
		if s, ok := segmentString(v); ok {
			converted[k] = s
		}
	}
	return converted
}

func segmentString(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case time.Time:
		return strconv.FormatInt(v.Unix(), 10), true
	case *time.Time:
		if v == nil {
			return "", false
		}
		return strconv.FormatInt(v.Unix(), 10), true
	default:
		return "", false
	}
}

// UpdateSegments replaces the device's segment set on the server.
func (c *Client) UpdateSegments(ctx context.Context, id Identity, segments map[string]any) error {
	body := struct {
		Segments map[string]string `json:"segments"`
	}{Segments: ConvertSegments(segments)}

	path := func(deviceID string) string {
		return "/v1/devices/" + url.PathEscape(deviceID) + "/segments"
	}
	if err := c.callAuthorized(ctx, id, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("richflyer.UpdateSegments: %w", err)
	}
	return nil
}
