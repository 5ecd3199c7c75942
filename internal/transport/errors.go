package transport

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrEthical07/goSession/apierr"
)

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type detailItem struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

// ParseError turns a non-2xx reply into a KindServer error. The message comes from
// the JSON body when it has one; otherwise a generic message is used. Parsing never
// fails outward.
func ParseError(status int, body []byte) *apierr.Error {
	msg := messageFromBody(body)
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}
	var details []byte
	if len(body) > 0 {
		details = append([]byte(nil), body...)
	}
	return apierr.Server(status, msg, details)
}

func messageFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if msg := detailMessage(parsed.Detail); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(parsed.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(parsed.Error)
}

// detailMessage handles `"detail": "text"`, `"detail": {"msg": ...}` and the list of
// field errors sent on request validation failures.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var one detailItem
	if err := json.Unmarshal(raw, &one); err == nil {
		return firstNonEmpty(one.Msg, one.Message)
	}

	var many []detailItem
	if err := json.Unmarshal(raw, &many); err == nil {
		msgs := make([]string, 0, len(many))
		for _, item := range many {
			if m := firstNonEmpty(item.Msg, item.Message); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
