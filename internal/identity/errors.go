// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
)

// # Error Payloads

// PayloadKind discriminates the shapes an identity error body can take.
type PayloadKind int

const (
	PayloadEmpty PayloadKind = iota
	PayloadString
	PayloadList
	PayloadObject
	PayloadRaw
)

// ErrorPayload is the normalized body of a non-2xx identity response.
//
// The endpoint reports errors as {"detail": "..."}, {"detail": [{"msg": ...}]}
// or {"detail": {"message": ..., "action": ...}}. The body is parsed once,
// right after the call, and every caller reads the normalized form.
type ErrorPayload struct {
	Kind PayloadKind

	// Text holds the string detail, or the raw body for PayloadRaw.
	Text string

	// Items holds the messages of a validation list.
	Items []string

	// Object fields of a structured detail.
	Message  string
	Action   string
	WhatsApp string
	UserName string
}

// objectDetail mirrors the structured detail of the verification gate.
type objectDetail struct {
	Message  string `json:"message"`
	Error    string `json:"error"`
	Action   string `json:"action"`
	WhatsApp string `json:"whatsapp"`
	UserName string `json:"user_name"`
}

// ParseErrorPayload classifies an error body. It never fails.
func ParseErrorPayload(body []byte) ErrorPayload {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ErrorPayload{Kind: PayloadEmpty}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		var text string
		if json.Unmarshal(body, &text) == nil {
			return ErrorPayload{Kind: PayloadString, Text: text}
		}
		return ErrorPayload{Kind: PayloadRaw, Text: string(body)}
	}

	if detail, ok := envelope["detail"]; ok {
		return parseDetail(detail)
	}

	// Some routes answer with {"message": ...} or {"error": ...} instead of detail.
	for _, key := range []string{"message", "error"} {
		var text string
		if raw, ok := envelope[key]; ok && json.Unmarshal(raw, &text) == nil && text != "" {
			return ErrorPayload{Kind: PayloadString, Text: text}
		}
	}

	return ErrorPayload{Kind: PayloadRaw, Text: string(body)}
}

func parseDetail(detail json.RawMessage) ErrorPayload {
	var text string
	if json.Unmarshal(detail, &text) == nil {
		return ErrorPayload{Kind: PayloadString, Text: text}
	}

	var list []json.RawMessage
	if json.Unmarshal(detail, &list) == nil {
		items := make([]string, 0, len(list))
		for _, raw := range list {
			var item string
			if json.Unmarshal(raw, &item) == nil {
				items = append(items, item)
				continue
			}
			var entry struct {
				Msg string `json:"msg"`
			}
			if json.Unmarshal(raw, &entry) == nil && entry.Msg != "" {
				items = append(items, entry.Msg)
			}
		}
		return ErrorPayload{Kind: PayloadList, Items: items}
	}

	var object objectDetail
	if json.Unmarshal(detail, &object) == nil {
		message := object.Message
		if message == "" {
			message = object.Error
		}
		if message == "" {
			message = string(detail)
		}
		return ErrorPayload{
			Kind:     PayloadObject,
			Message:  message,
			Action:   object.Action,
			WhatsApp: object.WhatsApp,
			UserName: object.UserName,
		}
	}

	return ErrorPayload{Kind: PayloadRaw, Text: string(detail)}
}

// String folds every shape into one display sentence.
func (p ErrorPayload) String() string {
	switch p.Kind {
	case PayloadString, PayloadRaw:
		return p.Text
	case PayloadList:
		if len(p.Items) == 0 {
			return "Validation error"
		}
		return strings.Join(p.Items, " | ")
	case PayloadObject:
		return p.Message
	default:
		return ""
	}
}

// # Remote Errors

// RemoteError is a non-2xx answer of the identity endpoint.
type RemoteError struct {
	Operation string
	Status    int
	Payload   ErrorPayload
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("identity_%s_status_%d: %s", e.Operation, e.Status, e.Payload.String())
}

// Message returns the display sentence, or fallback when the body carried none.
func (e *RemoteError) Message(fallback string) string {
	if msg := e.Payload.String(); msg != "" {
		return msg
	}
	return fallback
}

// RequiresVerification reports whether the answer routes to the verification gate.
//
// Any of three signals qualifies: HTTP 422, an explicit verify_whatsapp action,
// or a message mentioning the messaging channel.
func (e *RemoteError) RequiresVerification() bool {
	if e.Status == http.StatusUnprocessableEntity {
		return true
	}
	if e.Payload.Action == apperr.ActionVerifyWhatsApp {
		return true
	}

	message := strings.ToLower(e.Payload.String())
	return strings.Contains(message, "whatsapp") || strings.Contains(message, "verificado")
}
