package gateway

import (
	"encoding/json"
	"strings"
)

// InputError is a client-side mistake: malformed JSON, unknown mode, or
// a missing required field. It always maps to HTTP 400.
type InputError struct {
	Message string
	Detail  string
}

func (e *InputError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// Cultivation methods accepted by the diagnosis mode.
const (
	MethodIndoor     = "Indoor"
	MethodOutdoor    = "Outdoor"
	MethodGreenhouse = "Greenhouse"
)

// Request is the parsed AI gateway request, one concrete type per mode.
// Parsing the union once at the boundary replaces the stringly-typed
// mode switch: an unknown mode can never reach a handler.
type Request interface {
	Mode() string
}

// WakeupRequest keeps a cold deployment warm. It carries nothing and
// must succeed without prompt or image.
type WakeupRequest struct{}

func (WakeupRequest) Mode() string { return "wakeup" }

// Attachment is an optional inline file sent with a chat turn.
type Attachment struct {
	MimeType string
	Data     string // base64
}

// ChatRequest is a coaching conversation turn.
type ChatRequest struct {
	Prompt     string
	History    []Turn
	Attachment *Attachment
	Model      string // optional override
}

func (ChatRequest) Mode() string { return "chat" }

// DiagnosisRequest asks for a structured photo diagnosis.
type DiagnosisRequest struct {
	Prompt     string
	Image      string // base64 JPEG, required
	Strain     string
	Method     string
	Experience string
	Model      string
}

func (DiagnosisRequest) Mode() string { return "diagnosis" }

// InsightRequest asks the strain-genetics expert a plain-text question.
type InsightRequest struct {
	Prompt string
	Model  string
}

func (InsightRequest) Mode() string { return "insight" }

type rawRequest struct {
	Mode       string `json:"mode"`
	Prompt     string `json:"prompt"`
	Image      string `json:"image"`
	History    []Turn `json:"history"`
	Model      string `json:"model"`
	MimeType   string `json:"mimeType"`
	FileData   string `json:"fileData"`
	Strain     string `json:"strain"`
	Method     string `json:"method"`
	Experience string `json:"experience"`
}

// ParseRequest decodes and validates the request body into one of the
// mode variants. All validation happens here, before any side effect.
func ParseRequest(body []byte) (Request, error) {
	var raw rawRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &InputError{Message: "Invalid JSON body", Detail: err.Error()}
	}
	raw.Prompt = strings.TrimSpace(raw.Prompt)

	switch raw.Mode {
	case "wakeup":
		return WakeupRequest{}, nil

	case "chat":
		if raw.Prompt == "" && raw.Image == "" && raw.FileData == "" {
			return nil, &InputError{Message: "Missing required fields: chat requires a prompt or an attachment"}
		}
		return ChatRequest{
			Prompt:     raw.Prompt,
			History:    raw.History,
			Attachment: parseAttachment(raw),
			Model:      raw.Model,
		}, nil

	case "diagnosis":
		if raw.Image == "" {
			return nil, &InputError{Message: "Missing required fields: diagnosis requires an image"}
		}
		return DiagnosisRequest{
			Prompt:     raw.Prompt,
			Image:      raw.Image,
			Strain:     defaultString(raw.Strain, "Unknown"),
			Method:     normalizeMethod(raw.Method),
			Experience: defaultString(raw.Experience, "Beginner"),
			Model:      raw.Model,
		}, nil

	case "insight":
		if raw.Prompt == "" {
			return nil, &InputError{Message: "Missing required fields: insight requires a prompt"}
		}
		return InsightRequest{Prompt: raw.Prompt, Model: raw.Model}, nil

	case "":
		return nil, &InputError{Message: "Missing required fields: mode is required"}

	default:
		return nil, &InputError{Message: "Invalid mode", Detail: raw.Mode}
	}
}

func parseAttachment(raw rawRequest) *Attachment {
	if raw.Image != "" {
		return &Attachment{MimeType: "image/jpeg", Data: raw.Image}
	}
	if raw.FileData != "" && raw.MimeType != "" {
		return &Attachment{MimeType: raw.MimeType, Data: raw.FileData}
	}
	return nil
}

func normalizeMethod(method string) string {
	switch {
	case strings.EqualFold(method, MethodOutdoor):
		return MethodOutdoor
	case strings.EqualFold(method, MethodGreenhouse):
		return MethodGreenhouse
	default:
		return MethodIndoor
	}
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
