package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const (
	maxURLBytes       = 2048
	maxEventTypeBytes = 64
	maxEventDataBytes = 8 << 10

	DefaultEventType  = "pageview"
	NoscriptEventType = "noscript_pageview"
)

// Payload is the tracking request body as sent by the beacon. Both the
// current camelCase names and the older snake_case names are accepted.
type Payload struct {
	SiteID       string `json:"siteId"`
	LegacySiteID string `json:"site_id"`

	URL     string `json:"url"`
	PageURL string `json:"page_url"`

	Referrer string `json:"referrer"`

	UserAgent       string `json:"userAgent"`
	LegacyUserAgent string `json:"user_agent"`

	ScreenWidth      *int   `json:"screenWidth"`
	ScreenHeight     *int   `json:"screenHeight"`
	ScreenResolution string `json:"screen_resolution"`

	Language string `json:"language"`

	VisitorID       string `json:"visitorId"`
	LegacyVisitorID string `json:"visitor_id"`
	SessionID       string `json:"sessionId"`
	LegacySessionID string `json:"session_id"`

	EventType       string          `json:"eventType"`
	LegacyEventType string          `json:"event_type"`
	EventData       json.RawMessage `json:"eventData"`
	LegacyEventData json.RawMessage `json:"event_data"`
}

// Event is the canonical record produced from a Payload. Optional fields are
// empty strings when absent. The field tag is the name reported in a
// ValidationError.
type Event struct {
	SiteID           string `field:"siteId" validate:"required"`
	PageURL          string `field:"url" validate:"required,max=2048"`
	Referrer         string `field:"referrer" validate:"max=2048"`
	UserAgent        string `field:"userAgent" validate:"max=2048"`
	ScreenResolution string `field:"screen_resolution" validate:"max=256"`
	Language         string `field:"language" validate:"max=256"`
	VisitorID        string `field:"visitorId" validate:"max=256"`
	SessionID        string `field:"sessionId" validate:"max=256"`
	EventType        string `field:"eventType" validate:"required,max=64"`
	EventData        string `field:"eventData"`
}

var eventValidator = newEventValidator()

func newEventValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("field")
	})
	return v
}

// ValidationError reports a payload that cannot be stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ParsePayload decodes a JSON body. Unknown fields are ignored.
func ParsePayload(body []byte) (Payload, error) {
	var p Payload
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return p, invalid("", "request body is empty")
	}
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return p, invalid("", "request body must be a JSON object: %v", err)
	}
	return p, nil
}

// Normalize resolves field aliases, applies defaults and enforces size
// limits. headerUA is used when the payload carries no user agent.
func Normalize(p Payload, headerUA string) (Event, error) {
	ev := Event{
		SiteID:    strings.TrimSpace(firstNonEmpty(p.SiteID, p.LegacySiteID)),
		PageURL:   strings.TrimSpace(firstNonEmpty(p.URL, p.PageURL)),
		Referrer:  strings.TrimSpace(p.Referrer),
		UserAgent: strings.TrimSpace(firstNonEmpty(p.UserAgent, p.LegacyUserAgent, headerUA)),
		Language:  strings.TrimSpace(p.Language),
		VisitorID: strings.TrimSpace(firstNonEmpty(p.VisitorID, p.LegacyVisitorID)),
		SessionID: strings.TrimSpace(firstNonEmpty(p.SessionID, p.LegacySessionID)),
		EventType: strings.TrimSpace(firstNonEmpty(p.EventType, p.LegacyEventType)),
	}

	if ev.EventType == "" {
		ev.EventType = DefaultEventType
	}
	if len(ev.UserAgent) > maxURLBytes {
		ev.UserAgent = ev.UserAgent[:maxURLBytes]
	}
	switch {
	case strings.TrimSpace(p.ScreenResolution) != "":
		ev.ScreenResolution = strings.TrimSpace(p.ScreenResolution)
	case p.ScreenWidth != nil && p.ScreenHeight != nil:
		ev.ScreenResolution = strconv.Itoa(*p.ScreenWidth) + "x" + strconv.Itoa(*p.ScreenHeight)
	}
	if err := validateEvent(ev); err != nil {
		return Event{}, err
	}

	data, err := compactEventData(firstRaw(p.EventData, p.LegacyEventData))
	if err != nil {
		return Event{}, err
	}
	ev.EventData = data
	return ev, nil
}

// validateEvent reports the first failing field in declaration order.
func validateEvent(ev Event) error {
	err := eventValidator.Struct(ev)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate event: %w", err)
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "is required")
	case "max":
		return invalid(fe.Field(), "must be at most %s characters", fe.Param())
	default:
		return invalid(fe.Field(), "failed %s validation", fe.Tag())
	}
}

func compactEventData(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", invalid("eventData", "must be valid JSON")
	}
	if buf.Len() > maxEventDataBytes {
		return "", invalid("eventData", "must be at most %d bytes", maxEventDataBytes)
	}
	return buf.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(bytes.TrimSpace(v)) > 0 {
			return v
		}
	}
	return nil
}
