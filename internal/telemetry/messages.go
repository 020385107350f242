package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"scraper-console/internal/model"
)

const (
	TypeLog      = "log"
	TypeProgress = "progress"
	TypeResult   = "result"
	TypeError    = "error"
)

// Event is everything the channel delivers: decoded backend messages and
// connection lifecycle notifications. The set of implementations is closed.
type Event interface {
	telemetryEvent()
}

type LogMessage struct {
	Message string
	Level   model.LogLevel
}

type ProgressMessage struct {
	Progress model.ProgressSnapshot
}

type ResultMessage struct {
	Record model.ResultRecord
}

// ErrorMessage is a backend-reported job failure.
type ErrorMessage struct {
	Message string
}

type UnknownMessage struct {
	Type string
	Data json.RawMessage
}

type Connected struct {
	URL     string
	Attempt int
}

type Disconnected struct {
	Err     error
	Attempt int
	RetryIn time.Duration
}

type TransportError struct {
	Err error
}

func (LogMessage) telemetryEvent()      {}
func (ProgressMessage) telemetryEvent() {}
func (ResultMessage) telemetryEvent()   {}
func (ErrorMessage) telemetryEvent()    {}
func (UnknownMessage) telemetryEvent()  {}
func (Connected) telemetryEvent()       {}
func (Disconnected) telemetryEvent()    {}
func (TransportError) telemetryEvent()  {}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type logPayload struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type progressPayload struct {
	Percentage flexInt `json:"percentage"`
	Current    flexInt `json:"current"`
}

type resultPayload struct {
	Index flexInt        `json:"index"`
	Data  map[string]any `json:"data"`
}

type errorPayload struct {
	Message json.RawMessage `json:"message"`
}

// text is the message as a string, or its raw JSON when it is not one.
func (p errorPayload) text() string {
	raw := bytes.TrimSpace(p.Message)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Decode parses one text frame. Unknown types decode to UnknownMessage.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch env.Type {
	case TypeLog:
		var p logPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return LogMessage{Message: p.Message, Level: model.ParseLogLevel(p.Type)}, nil
	case TypeProgress:
		var p progressPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return ProgressMessage{Progress: model.ProgressSnapshot{
			Percentage: int(p.Percentage),
			Current:    int(p.Current),
		}}, nil
	case TypeResult:
		var p resultPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return ResultMessage{Record: recordFromData(int(p.Index), p.Data)}, nil
	case TypeError:
		var p errorPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return ErrorMessage{Message: p.text()}, nil
	default:
		return UnknownMessage{Type: env.Type, Data: env.Data}, nil
	}
}

func decodePayload(env envelope, out any) error {
	if len(bytes.TrimSpace(env.Data)) == 0 {
		return fmt.Errorf("decode %s payload: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}

// Backend payloads use Spanish keys; English aliases are accepted too.
var (
	nameKeys    = []string{"nombre", "name"}
	addressKeys = []string{"direccion", "address"}
	phoneKeys   = []string{"telefono", "phone"}
	ratingKeys  = []string{"rating"}
	reviewKeys  = []string{"reviews", "review_count"}
	statusKeys  = []string{"estado", "status"}
)

func recordFromData(index int, data map[string]any) model.ResultRecord {
	rec := model.ResultRecord{ID: index}
	used := make(map[string]bool)
	take := func(keys []string) (any, bool) {
		for _, k := range keys {
			if v, ok := data[k]; ok && v != nil {
				used[k] = true
				return v, true
			}
		}
		return nil, false
	}

	if v, ok := take(nameKeys); ok {
		rec.Name = stringValue(v)
	}
	if v, ok := take(addressKeys); ok {
		rec.Address = stringValue(v)
	}
	if v, ok := take(phoneKeys); ok {
		rec.Phone = stringValue(v)
	}
	if v, ok := take(ratingKeys); ok {
		if f, ok := floatValue(v); ok {
			rec.Rating = &f
		}
	}
	if v, ok := take(reviewKeys); ok {
		if n, ok := countValue(v); ok {
			rec.ReviewCount = &n
		}
	}
	if v, ok := take(statusKeys); ok {
		rec.Status = stringValue(v)
	}

	for k, v := range data {
		if used[k] || k == "id" {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		rec.Extra[k] = v
	}
	return rec
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func floatValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", "."))
		s = strings.Trim(s, "()")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// countValue reads a review count. Strings may carry thousands separators
// ("1,234", "1.234") and surrounding parentheses.
func countValue(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(math.Round(x)), true
	case string:
		s := strings.Map(func(r rune) rune {
			switch r {
			case ',', '.', ' ', '\u00a0', '(', ')':
				return -1
			}
			return r
		}, x)
		if s == "" {
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// flexInt accepts JSON numbers (rounded) and numeric strings.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*n = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", string(data))
	}
	*n = flexInt(math.Round(f))
	return nil
}
