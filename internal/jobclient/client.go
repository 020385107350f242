package jobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"scraper-console/internal/model"
)

type Command string

const (
	CommandStart  Command = "start"
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
	CommandStop   Command = "stop"
	CommandExport Command = "export"
)

const RequestIDHeader = "X-Request-ID"

// ErrTransport marks failures where no usable answer came back from the
// backend: network errors and malformed success bodies.
var ErrTransport = errors.New("backend unreachable")

// RejectedError is a non-2xx answer from the backend.
type RejectedError struct {
	Command Command
	Status  int
	Detail  string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s rejected: status %d", e.Command, e.Status)
	}
	return fmt.Sprintf("%s rejected: %s", e.Command, e.Detail)
}

type Ack struct {
	Message   string
	RequestID string
}

type ExportResult struct {
	Data        []byte
	ContentType string
	RequestID   string
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     arbor.ILogger
}

// Client sends lifecycle commands. It keeps no job state of its own.
type Client struct {
	base   string
	http   *http.Client
	logger arbor.ILogger
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api base url is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url: %q", opts.BaseURL)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Client{base: base, http: client, logger: logger}, nil
}

func (c *Client) BaseURL() string { return c.base }

func (c *Client) Start(ctx context.Context, params model.JobParameters) (Ack, error) {
	if err := params.Validate(); err != nil {
		return Ack{}, &RejectedError{Command: CommandStart, Detail: err.Error()}
	}
	return c.command(ctx, CommandStart, params)
}

func (c *Client) Pause(ctx context.Context) (Ack, error) {
	return c.command(ctx, CommandPause, nil)
}

func (c *Client) Resume(ctx context.Context) (Ack, error) {
	return c.command(ctx, CommandResume, nil)
}

// Stop is sent regardless of the local state; the backend acknowledges a
// stop with no job running.
func (c *Client) Stop(ctx context.Context) (Ack, error) {
	return c.command(ctx, CommandStop, nil)
}

type exportRequest struct {
	Category    string `json:"rubro"`
	Region      string `json:"departamento"`
	Country     string `json:"pais"`
	TargetCount int    `json:"cantidad"`
}

// Export asks the backend for the spreadsheet of the given parameters.
func (c *Client) Export(ctx context.Context, params model.JobParameters) (ExportResult, error) {
	body := exportRequest{
		Category:    params.Category,
		Region:      params.Region,
		Country:     params.Country,
		TargetCount: params.TargetCount,
	}
	raw, resp, reqID, err := c.post(ctx, CommandExport, body)
	if err != nil {
		return ExportResult{RequestID: reqID}, err
	}
	if len(raw) == 0 {
		return ExportResult{RequestID: reqID}, fmt.Errorf("%w: export returned an empty body", ErrTransport)
	}
	return ExportResult{
		Data:        raw,
		ContentType: resp.Header.Get("Content-Type"),
		RequestID:   reqID,
	}, nil
}

func (c *Client) command(ctx context.Context, cmd Command, body any) (Ack, error) {
	raw, _, reqID, err := c.post(ctx, cmd, body)
	if err != nil {
		return Ack{RequestID: reqID}, err
	}
	ack := Ack{RequestID: reqID}
	if len(bytes.TrimSpace(raw)) == 0 {
		return ack, nil
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ack, fmt.Errorf("%w: decode %s response: %v", ErrTransport, cmd, err)
	}
	ack.Message = payload.Message
	return ack, nil
}

func (c *Client) post(ctx context.Context, cmd Command, body any) ([]byte, *http.Response, string, error) {
	reqID := uuid.New().String()
	endpoint := c.base + "/scraper/" + string(cmd)
	start := time.Now()

	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return nil, nil, reqID, fmt.Errorf("encode %s request: %w", cmd, err)
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return nil, nil, reqID, fmt.Errorf("build %s request: %w", cmd, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, reqID)

	c.logger.Debug().Str("request_id", reqID).Str("command", string(cmd)).Str("url", endpoint).Msg("sending job command")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("request_id", reqID).Str("command", string(cmd)).Msg("job command failed to send")
		return nil, nil, reqID, fmt.Errorf("%w: %s: %v", ErrTransport, cmd, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, reqID, fmt.Errorf("%w: read %s response: %v", ErrTransport, cmd, err)
	}

	c.logger.Info().
		Str("request_id", reqID).
		Str("command", string(cmd)).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("job command answered")

	if resp.StatusCode/100 != 2 {
		return nil, resp, reqID, &RejectedError{Command: cmd, Status: resp.StatusCode, Detail: rejectionDetail(raw)}
	}
	return raw, resp, reqID, nil
}

// rejectionDetail prefers the {"detail": ...} field of an error body and
// falls back to the raw text.
func rejectionDetail(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(trimmed, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, payload.Detail); err == nil {
			return buf.String()
		}
		return string(payload.Detail)
	}
	return string(trimmed)
}
