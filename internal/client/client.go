package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/benedict2310/slimlytics/internal/transport"
)

// The transport replaces scheme and host, so this only names the target.
const defaultBaseURL = "http://slimlyticsd"

type APIClient struct {
	transport transport.Transport
	baseURL   string
	actor     string
	token     string
}

func New(tr transport.Transport) *APIClient {
	actor := strings.TrimSpace(os.Getenv("USER"))
	if actor == "" {
		actor = "slimctl"
	}
	return &APIClient{transport: tr, baseURL: defaultBaseURL, actor: actor}
}

// NewWithAuth sends token as a bearer credential. A non-empty actor replaces
// the $USER default in X-Actor.
func NewWithAuth(tr transport.Transport, actor, token string) *APIClient {
	c := New(tr)
	if actor = strings.TrimSpace(actor); actor != "" {
		c.actor = actor
	}
	c.token = strings.TrimSpace(token)
	return c
}

// Window bounds a stats query. Empty fields leave the server defaults.
type Window struct {
	Start string
	End   string
}

func (w Window) values() url.Values {
	q := url.Values{}
	if v := strings.TrimSpace(w.Start); v != "" {
		q.Set("start", v)
	}
	if v := strings.TrimSpace(w.End); v != "" {
		q.Set("end", v)
	}
	return q
}

func (c *APIClient) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	return out, c.get(ctx, "/health", nil, &out)
}

func (c *APIClient) Version(ctx context.Context) (VersionResponse, error) {
	var out VersionResponse
	return out, c.get(ctx, "/version", nil, &out)
}

func (c *APIClient) ListSites(ctx context.Context) (SitesResponse, error) {
	var out SitesResponse
	return out, c.get(ctx, "/api/sites", nil, &out)
}

func (c *APIClient) GetSite(ctx context.Context, id string) (Site, error) {
	var out Site
	return out, c.get(ctx, sitePath(id), nil, &out)
}

func (c *APIClient) CreateSite(ctx context.Context, name, domain string) (Site, error) {
	var out Site
	err := c.send(ctx, http.MethodPost, "/api/sites", SiteRequest{Name: &name, Domain: &domain}, &out)
	return out, err
}

func (c *APIClient) UpdateSite(ctx context.Context, id string, update SiteRequest) (Site, error) {
	var out Site
	err := c.send(ctx, http.MethodPut, sitePath(id), update, &out)
	return out, err
}

func (c *APIClient) DeleteSite(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, sitePath(id), nil, nil)
}

func (c *APIClient) GetStats(ctx context.Context, siteID string, w Window) (Snapshot, error) {
	var out Snapshot
	return out, c.get(ctx, statsPath(siteID, ""), w.values(), &out)
}

// GetTimeSeries asks for the last days days when days > 0 and w has no start.
func (c *APIClient) GetTimeSeries(ctx context.Context, siteID string, w Window, days int) (TimeSeries, error) {
	q := w.values()
	if days > 0 && q.Get("start") == "" {
		q.Set("days", strconv.Itoa(days))
	}
	var out TimeSeries
	return out, c.get(ctx, statsPath(siteID, "/timeseries"), q, &out)
}

func (c *APIClient) GetRealtime(ctx context.Context, siteID string) (RealtimeResponse, error) {
	var out RealtimeResponse
	return out, c.get(ctx, statsPath(siteID, "/realtime"), nil, &out)
}

func (c *APIClient) GetRecentVisitors(ctx context.Context, siteID string, w Window, limit int) (RecentVisitorsResponse, error) {
	q := w.values()
	setLimit(q, limit)
	var out RecentVisitorsResponse
	return out, c.get(ctx, statsPath(siteID, "/recent-visitors"), q, &out)
}

func (c *APIClient) GetSearchQueries(ctx context.Context, siteID string, w Window, limit int) (SearchQueriesResponse, error) {
	q := w.values()
	setLimit(q, limit)
	var out SearchQueriesResponse
	return out, c.get(ctx, statsPath(siteID, "/search-queries"), q, &out)
}

// ClearData deletes a site's events for rangeName (today, 7days, 30days,
// all). An empty rangeName sends no body, which the server treats as all.
func (c *APIClient) ClearData(ctx context.Context, siteID, rangeName string) (ClearDataResponse, error) {
	var body any
	if rangeName = strings.TrimSpace(rangeName); rangeName != "" {
		body = ClearDataRequest{Range: rangeName}
	}
	var out ClearDataResponse
	err := c.send(ctx, http.MethodDelete, statsPath(siteID, "/data"), body, &out)
	return out, err
}

// GetAuditLog fetches one page of audit entries.
func (c *APIClient) GetAuditLog(ctx context.Context, query AuditQuery) (AuditLogResponse, error) {
	q := url.Values{}
	if v := strings.TrimSpace(query.Site); v != "" {
		q.Set("site", v)
	}
	if v := strings.TrimSpace(query.Operation); v != "" {
		q.Set("operation", v)
	}
	setLimit(q, query.Limit)
	if query.Offset > 0 {
		q.Set("offset", strconv.Itoa(query.Offset))
	}
	var out AuditLogResponse
	return out, c.get(ctx, "/api/audit", q, &out)
}

func sitePath(id string) string {
	return "/api/sites/" + url.PathEscape(strings.TrimSpace(id))
}

func statsPath(siteID, suffix string) string {
	return "/api/stats/" + url.PathEscape(strings.TrimSpace(siteID)) + suffix
}

func setLimit(q url.Values, limit int) {
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
}

func (c *APIClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *APIClient) send(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s %s payload: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Actor", c.actor)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *APIClient) do(req *http.Request, out any) error {
	resp, err := c.transport.Do(req.Context(), req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	return nil
}

// APIError is a non-2xx answer from slimlyticsd.
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	switch e.StatusCode {
	case http.StatusBadRequest:
		return "invalid request: " + msg
	case http.StatusUnauthorized:
		return "unauthorized: " + msg + " (pass --token or set SLIMLYTICS_TOKEN)"
	case http.StatusNotFound:
		return "not found: " + msg
	case http.StatusConflict:
		return "conflict: " + msg
	case http.StatusTooManyRequests:
		return "rate limited: " + msg
	case http.StatusServiceUnavailable:
		return "server unavailable: " + msg
	}
	if e.StatusCode >= 500 {
		return fmt.Sprintf("server error (%d): %s (check slimlyticsd logs)", e.StatusCode, msg)
	}
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, msg)
}

func newAPIError(resp *http.Response) error {
	var payload struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(body) > 0 {
		_ = json.Unmarshal(body, &payload)
	}
	msg := strings.TrimSpace(payload.Error)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg, Details: payload.Details}
}

func mapTransportError(err error) error {
	switch {
	case errors.Is(err, transport.ErrServerUnreachable):
		return fmt.Errorf("cannot reach slimlyticsd (check --server): %w", err)
	case errors.Is(err, transport.ErrSSHAuth),
		errors.Is(err, transport.ErrSSHHostKey),
		errors.Is(err, transport.ErrSSHAgentUnavailable),
		errors.Is(err, transport.ErrSSHUnreachable),
		errors.Is(err, transport.ErrSSHTunnel):
		return fmt.Errorf("ssh transport: %w", err)
	default:
		return err
	}
}
