package api

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

	"github.com/felixgeelhaar/fortify/circuitbreaker"

	"ctfboard/internal/board"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
	sessionCookie  = "session"
)

type Options struct {
	BaseURL       string
	Token         string
	SessionCookie string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        Logger
}

// Client talks to a CTFd-compatible /api/v1 backend.
type Client struct {
	baseURL string
	token   string
	session string
	http    *http.Client
	log     Logger
	reads   circuitbreaker.CircuitBreaker[*response]
}

type response struct {
	status   int
	location string
	env      envelope
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", raw)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	// Redirects are surfaced to classify; the backend answers an anonymous
	// request with a redirect to its login page.
	clone := *hc
	clone.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	var log Logger = nopLogger{}
	if opts.Logger != nil {
		log = opts.Logger
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		token:   strings.TrimSpace(opts.Token),
		session: strings.TrimSpace(opts.SessionCookie),
		http:    &clone,
		log:     log,
	}
	c.reads = circuitbreaker.New[*response](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			c.log.Info("api.breaker.state", map[string]any{
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) ListChallenges(ctx context.Context) ([]board.Challenge, error) {
	const op = "list challenges"
	var items []wireChallenge
	if err := c.get(ctx, op, "/api/v1/challenges", &items); err != nil {
		return nil, err
	}
	out := make([]board.Challenge, 0, len(items))
	for _, item := range items {
		out = append(out, item.challenge())
	}
	return out, nil
}

func (c *Client) ListSolves(ctx context.Context) ([]board.Solve, error) {
	const op = "list solves"
	var items []wireSolve
	if err := c.get(ctx, op, "/api/v1/users/me/solves", &items); err != nil {
		return nil, err
	}
	out := make([]board.Solve, 0, len(items))
	for _, item := range items {
		out = append(out, item.solve())
	}
	return out, nil
}

func (c *Client) GetChallenge(ctx context.Context, id int) (board.ChallengeDetail, error) {
	const op = "get challenge"
	var item wireChallenge
	if err := c.get(ctx, op, fmt.Sprintf("/api/v1/challenges/%d", id), &item); err != nil {
		return board.ChallengeDetail{}, err
	}
	return item.detail(), nil
}

func (c *Client) GetHint(ctx context.Context, id int) (board.Hint, error) {
	const op = "get hint"
	var item wireHint
	if err := c.get(ctx, op, fmt.Sprintf("/api/v1/hints/%d", id), &item); err != nil {
		return board.Hint{}, err
	}
	h := item.hint()
	if h.ID == 0 {
		h.ID = id
	}
	return h, nil
}

// UnlockHint spends the hint's cost. A refusal comes back as ErrUnlockDenied
// carrying the backend's reason.
func (c *Client) UnlockHint(ctx context.Context, id int) error {
	const op = "unlock hint"
	resp, err := c.send(ctx, op, http.MethodPost, "/api/v1/unlocks", unlockRequest{Target: id, Type: "hints"})
	if err != nil {
		return err
	}
	if err := classify(op, resp); err != nil {
		if errors.Is(err, ErrValidation) {
			var apiErr *Error
			errors.As(err, &apiErr)
			apiErr.Kind = ErrUnlockDenied
			return apiErr
		}
		return err
	}
	return nil
}

// Submit sends one answer. Paused and rate-limited attempts are results, not
// errors: the backend reports them with a status in the body.
func (c *Client) Submit(ctx context.Context, challengeID int, answer string) (board.AttemptResult, error) {
	const op = "submit answer"
	resp, err := c.send(ctx, op, http.MethodPost, "/api/v1/challenges/attempt", attemptRequest{
		ChallengeID: challengeID,
		Submission:  answer,
	})
	if err != nil {
		return board.AttemptResult{}, err
	}
	switch resp.status {
	case http.StatusOK, http.StatusForbidden, http.StatusTooManyRequests:
		var data wireAttempt
		if len(resp.env.Data) > 0 && json.Unmarshal(resp.env.Data, &data) == nil && data.Status != "" {
			return board.AttemptResult{
				ChallengeID: challengeID,
				Status:      board.AttemptStatus(data.Status),
				Message:     data.Message,
			}, nil
		}
	}
	if err := classify(op, resp); err != nil {
		return board.AttemptResult{}, err
	}
	return board.AttemptResult{}, networkError(op, resp.status, errors.New("response carried no attempt status"))
}

func (c *Client) get(ctx context.Context, op, path string, into any) error {
	resp, err := c.reads.Execute(ctx, func(ctx context.Context) (*response, error) {
		return c.do(ctx, op, http.MethodGet, path, nil)
	})
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return err
		}
		return networkError(op, 0, err)
	}
	if err := classify(op, resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.env.Data, into); err != nil {
		return networkError(op, resp.status, fmt.Errorf("decode data: %w", err))
	}
	return nil
}

// send issues a write once, outside the breaker.
func (c *Client) send(ctx context.Context, op, method, path string, body any) (*response, error) {
	return c.do(ctx, op, method, path, body)
}

// do performs one request. Only network-class failures are returned as
// errors; status classification is left to classify.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (*response, error) {
	start := time.Now()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		c.log.Error("api.request.failed", map[string]any{"op": op, "path": path, "error": err.Error()})
		return nil, networkError(op, 0, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, networkError(op, res.StatusCode, fmt.Errorf("read body: %w", err))
	}
	c.log.Info("api.request", map[string]any{
		"op":          op,
		"method":      method,
		"path":        path,
		"status":      res.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	out := &response{status: res.StatusCode, location: res.Header.Get("Location")}
	if res.StatusCode >= 300 && res.StatusCode < 400 {
		return out, nil
	}
	if res.StatusCode >= 500 {
		return out, networkError(op, res.StatusCode, fmt.Errorf("server error: %s", http.StatusText(res.StatusCode)))
	}
	if err := json.Unmarshal(raw, &out.env); err != nil {
		if res.StatusCode >= 400 {
			// Error pages are often HTML; the status alone classifies them.
			return out, nil
		}
		return out, networkError(op, res.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
		return
	}
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.session})
	}
}

func classify(op string, resp *response) error {
	status := resp.status
	switch {
	case status >= 300 && status < 400:
		if strings.Contains(resp.location, "/login") {
			return &Error{Kind: ErrUnauthorized, Op: op, Status: status, Message: "login required"}
		}
		return networkError(op, status, fmt.Errorf("unexpected redirect to %q", resp.location))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: ErrUnauthorized, Op: op, Status: status, Message: resp.env.Message, Fields: resp.env.fieldErrors()}
	case status == http.StatusNotFound:
		return &Error{Kind: ErrNotFound, Op: op, Status: status, Message: resp.env.Message}
	case status >= 400:
		return &Error{Kind: ErrValidation, Op: op, Status: status, Message: resp.env.Message, Fields: resp.env.fieldErrors()}
	case !resp.env.Success:
		return &Error{Kind: ErrValidation, Op: op, Status: status, Message: resp.env.Message, Fields: resp.env.fieldErrors()}
	}
	return nil
}
