// Package feedapi is the HTTP client for the social feed backend.
package feedapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"github.com/kingrea/socialhub/internal/feed"
	"github.com/kingrea/socialhub/internal/thread"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultRetries     = 2
	DefaultProfilePath = "/profile/"

	csrfHeader    = "X-CSRFToken"
	sessionCookie = "sessionid"
	csrfCookie    = "csrftoken"
	maxBodyBytes  = 4 << 20
)

// response is a fully read HTTP response. Bodies are buffered inside the
// attempt so a retried attempt never hands back a closed body.
type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// Client talks to the feed API. Reads are retried with backoff; writes go
// through the circuit breaker only and are never re-submitted.
type Client struct {
	baseURL     *url.URL
	profilePath string
	csrfToken   string
	session     string
	retries     int
	timeout     time.Duration
	http        *http.Client
	logger      logrus.FieldLogger

	reads  failsafe.Executor[*response]
	writes failsafe.Executor[*response]
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. nil is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithCSRFToken sets the anti-forgery token sent on every request.
func WithCSRFToken(token string) Option {
	return func(c *Client) { c.csrfToken = strings.TrimSpace(token) }
}

// WithSession sets the session credential sent as a cookie.
func WithSession(session string) Option {
	return func(c *Client) { c.session = strings.TrimSpace(session) }
}

// WithRetries sets how many times a failed read is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithProfilePath sets the page that accepts bio updates.
func WithProfilePath(path string) Option {
	return func(c *Client) {
		if path = strings.TrimSpace(path); path != "" {
			c.profilePath = path
		}
	}
}

// WithLogger routes request logs. nil is ignored.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("feedapi: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("feedapi: base url %q must use http or https", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("feedapi: base url %q has no host", baseURL)
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Client{
		baseURL:     parsed,
		profilePath: DefaultProfilePath,
		retries:     DefaultRetries,
		timeout:     DefaultTimeout,
		logger:      discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	breaker := newBreaker(c.logger)
	c.reads = failsafe.With[*response](newReadRetry(c.retries), breaker)
	c.writes = failsafe.With[*response](breaker)
	return c, nil
}

func shouldRetry(resp *response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return true
	}
	switch resp.status {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func newReadRetry(retries int) retrypolicy.RetryPolicy[*response] {
	return retrypolicy.NewBuilder[*response]().
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(retries).
		WithJitterFactor(0.1).
		HandleIf(shouldRetry).
		ReturnLastFailure().
		Build()
}

func newBreaker(logger logrus.FieldLogger) circuitbreaker.CircuitBreaker[*response] {
	return circuitbreaker.NewBuilder[*response]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(15 * time.Second).
		WithSuccessThreshold(1).
		HandleIf(func(resp *response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.status >= 500
		}).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			logger.WithFields(logrus.Fields{
				"from_state": stateName(event.OldState),
				"to_state":   stateName(event.NewState),
			}).Warn("feed api circuit breaker state change")
		}).
		Build()
}

func stateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}

func (c *Client) endpoint(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.baseURL.String() + path
	}
	return c.baseURL.ResolveReference(ref).String()
}

func postPath(id string, tail string) string {
	return "/api/posts/" + url.PathEscape(id) + "/" + tail
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set(csrfHeader, c.csrfToken)
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.session})
	}
	if c.csrfToken != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookie, Value: c.csrfToken})
	}
}

// do runs one logical request through the executor. build is called per
// attempt so request bodies are always fresh.
func (c *Client) do(ctx context.Context, op string, executor failsafe.Executor[*response], build func(ctx context.Context) (*http.Request, error)) (*response, error) {
	started := time.Now()
	resp, err := executor.WithContext(ctx).Get(func() (*response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		c.decorate(req)
		raw, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer raw.Body.Close()
		body, err := io.ReadAll(io.LimitReader(raw.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		return &response{status: raw.StatusCode, header: raw.Header, body: body}, nil
	})
	fields := logrus.Fields{"op": op, "elapsed": time.Since(started).Round(time.Millisecond)}
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("feed api request failed")
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp == nil {
		return nil, &TransportError{Op: op, Err: errors.New("no response")}
	}
	fields["status"] = resp.status
	c.logger.WithFields(fields).Debug("feed api request")
	return resp, nil
}

func (c *Client) read(ctx context.Context, op, path string) (*response, error) {
	return c.do(ctx, op, c.reads, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	})
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, payload any) (*response, error) {
	var data []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("feedapi: %s: encode request: %w", op, err)
		}
		data = encoded
	}
	return c.do(ctx, op, c.writes, func(ctx context.Context) (*http.Request, error) {
		var body io.Reader
		if data != nil {
			body = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
		if err != nil {
			return nil, err
		}
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
}

type formFile struct {
	field string
	name  string
	data  []byte
}

func (c *Client) sendForm(ctx context.Context, op, path string, fields map[string]string, file *formFile) (*response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("feedapi: %s: encode form: %w", op, err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile(file.field, file.name)
		if err != nil {
			return nil, fmt.Errorf("feedapi: %s: encode form: %w", op, err)
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, fmt.Errorf("feedapi: %s: encode form: %w", op, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("feedapi: %s: encode form: %w", op, err)
	}
	data := buf.Bytes()
	contentType := writer.FormDataContentType()
	return c.do(ctx, op, c.writes, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
}

// check turns a non-success status into an APIError carrying the server's
// detail when the body has one.
func check(op string, resp *response) error {
	if resp.ok() {
		return nil
	}
	apiErr := &APIError{Op: op, StatusCode: resp.status}
	var payload detailWire
	if err := json.Unmarshal(resp.body, &payload); err == nil {
		apiErr.Detail = strings.TrimSpace(payload.Detail)
	}
	return apiErr
}

func decode(op string, resp *response, out any) error {
	if err := check(op, resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &MalformedResponseError{Op: op, StatusCode: resp.status, Err: err}
	}
	return nil
}

// ListPosts fetches the feed. Both a bare array and a paginated
// {"results": [...]} envelope are accepted.
func (c *Client) ListPosts(ctx context.Context) ([]feed.Post, error) {
	const op = "list posts"
	resp, err := c.read(ctx, op, "/api/posts/")
	if err != nil {
		return nil, err
	}
	if err := check(op, resp); err != nil {
		return nil, err
	}
	var wires []postWire
	if err := json.Unmarshal(resp.body, &wires); err != nil {
		var page struct {
			Results []postWire `json:"results"`
		}
		if perr := json.Unmarshal(resp.body, &page); perr != nil || page.Results == nil {
			return nil, &MalformedResponseError{Op: op, StatusCode: resp.status, Err: err}
		}
		wires = page.Results
	}
	posts := make([]feed.Post, 0, len(wires))
	for _, w := range wires {
		post, err := w.toPost()
		if err != nil {
			c.logger.WithError(err).Warn("skipping post from feed")
			continue
		}
		if _, err := feed.ParsePrivacy(w.Privacy); err != nil {
			c.logger.WithField("post_id", post.ID).WithError(err).Warn("unknown privacy, showing post as private")
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// GetPost reads the editable fields of a post.
func (c *Client) GetPost(ctx context.Context, id string) (PostSnapshot, error) {
	const op = "read post"
	resp, err := c.read(ctx, op, postPath(id, ""))
	if err != nil {
		return PostSnapshot{}, err
	}
	var wire snapshotWire
	if err := decode(op, resp, &wire); err != nil {
		return PostSnapshot{}, err
	}
	if wire.Body == nil {
		return PostSnapshot{}, &MalformedResponseError{Op: op, StatusCode: resp.status, Err: errors.New("body missing")}
	}
	privacy, err := feed.ParsePrivacy(wire.Privacy)
	if err != nil {
		return PostSnapshot{}, &MalformedResponseError{Op: op, StatusCode: resp.status, Err: err}
	}
	return PostSnapshot{Body: *wire.Body, Privacy: privacy}, nil
}

// CreatePost publishes a new post and returns its id. The id may be empty
// when the server acknowledges without echoing the post.
func (c *Client) CreatePost(ctx context.Context, post NewPost) (string, error) {
	const op = "create post"
	fields := map[string]string{
		"body":    post.Body,
		"privacy": string(post.Privacy),
	}
	var file *formFile
	if post.Media != nil {
		data, err := io.ReadAll(io.LimitReader(post.Media, maxBodyBytes))
		if err != nil {
			return "", fmt.Errorf("feedapi: %s: read media: %w", op, err)
		}
		name := post.MediaName
		if name == "" {
			name = "upload"
		}
		file = &formFile{field: "image", name: name, data: data}
	}
	resp, err := c.sendForm(ctx, op, "/api/posts/", fields, file)
	if err != nil {
		return "", err
	}
	if err := check(op, resp); err != nil {
		return "", err
	}
	var created createdWire
	if len(bytes.TrimSpace(resp.body)) > 0 {
		if err := json.Unmarshal(resp.body, &created); err != nil {
			return "", &MalformedResponseError{Op: op, StatusCode: resp.status, Err: err}
		}
	}
	return string(created.ID), nil
}

// UpdatePost replaces the body and privacy of a post.
func (c *Client) UpdatePost(ctx context.Context, id, body string, privacy feed.Privacy) error {
	const op = "update post"
	resp, err := c.sendJSON(ctx, op, http.MethodPut, postPath(id, ""), map[string]string{
		"body":    body,
		"privacy": string(privacy),
	})
	if err != nil {
		return err
	}
	return check(op, resp)
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	const op = "delete post"
	resp, err := c.sendJSON(ctx, op, http.MethodDelete, postPath(id, ""), nil)
	if err != nil {
		return err
	}
	return check(op, resp)
}

// ToggleLike flips the viewer's like and returns the server's new state.
func (c *Client) ToggleLike(ctx context.Context, id string) (LikeState, error) {
	const op = "toggle like"
	resp, err := c.sendJSON(ctx, op, http.MethodPost, postPath(id, "toggle_like/"), nil)
	if err != nil {
		return LikeState{}, err
	}
	var wire likeWire
	if err := decode(op, resp, &wire); err != nil {
		return LikeState{}, err
	}
	state, err := wire.toState()
	if err != nil {
		return LikeState{}, &MalformedResponseError{Op: op, StatusCode: resp.status, Err: err}
	}
	return state, nil
}

// ListComments returns a post's comments in server order.
func (c *Client) ListComments(ctx context.Context, postID string) ([]thread.Comment, error) {
	const op = "list comments"
	resp, err := c.read(ctx, op, postPath(postID, "comments/"))
	if err != nil {
		return nil, err
	}
	var wires []commentWire
	if err := decode(op, resp, &wires); err != nil {
		return nil, err
	}
	out := make([]thread.Comment, 0, len(wires))
	for _, w := range wires {
		comment, err := w.toComment(postID)
		if err != nil {
			return nil, &MalformedResponseError{Op: op, StatusCode: resp.status, Err: err}
		}
		out = append(out, comment)
	}
	return out, nil
}

// CreateComment adds a comment and returns it as stored by the server.
func (c *Client) CreateComment(ctx context.Context, postID, body string) (thread.Comment, error) {
	const op = "create comment"
	resp, err := c.sendJSON(ctx, op, http.MethodPost, postPath(postID, "comments/"), map[string]string{"body": body})
	if err != nil {
		return thread.Comment{}, err
	}
	var wire commentWire
	if err := decode(op, resp, &wire); err != nil {
		return thread.Comment{}, err
	}
	comment, err := wire.toComment(postID)
	if err != nil {
		return thread.Comment{}, &MalformedResponseError{Op: op, StatusCode: resp.status, Err: err}
	}
	return comment, nil
}

// ChangePassword succeeds only on a success status with success=true.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	const op = "change password"
	resp, err := c.sendJSON(ctx, op, http.MethodPost, "/api/change-password/", map[string]string{
		"current_password": current,
		"new_password":     next,
	})
	if err != nil {
		return err
	}
	var wire passwordWire
	if err := decode(op, resp, &wire); err != nil {
		return err
	}
	if !wire.Success {
		return &APIError{Op: op, StatusCode: resp.status, Detail: strings.TrimSpace(wire.Detail)}
	}
	return nil
}

// UpdateBio posts the profile form with the new bio.
func (c *Client) UpdateBio(ctx context.Context, bio string) error {
	const op = "update bio"
	resp, err := c.sendForm(ctx, op, c.profilePath, map[string]string{
		"bio":                 bio,
		"csrfmiddlewaretoken": c.csrfToken,
	}, nil)
	if err != nil {
		return err
	}
	return check(op, resp)
}
