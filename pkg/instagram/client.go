package instagram

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"instarchive/pkg/config"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/logger"
	"instarchive/pkg/ratelimit"
	"instarchive/pkg/retry"
)

var errLoginRedirect = errors.New("redirected to login page")

// Session holds the cookies of a logged-in Instagram web session
type Session struct {
	SessionID string
	CSRFToken string
	UserAgent string
}

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	UserAgent string
	AppID     string
	// Session is nil for anonymous access
	Session   *Session
	Limiter   ratelimit.Limiter
	Retry     *retry.Config
	Endpoints Endpoints
}

// Client represents an Instagram API client
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	session    *Session
	endpoints  Endpoints
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a new Instagram API client
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}
	if opts.Retry == nil {
		opts.Retry = &retry.Config{MaxAttempts: 1}
	}
	if opts.Endpoints == (Endpoints{}) {
		opts.Endpoints = DefaultEndpoints()
	}

	userAgent := opts.UserAgent
	if opts.Session != nil && opts.Session.UserAgent != "" {
		userAgent = opts.Session.UserAgent
	}

	headers := map[string]string{
		"User-Agent":       userAgent,
		"Accept":           "*/*",
		"Accept-Language":  "en-US,en;q=0.9",
		"X-IG-App-ID":      opts.AppID,
		"X-Requested-With": "XMLHttpRequest",
	}
	if opts.Session != nil {
		headers["X-CSRFToken"] = opts.Session.CSRFToken
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if strings.Contains(req.URL.Path, "/accounts/login") {
					return errLoginRedirect
				}
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return nil
			},
		},
		headers:   headers,
		session:   opts.Session,
		endpoints: opts.Endpoints,
		limiter:   opts.Limiter,
		retry:     opts.Retry,
		logger:    log,
	}
}

// NewClientFromConfig creates a client paced and retried per cfg
func NewClientFromConfig(cfg *config.Config, session *Session, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return NewClient(Options{
		Timeout:   cfg.Download.Timeout,
		UserAgent: cfg.Instagram.UserAgent,
		AppID:     cfg.Instagram.AppID,
		Session:   session,
		Limiter:   ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
		Retry:     retry.FromConfig(cfg.Retry, log),
	}, log)
}

// Endpoints returns the base URLs the client talks to
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Anonymous reports whether the client sends no session cookies
func (c *Client) Anonymous() bool {
	return c.session == nil
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// doRequest performs an HTTP request with the configured headers and cookies
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
	if c.session != nil {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.session.SessionID})
		req.AddCookie(&http.Cookie{Name: "csrftoken", Value: c.session.CSRFToken})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, errLoginRedirect) {
			c.logger.WarnWithFields("login required", map[string]interface{}{
				"url": req.URL.String(),
			})
			return nil, &errs.Error{
				Type:    errs.ErrorTypeAuth,
				Message: "Instagram requires login for this request",
				Code:    http.StatusFound,
			}
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "%s %s", req.Method, req.URL.Path)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)

	return resp, nil
}

// get performs a single paced GET request and checks its status
func (c *Client) get(rawURL string, paced bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}

	if paced {
		c.limiter.Wait()
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	if err := checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// GetJSON performs a paced GET request with retries and decodes the JSON response
func (c *Client) GetJSON(rawURL string, target interface{}) error {
	return retry.Do(func() error {
		return c.fetchJSON(rawURL, target)
	}, c.retry)
}

func (c *Client) fetchJSON(rawURL string, target interface{}) error {
	resp, err := c.get(rawURL, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: "failed to read response body",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	var status struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &status) == nil && status.Status == "fail" {
		return failureError(status.Message, resp.StatusCode)
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.WarnWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "failed to parse JSON",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return nil
}

// Download fetches a media file with retries. Media hosts are not paced.
// The returned time is the Last-Modified header, or zero.
func (c *Client) Download(rawURL string) ([]byte, time.Time, error) {
	var modified time.Time
	data, err := retry.DoWithResult(func() ([]byte, error) {
		resp, err := c.get(rawURL, false)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read media")
		}
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if t, err := http.ParseTime(lm); err == nil {
				modified = t
			}
		}
		return data, nil
	}, c.retry)
	if err != nil {
		return nil, time.Time{}, err
	}

	c.logger.DebugWithFields("media downloaded", map[string]interface{}{
		"size": len(data),
	})
	return data, modified, nil
}

// checkResponseStatus maps an HTTP status to the error taxonomy
func checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: "authentication required", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "resource not found", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: resp.StatusCode}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}

// failureError classifies a {"status":"fail"} body
func failureError(message string, code int) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "wait a few minutes"), strings.Contains(lower, "rate limit"):
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: message, Code: code}
	case strings.Contains(lower, "login"), strings.Contains(lower, "checkpoint"):
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: message, Code: code}
	case strings.Contains(lower, "not found"), strings.Contains(lower, "does not exist"):
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: message, Code: code}
	default:
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: "request failed: " + message, Code: code}
	}
}
