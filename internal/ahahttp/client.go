package ahahttp

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/hausnet/fritzcore/internal/fritzerr"
)

const commandPath = "/webservices/homeautoswitch.lua"

// Result carries an AHA response as delivered by the router. Content is
// not decoded; commands return plain text, XML or JSON depending on the
// command name.
type Result struct {
	ContentType string
	Encoding    string
	Content     string
}

// Client issues commands against the AHA HTTP interface of one router.
// It is not safe for concurrent use; the session id is mutated across
// calls.
type Client struct {
	client   *http.Client
	origin   string
	username string
	password string
	logger   *slog.Logger

	sid string
}

// NewClient wires an AHA client onto an existing transport session. The
// origin is the router base URL without a trailing slash.
func NewClient(client *http.Client, origin, username, password string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		client:   client,
		origin:   origin,
		username: username,
		password: password,
		logger:   logger,
	}
}

// Execute sends a command with an optional device identifier (AIN) and
// extra query parameters. The session id is acquired on first use and
// renewed once when the router rejects the current one; a second
// rejection surfaces as an authorization failure.
func (c *Client) Execute(ctx context.Context, command, identifier string, extra map[string]string) (*Result, error) {
	params := url.Values{"switchcmd": {command}}
	if identifier != "" {
		params.Set("ain", identifier)
	}
	for key, value := range extra {
		params.Set(key, value)
	}

	if c.sid == "" {
		sid, err := c.login(ctx)
		if err != nil {
			return nil, err
		}
		c.sid = sid
	}

	result, status, err := c.send(ctx, params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		return result, nil
	}

	// An expired session answers with 403. Renew once and retry.
	if status == http.StatusForbidden {
		c.logger.Debug("session rejected, renewing", "command", command)
		sid, err := c.login(ctx)
		if err != nil {
			return nil, err
		}
		c.sid = sid
		result, status, err = c.send(ctx, params)
		if err != nil {
			return nil, err
		}
		if status == http.StatusOK {
			return result, nil
		}
		if status == http.StatusForbidden {
			return nil, fritzerr.New(fritzerr.KindAuthorization,
				"command %q refused with a fresh session, check credentials and permissions", command)
		}
	}
	return nil, fritzerr.New(fritzerr.KindHTTPInterface,
		"command %q failed with http status %d", command, status)
}

// InvalidateSession drops the cached session id so the next command
// performs a fresh login.
func (c *Client) InvalidateSession() {
	c.sid = ""
}

func (c *Client) send(ctx context.Context, params url.Values) (*Result, int, error) {
	params.Set("sid", c.sid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.origin+commandPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fritzerr.Wrap(fritzerr.KindHTTPInterface, err, "building command request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fritzerr.Wrap(fritzerr.KindConnectivity, err, "sending command")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fritzerr.Wrap(fritzerr.KindConnectivity, err, "reading command response")
	}

	contentType := resp.Header.Get("Content-Type")
	encoding := ""
	if mediaType, attrs, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
		encoding = attrs["charset"]
	}
	return &Result{
		ContentType: contentType,
		Encoding:    encoding,
		Content:     string(body),
	}, resp.StatusCode, nil
}
