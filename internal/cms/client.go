// Package cms is a client of the Strapi headless CMS that publishes the menu,
// stores orders and owns user accounts.
package cms

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

const maxBodySize = 4 << 20

// StatusError is a non-2xx response from the CMS.
type StatusError struct {
	Status int
	// Message is the Strapi error message, if the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "cms: " + http.StatusText(e.Status)
	}
	return "cms: " + e.Message
}

// Options configures a Client.
type Options struct {
	// APIToken is sent as a bearer token on content requests.
	APIToken string
	// Timeout bounds every request. Zero means no timeout.
	Timeout        time.Duration
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
}

// Client talks to the CMS REST API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New creates a Client for the CMS at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse cms url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("cms url %q must be absolute", baseURL)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}

	return &Client{
		base:  u,
		token: opts.APIToken,
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport, otelOpts...),
			Timeout:   opts.Timeout,
		},
	}, nil
}

// MediaURL resolves a media reference: absolute URLs are kept, relative ones
// are prefixed with the CMS base URL.
func (c *Client) MediaURL(ref string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "/"):
		return c.base.String() + ref
	default:
		return c.base.String() + "/" + ref
	}
}

// Ping checks that the CMS answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/_health", nil)
	return err
}

// do sends a content request authorized with the API token.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	return c.doAs(ctx, method, path, body, c.token)
}

// doAs sends a request with the given bearer token, none if empty, and
// returns the body of a 2xx response.
func (c *Client) doAs(ctx context.Context, method, path string, body []byte, bearer string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage extracts error.message from a Strapi error body.
func errorMessage(data []byte) string {
	var msg string
	_ = jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error" || d.Next() != jx.Object {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "message" || d.Next() != jx.String {
				return d.Skip()
			}
			s, err := d.Str()
			msg = s
			return err
		})
	})
	return msg
}

// decodeData calls f for the "data" member of a Strapi envelope.
func decodeData(data []byte, f func(d *jx.Decoder) error) error {
	found := false
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "data" {
			return d.Skip()
		}
		found = true
		return f(d)
	})
	if err != nil {
		return errors.Wrap(err, "decode response")
	}
	if !found {
		return errors.New("response has no data")
	}
	return nil
}

// readInt accepts a number or a numeric string.
func readInt(d *jx.Decoder) (int, bool, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Int()
		return n, err == nil, err
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, false, err
		}
		n, ok := atoi(s)
		return n, ok, nil
	default:
		return 0, false, d.Skip()
	}
}

// readString returns "" for null or non-string values.
func readString(d *jx.Decoder) (string, error) {
	if d.Next() != jx.String {
		return "", d.Skip()
	}
	return d.Str()
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}
