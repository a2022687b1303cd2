package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultReadSize    = 32 * 1024
	defaultContentType = "application/octet-stream"
)

// Options configures the HTTP client.
type Options struct {
	// APIBase is the base URL of the download API, e.g. https://host/api.
	APIBase string

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 2
	MaxIdleConnsPerHost int

	// HeaderTimeout bounds the wait for response headers. Zero disables it;
	// the body read itself is never timed out.
	HeaderTimeout time.Duration

	// ReadSize is the buffer size used for each incremental read.
	// Default: 32KiB
	ReadSize int

	// Buffered disables incremental reads; the body is read in one piece.
	Buffered bool

	// DefaultFilename is used when Content-Disposition names no file.
	// Default: reel.mp4
	DefaultFilename string

	// UserAgent is sent with every request.
	UserAgent string

	// Logger receives request diagnostics. Zero value discards.
	Logger zerolog.Logger
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 2,
		ReadSize:            defaultReadSize,
		DefaultFilename:     DefaultFilename,
		UserAgent:           "igdl/1.0",
		Logger:              zerolog.Nop(),
	}
}

// ResponseMeta is the metadata of an accepted response.
type ResponseMeta struct {
	// ContentLength is the announced body size, or -1 when unknown.
	ContentLength int64
	ContentType   string
	Filename      string
}

// Response is a successful response whose body has not been read yet.
type Response struct {
	Meta ResponseMeta
	Body *Body
}

// Client issues download requests against the API.
type Client struct {
	client *http.Client
	opts   Options
	log    zerolog.Logger
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 2
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = defaultReadSize
	}
	if opts.DefaultFilename == "" {
		opts.DefaultFilename = DefaultFilename
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.HeaderTimeout,
		DisableCompression:    true, // Content-Length must describe the bytes we read
	}

	return &Client{
		client: &http.Client{Transport: transport},
		opts:   opts,
		log:    opts.Logger,
	}
}

// Do issues r and validates the response status. A cancelled ctx yields
// ErrCancelled, a transport failure a *NetworkError and a non-2xx status a
// *ServerError carrying the response body.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	req, err := r.HTTPRequest(ctx, c.opts.APIBase)
	if err != nil {
		return nil, err
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Bool("attachment", r.Attachment != nil).
		Msg("issuing request")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil && ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, &ServerError{Status: resp.StatusCode, Body: string(body)}
	}

	meta := ResponseMeta{
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
		Filename:      resolveFilename(resp.Header.Get("Content-Disposition"), c.opts.DefaultFilename),
	}
	if meta.ContentType == "" {
		meta.ContentType = defaultContentType
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Int64("content_length", meta.ContentLength).
		Str("content_type", meta.ContentType).
		Str("filename", meta.Filename).
		Msg("response accepted")

	return &Response{
		Meta: meta,
		Body: NewBody(resp.Body, c.opts.ReadSize, !c.opts.Buffered),
	}, nil
}

// IsCancelled reports whether err is a user cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// Describe returns a one-line, human readable summary of err for terminal
// output.
func Describe(err error) string {
	var (
		verr *ValidationError
		serr *ServerError
		nerr *NetworkError
		rerr *StreamError
	)
	switch {
	case err == nil:
		return ""
	case IsCancelled(err):
		return ErrCancelled.Error()
	case errors.As(err, &verr), errors.As(err, &serr), errors.As(err, &nerr), errors.As(err, &rerr):
		return err.Error()
	default:
		return fmt.Sprintf("unexpected error: %v", err)
	}
}
