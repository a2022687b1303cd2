package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// Wire contract of the download endpoint.
const (
	DownloadPath    = "/download"
	QueryTarget     = "insta_url"
	HeaderUsername  = "X-Username"
	HeaderPassword  = "X-Password"
	AttachmentField = "cookies"
)

const defaultAttachmentName = "cookies.txt"

// Attachment is a file sent with the request, typically a Netscape
// cookies.txt.
type Attachment struct {
	Name string
	Data []byte
}

// Params are the user-supplied inputs of a download.
type Params struct {
	TargetURL  string
	Username   string
	Password   string
	Method     string // "GET" or "POST"; empty means GET
	Attachment *Attachment
}

// Request is a transport-ready description of one download. It is consumed
// by a single session.
type Request struct {
	TargetURL  string
	Method     string
	Headers    map[string]string
	Attachment *Attachment
}

// BuildRequest validates p and turns it into a Request. An attachment forces
// POST regardless of the requested method, which is then not validated.
// Credentials only ever travel as headers.
func BuildRequest(p Params) (*Request, error) {
	target := strings.TrimSpace(p.TargetURL)
	if target == "" {
		return nil, &ValidationError{Field: "target url", Reason: "must not be empty"}
	}

	method := strings.ToUpper(strings.TrimSpace(p.Method))
	switch {
	case p.Attachment != nil:
		method = http.MethodPost
	case method == "":
		method = http.MethodGet
	case method == http.MethodGet, method == http.MethodPost:
	default:
		return nil, &ValidationError{Field: "method", Reason: fmt.Sprintf("unsupported method %q", p.Method)}
	}

	headers := make(map[string]string)
	if p.Username != "" {
		headers[HeaderUsername] = p.Username
	}
	if p.Password != "" {
		headers[HeaderPassword] = p.Password
	}

	return &Request{
		TargetURL:  target,
		Method:     method,
		Headers:    headers,
		Attachment: p.Attachment,
	}, nil
}

// Validate checks the invariants BuildRequest establishes, for requests
// constructed by hand.
func (r *Request) Validate() error {
	if r == nil || strings.TrimSpace(r.TargetURL) == "" {
		return &ValidationError{Field: "target url", Reason: "must not be empty"}
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		return &ValidationError{Field: "method", Reason: fmt.Sprintf("unsupported method %q", r.Method)}
	}
	if r.Attachment != nil && r.Method != http.MethodPost {
		return &ValidationError{Field: "method", Reason: "an attachment requires POST"}
	}
	return nil
}

// HTTPRequest renders r against apiBase. The target URL is always carried in
// the query string, never in the body.
func (r *Request) HTTPRequest(ctx context.Context, apiBase string) (*http.Request, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(strings.TrimRight(apiBase, "/") + DownloadPath)
	if err != nil {
		return nil, &ValidationError{Field: "api base", Reason: err.Error()}
	}
	q := u.Query()
	q.Set(QueryTarget, r.TargetURL)
	u.RawQuery = q.Encode()

	var (
		body        io.Reader
		contentType string
	)
	if r.Attachment != nil {
		buf, ct, err := encodeAttachment(r.Attachment)
		if err != nil {
			return nil, fmt.Errorf("encode attachment: %w", err)
		}
		body, contentType = buf, ct
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func encodeAttachment(a *Attachment) (*bytes.Buffer, string, error) {
	name := a.Name
	if name == "" {
		name = defaultAttachmentName
	}

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile(AttachmentField, name)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(a.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}
