package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	opts := DefaultOptions()
	opts.APIBase = url + "/api"
	return NewClient(opts)
}

func TestDoGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/download" {
			t.Errorf("expected path /api/download, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get(QueryTarget); got != "https://example/reel/ABC" {
			t.Errorf("expected target in query, got %q", got)
		}
		if got := r.Header.Get(HeaderUsername); got != "alice" {
			t.Errorf("expected username header, got %q", got)
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", `attachment; filename="clip.mp4"`)
		w.Header().Set("Content-Length", "11")
		w.Write([]byte("hello world"))
	}))
	defer server.Close()

	req, err := BuildRequest(Params{TargetURL: "https://example/reel/ABC", Username: "alice"})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	resp, err := newTestClient(server.URL).Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.Meta.ContentLength != 11 {
		t.Errorf("expected content length 11, got %d", resp.Meta.ContentLength)
	}
	if resp.Meta.ContentType != "video/mp4" {
		t.Errorf("expected content type video/mp4, got %s", resp.Meta.ContentType)
	}
	if resp.Meta.Filename != "clip.mp4" {
		t.Errorf("expected filename clip.mp4, got %s", resp.Meta.Filename)
	}
	if !resp.Body.Incremental() {
		t.Error("expected incremental body")
	}
}

func TestDoDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil // suppress sniffing
		w.Write([]byte("data"))
	}))
	defer server.Close()

	req, _ := BuildRequest(Params{TargetURL: "https://example/reel/ABC"})
	resp, err := newTestClient(server.URL).Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.Meta.ContentType != "application/octet-stream" {
		t.Errorf("expected default content type, got %s", resp.Meta.ContentType)
	}
	if resp.Meta.Filename != "reel.mp4" {
		t.Errorf("expected default filename, got %s", resp.Meta.Filename)
	}
}

func TestDoPostWithAttachment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.URL.Query().Get(QueryTarget); got != "https://example/reel/ABC" {
			t.Errorf("expected target in query, got %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if _, ok := r.MultipartForm.Value[QueryTarget]; ok {
			t.Error("target URL must not be duplicated in the body")
		}
		f, hdr, err := r.FormFile(AttachmentField)
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "# Netscape HTTP Cookie File\n" {
			t.Errorf("unexpected attachment content %q", data)
		}
		if hdr.Filename != "cookies.txt" {
			t.Errorf("expected attachment name cookies.txt, got %s", hdr.Filename)
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	req, err := BuildRequest(Params{
		TargetURL:  "https://example/reel/ABC",
		Method:     "GET",
		Attachment: &Attachment{Data: []byte("# Netscape HTTP Cookie File\n")},
	})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	resp, err := newTestClient(server.URL).Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
}

func TestDoServerError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"plain text", http.StatusBadGateway, "upstream said no", "server responded: 502 - upstream said no"},
		{"json with newline", http.StatusForbidden, "{\"error\": \"private post\"}\n", `server responded: 403 - {"error": "private post"}`},
		{"surrounding whitespace", http.StatusNotFound, "  media not found \r\n", "server responded: 404 - media not found"},
		{"empty", http.StatusInternalServerError, "", "server responded: 500 - "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			req, _ := BuildRequest(Params{TargetURL: "https://example/reel/ABC"})
			_, err := newTestClient(server.URL).Do(context.Background(), req)

			var serr *ServerError
			if !errors.As(err, &serr) {
				t.Fatalf("expected ServerError, got %v", err)
			}
			if serr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, serr.Status)
			}
			if serr.Body != tt.body {
				t.Errorf("expected body verbatim %q, got %q", tt.body, serr.Body)
			}
			if got := serr.Error(); got != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, got)
			}
		})
	}
}

func TestDoNetworkError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	req, _ := BuildRequest(Params{TargetURL: "https://example/reel/ABC"})
	_, err = newTestClient("http://"+addr).Do(context.Background(), req)

	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if IsCancelled(err) {
		t.Error("network failure must not look like a cancellation")
	}
}

func TestDoCancelledBeforeCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := BuildRequest(Params{TargetURL: "https://example/reel/ABC"})
	_, err := newTestClient("http://127.0.0.1:1").Do(ctx, req)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestDoCancelledDuringCall(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, _ := BuildRequest(Params{TargetURL: "https://example/reel/ABC"})
	_, err := newTestClient(server.URL).Do(ctx, req)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestBodyNext(t *testing.T) {
	body := NewBody(io.NopCloser(strings.NewReader("abcdefghij")), 4, true)

	var chunks []string
	for {
		chunk, err := body.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		chunks = append(chunks, string(chunk))
	}

	want := []string{"abcd", "efgh", "ij"}
	if strings.Join(chunks, ",") != strings.Join(want, ",") {
		t.Errorf("expected chunks %v, got %v", want, chunks)
	}
}

func TestBodyReadAll(t *testing.T) {
	body := NewBody(io.NopCloser(strings.NewReader("whole body")), 4, false)
	if body.Incremental() {
		t.Error("expected non-incremental body")
	}
	data, err := body.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "whole body" {
		t.Errorf("expected 'whole body', got %q", data)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{ErrCancelled, "download cancelled"},
		{&ServerError{Status: 404, Body: "not found"}, "server responded: 404 - not found"},
		{&ValidationError{Field: "target url", Reason: "must not be empty"}, "invalid target url: must not be empty"},
		{errors.New("boom"), "unexpected error: boom"},
	}

	for _, tt := range tests {
		if got := Describe(tt.err); got != tt.expected {
			t.Errorf("Describe(%v) = %q, want %q", tt.err, got, tt.expected)
		}
	}
}
