package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestBuildRequestMethod(t *testing.T) {
	attachment := &Attachment{Name: "cookies.txt", Data: []byte("x")}

	tests := []struct {
		name       string
		method     string
		attachment *Attachment
		expected   string
	}{
		{"default is GET", "", nil, http.MethodGet},
		{"GET honored", "GET", nil, http.MethodGet},
		{"POST honored", "post", nil, http.MethodPost},
		{"attachment forces POST", "GET", attachment, http.MethodPost},
		{"attachment keeps POST", "POST", attachment, http.MethodPost},
		{"attachment overrides unsupported method", "PUT", attachment, http.MethodPost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := BuildRequest(Params{
				TargetURL:  "https://example/reel/ABC",
				Method:     tt.method,
				Attachment: tt.attachment,
			})
			if err != nil {
				t.Fatalf("BuildRequest: %v", err)
			}
			if req.Method != tt.expected {
				t.Errorf("expected method %s, got %s", tt.expected, req.Method)
			}
		})
	}
}

func TestBuildRequestValidation(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{"empty url", Params{}},
		{"blank url", Params{TargetURL: "   "}},
		{"bad method", Params{TargetURL: "https://example/reel/ABC", Method: "DELETE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRequest(tt.params)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestBuildRequestCredentials(t *testing.T) {
	req, err := BuildRequest(Params{
		TargetURL: "https://example/reel/ABC",
		Username:  "alice",
		Password:  "s3cret",
	})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	if req.Headers[HeaderUsername] != "alice" {
		t.Errorf("expected username header, got %q", req.Headers[HeaderUsername])
	}
	if req.Headers[HeaderPassword] != "s3cret" {
		t.Errorf("expected password header, got %q", req.Headers[HeaderPassword])
	}

	hr, err := req.HTTPRequest(context.Background(), "https://api.example/api/")
	if err != nil {
		t.Fatalf("HTTPRequest: %v", err)
	}
	if strings.Contains(hr.URL.RawQuery, "s3cret") || strings.Contains(hr.URL.RawQuery, "alice") {
		t.Errorf("credentials leaked into query: %s", hr.URL.RawQuery)
	}
	if hr.Body != nil && hr.Body != http.NoBody {
		t.Error("GET without attachment must not carry a body")
	}
	if got := hr.URL.String(); got != "https://api.example/api/download?insta_url=https%3A%2F%2Fexample%2Freel%2FABC" {
		t.Errorf("unexpected URL %s", got)
	}
}

func TestBuildRequestNoCredentials(t *testing.T) {
	req, err := BuildRequest(Params{TargetURL: "https://example/reel/ABC"})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if len(req.Headers) != 0 {
		t.Errorf("expected no headers, got %v", req.Headers)
	}
}

func TestHTTPRequestMultipart(t *testing.T) {
	req, err := BuildRequest(Params{
		TargetURL:  "https://example/reel/ABC",
		Attachment: &Attachment{Data: []byte("cookie data")},
	})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	hr, err := req.HTTPRequest(context.Background(), "https://api.example/api")
	if err != nil {
		t.Fatalf("HTTPRequest: %v", err)
	}
	if !strings.HasPrefix(hr.Header.Get("Content-Type"), "multipart/form-data; boundary=") {
		t.Errorf("expected multipart content type, got %s", hr.Header.Get("Content-Type"))
	}
	if err := hr.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	if len(hr.MultipartForm.File[AttachmentField]) != 1 {
		t.Errorf("expected one %q file part", AttachmentField)
	}
	if len(hr.MultipartForm.Value) != 0 {
		t.Errorf("expected no value parts, got %v", hr.MultipartForm.Value)
	}
}

func TestValidateHandBuiltRequest(t *testing.T) {
	req := &Request{
		TargetURL:  "https://example/reel/ABC",
		Method:     http.MethodGet,
		Attachment: &Attachment{Data: []byte("x")},
	}
	var verr *ValidationError
	if err := req.Validate(); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for GET with attachment, got %v", err)
	}
}
