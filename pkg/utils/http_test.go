package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDefaultHTTPClientConfig(t *testing.T) {
	config := DefaultHTTPClientConfig()
	if config.Timeout != 30*time.Second {
		t.Errorf("got timeout %v, want 30s", config.Timeout)
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(HTTPClientConfig{Timeout: 15 * time.Second})
	if client.Timeout != 15*time.Second {
		t.Errorf("got timeout %v, want 15s", client.Timeout)
	}
}

func TestNewDefaultHTTPClient(t *testing.T) {
	client := NewDefaultHTTPClient()
	if client.Timeout != 30*time.Second {
		t.Errorf("got timeout %v, want 30s", client.Timeout)
	}
}

func TestHTTPErrorMessage(t *testing.T) {
	err := HTTPError{StatusCode: 404, Message: "Not Found", URL: "https://example.com/test"}
	want := "HTTP 404: Not Found (URL: https://example.com/test)"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestCheckHTTPResponse(t *testing.T) {
	tests := []struct {
		statusCode int
		wantErr    bool
	}{
		{200, false},
		{201, false},
		{302, false},
		{400, true},
		{404, true},
		{500, true},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.statusCode)
		}))

		resp, err := http.Get(server.URL)
		if err != nil {
			server.Close()
			t.Fatalf("request failed: %v", err)
		}

		err = CheckHTTPResponse(resp, server.URL)
		if tt.wantErr && err == nil {
			t.Errorf("status %d: expected an error, got nil", tt.statusCode)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("status %d: expected no error, got %v", tt.statusCode, err)
		}
		if tt.wantErr && err != nil {
			httpErr, ok := err.(HTTPError)
			if !ok {
				t.Errorf("got error type %T, want HTTPError", err)
			} else if httpErr.StatusCode != tt.statusCode {
				t.Errorf("got status %d, want %d", httpErr.StatusCode, tt.statusCode)
			}
		}

		_ = resp.Body.Close()
		server.Close()
	}
}

func TestSafeCloseResponse(t *testing.T) {
	SafeCloseResponse(nil)
	SafeCloseResponse(&http.Response{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("test"))
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	SafeCloseResponse(resp)
}
