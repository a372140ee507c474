package action

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/acfabro/git-actions/internal/gatmpl"
	"github.com/acfabro/git-actions/internal/rule"
)

// httpResponseLogBytes caps how much response body an Http action
// retains for logging (spec.md §4.6: "first 8 KiB of response body").
const httpResponseLogBytes = 8 * 1024

const defaultHTTPTimeout = 30 * time.Second

// maxHTTPRedirects is the redirect cap spec.md §4.6 requires.
const maxHTTPRedirects = 5

var validHTTPMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
	http.MethodHead:   true,
}

// newHTTPClient builds the shared, connection-pooling client used for
// every Http action, capping redirects at maxHTTPRedirects per
// spec.md §4.6.
func newHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxHTTPRedirects {
				return fmt.Errorf("action: stopped after %d redirects", maxHTTPRedirects)
			}
			return nil
		},
	}
}

// runHTTP renders and executes a single Http action. Any 2xx status is
// success; any other status or transport error is a failure, recorded
// in the Result rather than returned as an error — only a template
// render failure or a method outside validHTTPMethods returns a non-nil
// error, since those failures happen before any request is attempted.
func runHTTP(ctx context.Context, client *http.Client, a *rule.HTTPAction, tmplCtx gatmpl.Context) (Result, error) {
	start := time.Now()

	url, err := renderField("url", a.URL, tmplCtx)
	if err != nil {
		return Result{}, err
	}

	method := strings.ToUpper(a.Method)
	if !validHTTPMethods[method] {
		return Result{}, &InvalidMethodError{Method: a.Method}
	}

	headers := make(http.Header, len(a.Headers))
	for k, v := range a.Headers {
		rk, err := renderField("header key "+k, k, tmplCtx)
		if err != nil {
			return Result{}, err
		}
		rv, err := renderField("header value for "+k, v, tmplCtx)
		if err != nil {
			return Result{}, err
		}
		headers.Set(rk, rv)
	}

	var bodyReader io.Reader
	if a.HasBody {
		body, err := renderField("body", a.Body, tmplCtx)
		if err != nil {
			return Result{}, err
		}
		bodyReader = strings.NewReader(body)
	}

	timeout := defaultHTTPTimeout
	if a.TimeoutSeconds > 0 {
		timeout = time.Duration(a.TimeoutSeconds) * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
	if err != nil {
		return Result{Kind: "http", Success: false, Err: err, DurationMS: time.Since(start).Milliseconds()}, nil
	}
	req.Header = headers

	resp, err := client.Do(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		return Result{Kind: "http", Success: false, Err: err, DurationMS: duration}, nil
	}
	defer resp.Body.Close()

	captured := newHeadTruncatedBuffer(httpResponseLogBytes)
	_, _ = io.Copy(captured, resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	return Result{
		Kind:       "http",
		Success:    success,
		DurationMS: time.Since(start).Milliseconds(),
		StatusCode: resp.StatusCode,
		Output:     captured.String(),
	}, nil
}

func renderField(name, src string, tmplCtx gatmpl.Context) (string, error) {
	tpl, err := gatmpl.Parse(src)
	if err != nil {
		return "", &TemplateError{Field: name, Cause: err}
	}
	out, err := tpl.Render(tmplCtx)
	if err != nil {
		return "", &TemplateError{Field: name, Cause: err}
	}
	return out, nil
}
