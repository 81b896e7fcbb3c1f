// Package labels fetches carrier label documents for same-origin display
// and printing.
package labels

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	defaultMaxBytes = 10 << 20
	defaultTimeout  = 15 * time.Second
	maxRedirects    = 3
)

// Params configures a Fetcher. PublicURL, when set, lets relative label paths
// resolve against the storefront's own origin.
type Params struct {
	AllowedHosts []string
	MaxBytes     int64
	Timeout      time.Duration
	PublicURL    string
	Client       *http.Client
}

// Fetcher loads label documents from allow-listed hosts or inline data URLs.
type Fetcher struct {
	allowed  []string
	maxBytes int64
	origin   *url.URL
	client   *http.Client
}

func NewFetcher(params Params) (*Fetcher, error) {
	maxBytes := params.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	client := params.Client
	if client == nil {
		timeout := params.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	f := &Fetcher{maxBytes: maxBytes}
	// every hop must pass the same allow-list as the first request
	scoped := *client
	scoped.CheckRedirect = f.checkRedirect
	f.client = &scoped
	for _, host := range params.AllowedHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			f.allowed = append(f.allowed, host)
		}
	}
	if raw := strings.TrimSpace(params.PublicURL); raw != "" {
		origin, err := url.Parse(raw)
		if err != nil || origin.Host == "" {
			return nil, fmt.Errorf("invalid public url %q", raw)
		}
		f.origin = origin
	}
	return f, nil
}

// Fetch returns the sniffed document behind raw, which may be an absolute
// URL, a same-origin path or a data: URL.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (*Document, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "url is required")
	}
	if strings.HasPrefix(strings.ToLower(raw), "data:") {
		body, declared, err := decodeDataURL(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid data url")
		}
		if int64(len(body)) > f.maxBytes {
			return nil, tooLarge(f.maxBytes)
		}
		return newDocument(body, declared), nil
	}

	target, err := f.Resolve(raw)
	if err != nil {
		return nil, err
	}
	return f.get(ctx, target)
}

// Resolve validates raw against the allow-list and returns the absolute URL.
func (f *Fetcher) Resolve(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid url")
	}
	if !u.IsAbs() {
		if f.origin == nil || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "relative label urls must be same-origin paths")
		}
		return f.origin.ResolveReference(u), nil
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported url scheme")
	}
	if u.User != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credentials in url are not allowed")
	}
	if f.origin != nil && strings.EqualFold(u.Host, f.origin.Host) {
		return u, nil
	}
	if !f.hostAllowed(u.Hostname()) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "label host not allowed").
			WithDetails(map[string]any{"host": u.Hostname()})
	}
	return u, nil
}

// hostAllowed matches exact hosts and "*.example.com" patterns. A wildcard
// matches subdomains only, never the bare parent domain.
func (f *Fetcher) hostAllowed(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, pattern := range f.allowed {
		if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	return false
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > maxRedirects {
		return pkgerrors.New(pkgerrors.CodeDependency, "label host redirected too many times").
			WithDetails(map[string]any{"max_redirects": maxRedirects})
	}
	_, err := f.Resolve(req.URL.String())
	return err
}

func (f *Fetcher) get(ctx context.Context, target *url.URL) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build label request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch label")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "label host returned an error").
			WithDetails(map[string]any{"status": resp.StatusCode})
	}
	if resp.ContentLength > f.maxBytes {
		return nil, tooLarge(f.maxBytes)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read label")
	}
	if int64(len(body)) > f.maxBytes {
		return nil, tooLarge(f.maxBytes)
	}
	return newDocument(body, resp.Header.Get("Content-Type")), nil
}

func tooLarge(limit int64) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "label document too large").
		WithDetails(map[string]any{"max_bytes": limit})
}

// decodeDataURL handles data:[<mediatype>][;base64],<payload>.
func decodeDataURL(raw string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(raw[len("data:"):], ",")
	if !ok {
		return nil, "", fmt.Errorf("missing comma")
	}
	mediaType := header
	isBase64 := false
	if strings.HasSuffix(strings.ToLower(header), ";base64") {
		mediaType = header[:len(header)-len(";base64")]
		isBase64 = true
	}

	if !isBase64 {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", err
		}
		return []byte(decoded), mediaType, nil
	}

	payload = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	if unescaped, err := url.PathUnescape(payload); err == nil {
		payload = unescaped
	}
	body, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		body, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", err
		}
	}
	return body, mediaType, nil
}
