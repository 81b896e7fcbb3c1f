package labels

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n%%EOF\n")
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	gifBytes = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	jpgBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 16)...)
)

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		body []byte
		kind Kind
		ct   string
	}{
		{"pdf", pdfBytes, KindPDF, "application/pdf"},
		{"png", pngBytes, KindImage, "image/png"},
		{"gif", gifBytes, KindImage, "image/gif"},
		{"jpeg", jpgBytes, KindImage, "image/jpeg"},
		{"zpl", []byte("^XA^FO50,50^FDHello^FS^XZ"), KindUnknown, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, ct := Sniff(tc.body)
			assert.Equal(t, tc.kind, kind)
			if tc.ct != "" {
				assert.Equal(t, tc.ct, ct)
			}
		})
	}
}

func newTestFetcher(t *testing.T, server *httptest.Server, extra ...string) *Fetcher {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	f, err := NewFetcher(Params{
		AllowedHosts: append([]string{u.Hostname()}, extra...),
		MaxBytes:     1024,
		Client:       server.Client(),
	})
	require.NoError(t, err)
	return f
}

func TestFetchSniffsIgnoringDeclaredType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pdfBytes)
	}))
	defer server.Close()

	doc, err := newTestFetcher(t, server).Fetch(context.Background(), server.URL+"/label.bin")
	require.NoError(t, err)
	assert.Equal(t, KindPDF, doc.Kind)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, pdfBytes, doc.Body)
}

func TestFetchUnknownFallsBackToOctetStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><script>alert(1)</script></html>"))
	}))
	defer server.Close()

	doc, err := newTestFetcher(t, server).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, doc.Kind)
	assert.Equal(t, "application/octet-stream", doc.ContentType)
}

func TestFetchRejectsOversizedBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 2048))
	}))
	defer server.Close()

	_, err := newTestFetcher(t, server).Fetch(context.Background(), server.URL)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFetchUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestFetcher(t, server).Fetch(context.Background(), server.URL)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestFetchRejectsRedirectToDisallowedHost(t *testing.T) {
	var leaked bool
	mux := http.NewServeMux()
	mux.HandleFunc("/internal", func(w http.ResponseWriter, r *http.Request) {
		leaked = true
		_, _ = w.Write(pdfBytes)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	mux.HandleFunc("/label.pdf", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://localhost:"+u.Port()+"/internal", http.StatusFound)
	})

	_, err = newTestFetcher(t, server).Fetch(context.Background(), server.URL+"/label.pdf")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)
	assert.False(t, leaked)
}

func TestFetchFollowsAllowedRedirectsWithinLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/final.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pdfBytes)
	})
	mux.HandleFunc("/hop/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final.pdf", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	f := newTestFetcher(t, server)

	doc, err := f.Fetch(context.Background(), server.URL+"/hop/1")
	require.NoError(t, err)
	assert.Equal(t, KindPDF, doc.Kind)

	_, err = f.Fetch(context.Background(), server.URL+"/loop")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
}

func TestResolveAllowList(t *testing.T) {
	f, err := NewFetcher(Params{
		AllowedHosts: []string{"*.goshippo.com", "labels.example.com"},
		PublicURL:    "https://shop.example.com",
	})
	require.NoError(t, err)

	allowed := []string{
		"https://deliver.goshippo.com/label.pdf",
		"https://a.b.goshippo.com/x",
		"https://labels.example.com/l.png",
		"https://shop.example.com/uploads/l.pdf",
	}
	for _, raw := range allowed {
		_, err := f.Resolve(raw)
		assert.NoError(t, err, raw)
	}

	forbidden := []string{
		"https://goshippo.com/label.pdf",
		"https://evilgoshippo.com/label.pdf",
		"https://goshippo.com.evil.io/label.pdf",
		"https://other.example.com/l.png",
	}
	for _, raw := range forbidden {
		_, err := f.Resolve(raw)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), raw)
	}

	invalid := []string{
		"ftp://labels.example.com/l.pdf",
		"https://user:pw@labels.example.com/l.pdf",
		"//labels.example.com/l.pdf",
		"uploads/l.pdf",
	}
	for _, raw := range invalid {
		_, err := f.Resolve(raw)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), raw)
	}

	resolved, err := f.Resolve("/uploads/l.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/uploads/l.pdf", resolved.String())
}

func TestResolveRelativeWithoutPublicURL(t *testing.T) {
	f, err := NewFetcher(Params{})
	require.NoError(t, err)
	_, err = f.Resolve("/uploads/l.pdf")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFetchDataURL(t *testing.T) {
	f, err := NewFetcher(Params{MaxBytes: 1024})
	require.NoError(t, err)

	encoded := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdfBytes)
	doc, err := f.Fetch(context.Background(), encoded)
	require.NoError(t, err)
	assert.Equal(t, KindPDF, doc.Kind)

	// Claimed type is ignored; the bytes are a PNG.
	lying := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	doc, err = f.Fetch(context.Background(), lying)
	require.NoError(t, err)
	assert.Equal(t, KindImage, doc.Kind)
	assert.Equal(t, "image/png", doc.ContentType)

	plain, err := f.Fetch(context.Background(), "data:text/plain,%5EXA%5EXZ")
	require.NoError(t, err)
	assert.Equal(t, "^XA^XZ", string(plain.Body))
	assert.Equal(t, "text/plain", plain.ContentType)

	_, err = f.Fetch(context.Background(), "data:application/pdf;base64")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.Fetch(context.Background(), "data:application/pdf;base64,@@@")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRenderPrint(t *testing.T) {
	src := "/api/v1/labels/proxy?url=" + url.QueryEscape("https://deliver.goshippo.com/l.pdf")

	var pdf bytes.Buffer
	require.NoError(t, RenderPrint(&pdf, KindPDF, src))
	assert.Contains(t, pdf.String(), `<embed class="label"`)
	assert.Contains(t, pdf.String(), "window.print()")

	var img bytes.Buffer
	require.NoError(t, RenderPrint(&img, KindImage, src))
	assert.Contains(t, img.String(), "<img")

	var unknown bytes.Buffer
	require.NoError(t, RenderPrint(&unknown, KindUnknown, src))
	assert.Contains(t, unknown.String(), `target="_blank"`)
	assert.False(t, strings.Contains(unknown.String(), "<embed"))
}
