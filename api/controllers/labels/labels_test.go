package labels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internallabels "github.com/angelmondragon/storefront-backend/internal/labels"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubFetcher struct {
	doc *internallabels.Document
	err error
	got string
}

func (s *stubFetcher) Fetch(_ context.Context, raw string) (*internallabels.Document, error) {
	s.got = raw
	return s.doc, s.err
}

const labelURL = "https://deliver.goshippo.com/label.pdf"

func TestProxyStreamsSniffedDocument(t *testing.T) {
	body := []byte("%PDF-1.4 fake")
	f := &stubFetcher{doc: &internallabels.Document{Body: body, ContentType: "application/pdf", Kind: internallabels.KindPDF}}

	rec := httptest.NewRecorder()
	Proxy(f, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/labels/proxy?url="+url.QueryEscape(labelURL), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, labelURL, f.got)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, body, rec.Body.Bytes())
}

func TestProxyRequiresURL(t *testing.T) {
	rec := httptest.NewRecorder()
	Proxy(&stubFetcher{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/labels/proxy", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxyForbiddenHost(t *testing.T) {
	f := &stubFetcher{err: pkgerrors.New(pkgerrors.CodeForbidden, "label host not allowed")}
	rec := httptest.NewRecorder()
	Proxy(f, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/labels/proxy?url=https%3A%2F%2Fevil.example%2Fx", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPrintEmbedsProxyURL(t *testing.T) {
	f := &stubFetcher{doc: &internallabels.Document{Kind: internallabels.KindImage, ContentType: "image/png"}}
	rec := httptest.NewRecorder()
	Print(f, "/api/admin/v1/labels/proxy", nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/labels/print?url="+url.QueryEscape(labelURL), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	page := rec.Body.String()
	assert.Contains(t, page, "<img")
	assert.Contains(t, page, "/api/admin/v1/labels/proxy?url=https%3A%2F%2Fdeliver.goshippo.com%2Flabel.pdf")
}

func TestPrintUnknownOffersLink(t *testing.T) {
	f := &stubFetcher{doc: &internallabels.Document{Kind: internallabels.KindUnknown, ContentType: "application/octet-stream"}}
	rec := httptest.NewRecorder()
	Print(f, "/labels/proxy", nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/labels/print?url="+url.QueryEscape(labelURL), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Open the label in a new tab")
}
