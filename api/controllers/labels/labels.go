package labels

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internallabels "github.com/angelmondragon/storefront-backend/internal/labels"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fetcher interface {
	Fetch(ctx context.Context, raw string) (*internallabels.Document, error)
}

// Proxy streams an allow-listed label document from the storefront's own
// origin so the admin UI can embed and print it.
func Proxy(f fetcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label fetcher unavailable"))
			return
		}
		raw, err := validators.RequireQueryString(r, "url")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		doc, err := f.Fetch(r.Context(), raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Expose-Headers", "Content-Type, Content-Length")
		h.Set("Content-Type", doc.ContentType)
		h.Set("Content-Length", strconv.Itoa(len(doc.Body)))
		h.Set("Content-Disposition", "inline")
		h.Set("Cache-Control", "private, max-age=300")
		h.Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = bytes.NewReader(doc.Body).WriteTo(w)
		}
	}
}

// Print renders a printable page around the proxied document. The document
// is fetched once here to pick the embedding.
func Print(f fetcher, proxyPath string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "label fetcher unavailable"))
			return
		}
		raw, err := validators.RequireQueryString(r, "url")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		doc, err := f.Fetch(r.Context(), raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		src := proxyPath + "?url=" + url.QueryEscape(raw)
		var page bytes.Buffer
		if err := internallabels.RenderPrint(&page, doc.Kind, src); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render print page"))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = page.WriteTo(w)
	}
}
