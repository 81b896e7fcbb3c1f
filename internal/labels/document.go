package labels

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Kind string

const (
	KindPDF     Kind = "pdf"
	KindImage   Kind = "image"
	KindUnknown Kind = "unknown"
)

var imageTypes = []string{"image/png", "image/jpeg", "image/gif"}

// Document is a fetched label with its content type taken from the bytes,
// not from what the remote host claimed.
type Document struct {
	Body        []byte
	ContentType string
	Kind        Kind
}

func newDocument(body []byte, declared string) *Document {
	kind, contentType := Sniff(body)
	if kind == KindUnknown {
		contentType = fallbackContentType(declared)
	}
	return &Document{Body: body, ContentType: contentType, Kind: kind}
}

// Sniff classifies body by its magic bytes.
func Sniff(body []byte) (Kind, string) {
	detected := mimetype.Detect(body)
	if detected.Is("application/pdf") {
		return KindPDF, "application/pdf"
	}
	for _, candidate := range imageTypes {
		if detected.Is(candidate) {
			return KindImage, candidate
		}
	}
	return KindUnknown, detected.String()
}

// Unknown documents are served as an opaque download unless the upstream
// declared something harmless.
func fallbackContentType(declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.Index(declared, ";"); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	switch declared {
	case "text/plain", "application/zpl", "application/x-zpl":
		return declared
	}
	return "application/octet-stream"
}
