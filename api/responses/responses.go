package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// SuccessEnvelope wraps every 2xx JSON body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Codes whose message is written by our own code and safe to show.
var publicMessageCodes = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:      true,
	pkgerrors.CodeForbidden:       true,
	pkgerrors.CodeUnauthorized:    true,
	pkgerrors.CodeNotFound:        true,
	pkgerrors.CodeConflict:        true,
	pkgerrors.CodeStateConflict:   true,
	pkgerrors.CodeIdempotency:     true,
	pkgerrors.CodeRateLimit:       true,
	pkgerrors.CodeConfiguration:   true,
	pkgerrors.CodeCarrierRejected: true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteNoContent answers deletes.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := APIError{Code: string(typed.Code()), Message: meta.PublicMessage}
	if publicMessageCodes[typed.Code()] && typed.Message() != "" {
		apiErr.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}

	if logg != nil {
		logRequestError(ctx, logg, err, meta)
	}

	writeJSON(w, meta.HTTPStatus, ErrorEnvelope{Error: apiErr})
}

func logRequestError(ctx context.Context, logg *logger.Logger, err error, meta pkgerrors.Metadata) {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
		"http_status": meta.HTTPStatus,
		"retryable":   pkgerrors.Retryable(err),
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_constraint"] = dump.PGConstraint
		fields["pg_table"] = dump.PGTable
		fields["pg_detail"] = dump.PGDetail
	}
	if dump.UpstreamStatus != 0 {
		fields["upstream_status"] = dump.UpstreamStatus
	}
	if dm, ok := dump.Details.(map[string]any); ok {
		for _, key := range []string{"provider", "order_id", "shipment_id", "step"} {
			if v, ok := dm[key]; ok {
				fields[key] = v
			}
		}
	}

	ctx = logg.WithFields(ctx, fields)
	if meta.HTTPStatus >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
