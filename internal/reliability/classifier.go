package reliability

import (
	"context"
	"errors"
	"net"
	"strconv"

	"github.com/ent0n29/personachat/internal/upstream"
)

// Failure kinds used as metric labels and log fields.
const (
	KindTimeout   = "timeout"
	KindCanceled  = "canceled"
	KindNetwork   = "network"
	KindMalformed = "malformed_response"
	KindUnknown   = "unknown"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// Classification describes an upstream failure for operators. Requests are
// never retried; Retryable only tells whether a client retry could succeed.
type Classification struct {
	Kind       string
	StatusCode int
	Retryable  bool
}

func ClassifyUpstream(err error) Classification {
	var se *upstream.StatusError
	switch {
	case err == nil:
		return Classification{}
	case errors.As(err, &se):
		return Classification{
			Kind:       "status_" + strconv.Itoa(se.StatusCode),
			StatusCode: se.StatusCode,
			Retryable:  IsRetryableHTTPStatus(se.StatusCode),
		}
	case errors.Is(err, upstream.ErrMalformedResponse):
		return Classification{Kind: KindMalformed}
	case errors.Is(err, context.DeadlineExceeded):
		return Classification{Kind: KindTimeout, Retryable: true}
	case errors.Is(err, context.Canceled):
		return Classification{Kind: KindCanceled}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Classification{Kind: KindTimeout, Retryable: true}
		}
		return Classification{Kind: KindNetwork, Retryable: true}
	}
	return Classification{Kind: KindUnknown}
}
