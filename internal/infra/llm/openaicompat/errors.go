package openaicompat

import (
	"fmt"
	"net/http"

	apperrors "github.com/polaris/gateway/pkg/errors"
)

// classifyStatus maps a provider's HTTP status to the gateway's upstream error
// taxonomy, so callers can decide whether to retry, surface auth misconfiguration, or
// back off on rate limits.
func classifyStatus(provider string, status int, body []byte) error {
	msg := fmt.Sprintf("%s: upstream status=%d body=%s", provider, status, truncate(body, 500))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.UpstreamAuth(msg, nil)
	case status == http.StatusTooManyRequests:
		return apperrors.UpstreamRate(msg, nil)
	case status >= 500:
		return apperrors.UpstreamTransient(msg, nil)
	default:
		return apperrors.UpstreamTransient(msg, nil)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
