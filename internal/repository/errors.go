package repository

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/gotaku-app/gotaku/internal/gateway"
)

// Kind classifies a failed operation so callers can branch on the cause
// without parsing message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetworkUnavailable
	KindTimeout
	KindAccessDenied
	KindNotFound
	KindAllSourcesFailed
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindTimeout:
		return "timeout"
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	case KindAllSourcesFailed:
		return "all_sources_failed"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the failure a repository operation surfaces once every source has
// been tried. The envelope returned alongside it carries the same message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Classify maps an error to its Kind. Cancellation wins over everything so a
// canceled request never shows up as a network problem.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return repoErr.Kind
	}
	var statusErr *gateway.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 403:
			return KindAccessDenied
		case 404:
			return KindNotFound
		}
		return KindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindNetworkUnavailable
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return KindNetworkUnavailable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetworkUnavailable
	}
	if strings.Contains(err.Error(), "no such host") {
		return KindNetworkUnavailable
	}
	return KindUnknown
}

// IsCanceled reports whether err came from context cancellation.
func IsCanceled(err error) bool {
	return Classify(err) == KindCanceled
}

// userMessage is the text shown for an exhausted operation. Kinds without a
// dedicated message keep the synthetic envelope text.
func userMessage(kind Kind, fallback string) string {
	switch kind {
	case KindNetworkUnavailable:
		return "No internet connection. Check your network and try again."
	case KindTimeout:
		return "The source is taking too long to respond. Try again in a moment."
	case KindAccessDenied:
		return "The source refused the request (HTTP 403). It may be blocking clients right now."
	case KindNotFound:
		return "Nothing was found for this request."
	default:
		return fallback
	}
}
