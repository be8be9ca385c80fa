package llm

import (
	"errors"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markdave123-py/smartdoc/internal/core"
)

// kindOf maps a provider error onto one of core's error kinds. Anything not
// recognisably an auth or throttling failure is a transport failure.
func kindOf(err error) error {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if ae.Reason() == "API_KEY_INVALID" {
			return core.ErrAuth
		}
		if k := kindFromHTTP(ae.HTTPCode()); k != nil {
			return k
		}
		if s := ae.GRPCStatus(); s != nil {
			return kindFromGRPC(s.Code())
		}
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		if k := kindFromHTTP(ge.Code); k != nil {
			return k
		}
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		if strings.Contains(s.Message(), "API key not valid") {
			return core.ErrAuth
		}
		return kindFromGRPC(s.Code())
	}

	return core.ErrTransport
}

func kindFromHTTP(code int) error {
	switch {
	case code <= 0:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return core.ErrAuth
	case code == http.StatusTooManyRequests:
		return core.ErrRateLimit
	default:
		return core.ErrTransport
	}
}

func kindFromGRPC(code codes.Code) error {
	switch code {
	case codes.Unauthenticated, codes.PermissionDenied:
		return core.ErrAuth
	case codes.ResourceExhausted:
		return core.ErrRateLimit
	default:
		return core.ErrTransport
	}
}
