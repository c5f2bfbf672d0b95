package nakama

import (
	"errors"

	"comparity/internal/app"

	"github.com/heroiclabs/nakama-common/runtime"
)

// gRPC codes used directly by the RPC layer.
const (
	codeInvalidArgument = 3
	codeInternal        = 13
	codeUnauthenticated = 16
)

var (
	errNoUserID       = runtime.NewError("user id missing from context", codeUnauthenticated)
	errInvalidPayload = runtime.NewError("invalid payload", codeInvalidArgument)
)

// toRuntimeError maps service errors onto Nakama runtime errors.
func toRuntimeError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *app.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == app.KindInternal {
			return runtime.NewError("internal error", codeInternal)
		}
		return runtime.NewError(appErr.Message, appErr.Kind.GRPCCode())
	}
	return runtime.NewError("internal error", codeInternal)
}
