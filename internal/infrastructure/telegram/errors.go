package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/tgerr"

	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

// classify maps MTProto errors onto the shared error taxonomy.
// RPC errors that are neither flood waits nor auth failures are returned as is.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if wait, ok := tgerr.AsFloodWait(err); ok {
		return pkgerrors.NewRateLimitExceededError(fmt.Sprintf("telegram flood wait %s", wait), err)
	}

	var rpcErr *tgerr.Error
	if errors.As(err, &rpcErr) {
		if isAuthError(rpcErr) {
			return pkgerrors.NewAuthorizationError("telegram rejected the session", err)
		}
		if rpcErr.Code >= 500 {
			return pkgerrors.NewTransientConnectionError("telegram internal error", err)
		}
		return err
	}

	if pkgerrors.IsAuthorization(err) || pkgerrors.IsValidation(err) || pkgerrors.IsRateLimited(err) {
		return err
	}

	return pkgerrors.NewTransientConnectionError("telegram connection failed", err)
}

func isAuthError(rpcErr *tgerr.Error) bool {
	if rpcErr.Code == 401 {
		return true
	}

	return strings.HasPrefix(rpcErr.Type, "AUTH_KEY_") ||
		strings.HasPrefix(rpcErr.Type, "SESSION_") ||
		rpcErr.Type == "USER_DEACTIVATED" ||
		rpcErr.Type == "USER_DEACTIVATED_BAN"
}
