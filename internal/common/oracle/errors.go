package oracle

import (
	"context"
	"errors"

	apperrors "hajj-assistant/internal/common/errors"
)

// AsStandardError maps an oracle failure onto the shared taxonomy. Context
// cancellation is returned as is so abandoned turns stay distinguishable.
func AsStandardError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, ErrTimeout):
		return apperrors.NewOracleTimeoutError(err)
	default:
		return apperrors.NewOracleUnavailableError(err)
	}
}
