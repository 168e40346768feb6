package payments

import (
	"errors"
	"fmt"

	"apgc/backend/internal/integrations/xendit"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("registration state conflict")
	ErrInternal         = errors.New("internal error")

	ErrGatewayUnavailable = xendit.ErrGatewayUnavailable
	ErrInvalidAmount      = xendit.ErrInvalidAmount
)

func internalErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
