package service

import (
	"context"
	"errors"

	"settlement-ledger/pkg/apperror"
)

// storageError maps a repository failure to an AppError. Deadline and
// cancellation of ctx take precedence over the raw driver error.
func storageError(ctx context.Context, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperror.ErrTimeout(err)
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return apperror.ErrCancelled(err)
	}
	return apperror.InternalError(err)
}
