package main

import (
	"context"
	"time"

	dErrors "checkin/pkg/domain-errors"
)

const defaultCorrectionTxTimeout = 5 * time.Second

type txStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// correctionTx bounds an admin correction and its audit write to one
// transaction with a deadline.
type correctionTx struct {
	store   txStore
	timeout time.Duration
}

func newCorrectionTx(store txStore) *correctionTx {
	return &correctionTx{store: store}
}

func (t *correctionTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultCorrectionTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return t.store.RunInTx(ctx, fn)
}
