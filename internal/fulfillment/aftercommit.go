package fulfillment

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"go.uber.org/multierr"
)

type sideEffect struct {
	name string
	run  func(ctx context.Context) error
}

// afterCommit runs side effects that follow an irreversible carrier action.
// Every effect runs even when an earlier one fails or panics; failures are
// logged and returned combined so callers can count them, never act on them.
type afterCommit struct {
	logg    *logger.Logger
	effects []sideEffect
}

func newAfterCommit(logg *logger.Logger) *afterCommit {
	return &afterCommit{logg: logg}
}

func (a *afterCommit) add(name string, fn func(ctx context.Context) error) {
	a.effects = append(a.effects, sideEffect{name: name, run: fn})
}

func (a *afterCommit) run(ctx context.Context) error {
	var errs error
	for _, effect := range a.effects {
		err := runSafely(ctx, effect)
		if err == nil {
			continue
		}
		if a.logg != nil {
			a.logg.Error(a.logg.WithField(ctx, "side_effect", effect.name), "fulfillment.side_effect_failed", err)
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", effect.name, err))
	}
	return errs
}

func runSafely(ctx context.Context, effect sideEffect) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return effect.run(ctx)
}
