package core

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"schoolcoord/pkg/domain"
)

// TieredAdapter combines a local store with an optional remote store.
// Loads prefer the remote snapshot and fall back to the local one; saves
// always write locally first so a remote outage never loses an edit.
type TieredAdapter struct {
	local  domain.PersistenceAdapter
	remote domain.PersistenceAdapter
	logger *zap.Logger
}

var _ domain.PersistenceAdapter = (*TieredAdapter)(nil)

// NewTieredAdapter composes local and remote. remote may be nil.
func NewTieredAdapter(local, remote domain.PersistenceAdapter, logger *zap.Logger) *TieredAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredAdapter{local: local, remote: remote, logger: logger}
}

// Driver describes both tiers, e.g. "sqlite+postgres".
func (t *TieredAdapter) Driver() string {
	if t.remote == nil {
		return t.local.Driver()
	}
	return t.local.Driver() + "+" + t.remote.Driver()
}

// Load returns the remote snapshot when available, else the local one.
func (t *TieredAdapter) Load(ctx context.Context) (domain.Registry, bool, error) {
	if t.remote != nil {
		reg, ok, err := t.remote.Load(ctx)
		switch {
		case err != nil:
			t.logger.Warn("remote load failed, using local store", zap.String("driver", t.remote.Driver()), zap.Error(err))
		case ok:
			return reg, true, nil
		}
	}
	reg, ok, err := t.local.Load(ctx)
	if err != nil {
		return domain.Registry{}, false, domain.WrapPersistence(t.local.Driver(), "load", err)
	}
	return reg, ok, nil
}

// Save writes to the local store, then to the remote store. Both failures
// are reported together.
func (t *TieredAdapter) Save(ctx context.Context, reg domain.Registry) error {
	var errs []error
	if err := t.local.Save(ctx, reg); err != nil {
		errs = append(errs, domain.WrapPersistence(t.local.Driver(), "save", err))
	}
	if t.remote != nil {
		if err := t.remote.Save(ctx, reg); err != nil {
			errs = append(errs, domain.WrapPersistence(t.remote.Driver(), "save", err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe listens on the remote store when configured, otherwise on the
// local store. Remote updates are mirrored into the local store.
func (t *TieredAdapter) Subscribe(ctx context.Context, onChange func(domain.Registry)) (domain.Unsubscribe, error) {
	if t.remote == nil {
		return t.local.Subscribe(ctx, onChange)
	}
	return t.remote.Subscribe(ctx, func(reg domain.Registry) {
		if err := t.local.Save(ctx, reg); err != nil {
			t.logger.Warn("mirror remote snapshot locally failed", zap.String("driver", t.local.Driver()), zap.Error(err))
		}
		onChange(reg)
	})
}
