package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"schoolcoord/internal/blob"
	"schoolcoord/internal/config"
	"schoolcoord/internal/infra/persistence/blobdoc"
	"schoolcoord/internal/infra/persistence/memory"
	"schoolcoord/internal/infra/persistence/natskv"
	"schoolcoord/internal/infra/persistence/postgres"
	"schoolcoord/internal/infra/persistence/sqlite"
	"schoolcoord/pkg/domain"
)

// Storage is an opened persistence stack together with the resources it owns.
type Storage struct {
	Adapter domain.PersistenceAdapter
	closers []func() error
}

// Close releases every owned resource, reporting all failures.
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenStorage builds the local adapter selected by cfg.LocalDriver and, when
// cfg.RemoteDriver is set, composes it with the remote adapter in a
// TieredAdapter.
//
//	SCHOOLCOORD_LOCAL_DRIVER: memory|sqlite|blob (default sqlite)
//	SCHOOLCOORD_REMOTE_DRIVER: ""|postgres|nats|s3 (default disabled)
func OpenStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	st := &Storage{}
	local, err := st.openLocal(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}
	if !cfg.RemoteEnabled() {
		st.Adapter = local
		return st, nil
	}
	remote, err := st.openRemote(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}
	st.Adapter = NewTieredAdapter(local, remote, logger)
	return st, nil
}

func (s *Storage) openLocal(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.PersistenceAdapter, error) {
	switch cfg.LocalDriver {
	case config.LocalMemory:
		return memory.NewStore(), nil
	case config.LocalSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		return store, nil
	case config.LocalBlob:
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return blobdoc.New(blobs,
			blobdoc.WithPollInterval(cfg.PollInterval),
			blobdoc.WithLogger(logger.Named("blobdoc")),
		), nil
	default:
		return nil, fmt.Errorf("unknown local driver %s", cfg.LocalDriver)
	}
}

func (s *Storage) openRemote(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.PersistenceAdapter, error) {
	switch cfg.RemoteDriver {
	case config.RemotePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, postgres.WithLogger(logger.Named("postgres")))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		return store, nil
	case config.RemoteNATS:
		store, err := natskv.Connect(ctx, cfg.NATSURL, cfg.NATSBucket, natskv.WithLogger(logger.Named("nats")))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		return store, nil
	case config.RemoteS3:
		blobs, err := blob.OpenS3(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("open s3 store: %w", err)
		}
		return blobdoc.New(blobs,
			blobdoc.WithPollInterval(cfg.PollInterval),
			blobdoc.WithLogger(logger.Named("s3")),
		), nil
	default:
		return nil, fmt.Errorf("unknown remote driver %s", cfg.RemoteDriver)
	}
}
