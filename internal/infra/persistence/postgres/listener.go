package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const reconnectDelay = time.Second

// PGXListener returns a ListenFunc that holds a dedicated pgx connection in
// LISTEN mode, reconnecting after connection failures until ctx is done.
func PGXListener(dsn string, logger *zap.Logger) ListenFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, channel string, onNotify func(string)) error {
		for {
			err := listenOnce(ctx, dsn, channel, onNotify)
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("postgres listener disconnected", zap.String("channel", channel), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(reconnectDelay):
			}
		}
	}
}

func listenOnce(ctx context.Context, dsn, channel string, onNotify func(string)) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		onNotify(n.Payload)
	}
}
