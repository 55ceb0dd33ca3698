package presence

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogNotifier writes presence transitions to the log only
type LogNotifier struct {
	logger *zap.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("presence.log")}
}

func (n *LogNotifier) Online(_ context.Context, userID uuid.UUID, displayName string) error {
	n.logger.Info("user online",
		zap.String("user_id", userID.String()),
		zap.String("display_name", displayName))
	return nil
}

func (n *LogNotifier) Offline(_ context.Context, userID uuid.UUID) error {
	n.logger.Info("user offline", zap.String("user_id", userID.String()))
	return nil
}

func (n *LogNotifier) Close() error {
	return nil
}
