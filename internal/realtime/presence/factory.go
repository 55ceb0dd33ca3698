package presence

import (
	"fmt"

	"github.com/amoylab/umbra/internal/common/config"

	"go.uber.org/zap"
)

// Type represents the presence backend
type Type string

const (
	TypeLog   Type = "log"
	TypeRedis Type = "redis"
)

// NewNotifier creates a notifier based on the configuration
func NewNotifier(logger *zap.Logger, cfg *config.PresenceConfig) (Notifier, error) {
	switch Type(cfg.Type) {
	case TypeLog, "":
		return NewLogNotifier(logger), nil
	case TypeRedis:
		return NewRedisNotifier(logger, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported presence type: %s", cfg.Type)
	}
}
