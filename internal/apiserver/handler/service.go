package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/internal/i18n"
	"github.com/amoylab/umbra/internal/realtime/session"
	"github.com/amoylab/umbra/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// OnlineLister reports the registered sessions
type OnlineLister interface {
	Count() int
	ListOnline() []session.OnlineUser
}

// QueueStats reports offline queue depths
type QueueStats interface {
	Total() int
	Stats() map[uuid.UUID]int
}

// Service serves health and connection statistics
type Service struct {
	sessions  OnlineLister
	queues    QueueStats
	startedAt time.Time
	now       func() time.Time
}

func NewService(sessions OnlineLister, queues QueueStats) *Service {
	return &Service{
		sessions:  sessions,
		queues:    queues,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// HandleHealth reports liveness and the build version
func (h *Service) HandleHealth(c *gin.Context) {
	i18n.Success(i18n.SuccessServiceHealthy).WithPayload(gin.H{
		"status":  "healthy",
		"service": cnst.AppName,
		"version": version.Get(),
	}).Send(c)
}

// HandleWSInfo reports how many users are online and how many messages wait offline
func (h *Service) HandleWSInfo(c *gin.Context) {
	c.JSON(http.StatusOK, dto.WSInfo{
		OnlineUsers:     h.sessions.Count(),
		OfflineMessages: h.queues.Total(),
	})
}

// HandleWSStats reports per-session and per-queue details
func (h *Service) HandleWSStats(c *gin.Context) {
	online := h.sessions.ListOnline()
	queues := h.queues.Stats()
	now := h.now()

	c.JSON(http.StatusOK, dto.WSStats{
		OnlineUsers: len(online),
		Sessions: lo.Map(online, func(u session.OnlineUser, _ int) dto.OnlineSession {
			return dto.OnlineSession{
				UserID:      u.UserID,
				DisplayName: u.DisplayName,
				ConnectedAt: dto.FormatTimestamp(u.ConnectedAt),
			}
		}),
		TotalOfflineMessages:     lo.Sum(lo.Values(queues)),
		UsersWithOfflineMessages: len(queues),
		OfflineQueueDetails: lo.MapEntries(queues, func(id uuid.UUID, n int) (string, int) {
			return id.String(), n
		}),
		ServerTime:   dto.FormatTimestamp(now),
		ServerUptime: strconv.FormatInt(int64(now.Sub(h.startedAt).Seconds()), 10) + "s",
	})
}
