package handler

import (
	"errors"
	"strconv"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/internal/i18n"
	"github.com/amoylab/umbra/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

type User struct {
	logger *zap.Logger
	db     store.Store
}

func NewUser(logger *zap.Logger, db store.Store) *User {
	return &User{logger: logger.Named("handler.user"), db: db}
}

// HandleRegister creates an account bound to the caller's device
func (h *User) HandleRegister(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if c.GetHeader(cnst.XDeviceID) != req.DeviceID {
		badRequest(c, "device id in header does not match body")
		return
	}

	user, err := h.db.CreateUser(c.Request.Context(), req.DeviceID, req.Nickname, req.PublicKey)
	if err != nil {
		if errors.Is(err, store.ErrDeviceTaken) {
			i18n.RespondWithError(c, i18n.ErrorDeviceTaken)
			return
		}
		h.logger.Error("failed to register user", zap.Error(err))
		internalError(c, "registration failed")
		return
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	i18n.Created(i18n.SuccessUserRegistered).WithPayload(user).Send(c)
}

// HandleMe returns the caller's own account
func (h *User) HandleMe(c *gin.Context) {
	i18n.Success(i18n.SuccessUserInfo).WithPayload(caller(c)).Send(c)
}

// HandleUpdateMe rotates the caller's public key
func (h *User) HandleUpdateMe(c *gin.Context) {
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.db.UpdatePublicKey(c.Request.Context(), caller(c).ID, req.PublicKey)
	if err != nil {
		h.logger.Error("failed to update public key", zap.Error(err))
		internalError(c, "update failed")
		return
	}
	i18n.Success(i18n.SuccessUserUpdated).WithPayload(user).Send(c)
}

// HandleSearch finds users by nickname prefix
func (h *User) HandleSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		badRequest(c, "q is required")
		return
	}
	limit := defaultSearchLimit
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = min(n, maxSearchLimit)
		}
	}

	users, err := h.db.SearchUsers(c.Request.Context(), query, limit)
	if err != nil {
		h.logger.Error("failed to search users", zap.Error(err))
		internalError(c, "search failed")
		return
	}
	self := caller(c).ID
	users = lo.Filter(users, func(u *store.User, _ int) bool { return u.ID != self })
	i18n.Success(i18n.SuccessUserSearch).WithPayload(lo.Map(users, toPublic)).Send(c)
}

// HandleGetUser returns another user's public profile
func (h *User) HandleGetUser(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	user, err := h.db.FindUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			i18n.RespondWithError(c, i18n.ErrorUserNotFound)
			return
		}
		internalError(c, "lookup failed")
		return
	}
	i18n.Success(i18n.SuccessUserInfo).WithPayload(toPublic(user, 0)).Send(c)
}

// HandleGetByNickname returns the public profile registered under an exact nickname
func (h *User) HandleGetByNickname(c *gin.Context) {
	user, err := h.db.FindUserByNickname(c.Request.Context(), c.Param("nickname"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			i18n.RespondWithError(c, i18n.ErrorUserNotFound)
			return
		}
		h.logger.Error("failed to look up nickname", zap.Error(err))
		internalError(c, "lookup failed")
		return
	}
	i18n.Success(i18n.SuccessUserInfo).WithPayload(toPublic(user, 0)).Send(c)
}

func toPublic(u *store.User, _ int) dto.UserPublic {
	return dto.UserPublic{UserID: u.ID, Nickname: u.Nickname, PublicKey: u.PublicKey}
}
