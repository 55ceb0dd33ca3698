package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amoylab/umbra/internal/common/cnst"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DB implements Store on top of gorm. The dialect is chosen by NewStore.
type DB struct {
	logger *zap.Logger
	db     *gorm.DB
}

var _ Store = (*DB)(nil)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Close closes the database connection
func (s *DB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn inside a database transaction
func (s *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if TransactionFromContext(ctx) != nil {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTransaction(ctx, tx))
	})
}

func (s *DB) CreateUser(ctx context.Context, deviceID, nickname, publicKey string) (*User, error) {
	user := &User{
		ID:           uuid.New(),
		DeviceDigest: DeviceDigest(deviceID),
		Nickname:     nickname,
		PublicKey:    publicKey,
	}
	err := s.Transaction(ctx, func(ctx context.Context) error {
		db := getDBFromContext(ctx, s.db)
		var count int64
		if err := db.Model(&User{}).Where("device_digest = ?", user.DeviceDigest).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDeviceTaken
		}
		return db.Create(user).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("nickname", nickname))
	return user, nil
}

func (s *DB) FindUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	var user User
	if err := getDBFromContext(ctx, s.db).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *DB) FindUserByDevice(ctx context.Context, deviceID string) (*User, error) {
	var user User
	err := getDBFromContext(ctx, s.db).Where("device_digest = ?", DeviceDigest(deviceID)).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindUserByNickname returns the earliest account registered under nickname.
// Nicknames are not unique and the match is exact.
func (s *DB) FindUserByNickname(ctx context.Context, nickname string) (*User, error) {
	var user User
	err := getDBFromContext(ctx, s.db).Where("nickname = ?", nickname).Order("created_at ASC").First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// VerifyDevice returns the user only if deviceID is the one they registered with
func (s *DB) VerifyDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*User, error) {
	user, err := s.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !deviceMatches(deviceID, user.DeviceDigest) {
		return nil, ErrDeviceMismatch
	}
	return user, nil
}

func (s *DB) UpdatePublicKey(ctx context.Context, userID uuid.UUID, publicKey string) (*User, error) {
	db := getDBFromContext(ctx, s.db)
	res := db.Model(&User{}).Where("id = ?", userID).Updates(map[string]any{
		"public_key": publicKey,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.FindUser(ctx, userID)
}

// SearchUsers finds users whose nickname contains query, case-insensitively
func (s *DB) SearchUsers(ctx context.Context, query string, limit int) ([]*User, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(query) + "%"
	var users []*User
	err := getDBFromContext(ctx, s.db).
		Where("LOWER(nickname) LIKE ?", pattern).
		Order("nickname asc").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// CreateChat creates a chat with its creator as the first member
func (s *DB) CreateChat(ctx context.Context, creatorID uuid.UUID, name string) (*Chat, error) {
	chat := &Chat{ID: uuid.New(), Name: name, CreatorID: creatorID}
	err := s.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.FindUser(ctx, creatorID); err != nil {
			return err
		}
		db := getDBFromContext(ctx, s.db)
		if err := db.Create(chat).Error; err != nil {
			return err
		}
		return db.Create(&ChatMember{ChatID: chat.ID, UserID: creatorID, JoinedAt: time.Now()}).Error
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *DB) GetChat(ctx context.Context, chatID uuid.UUID) (*Chat, error) {
	var chat Chat
	if err := getDBFromContext(ctx, s.db).Where("id = ?", chatID).First(&chat).Error; err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

func (s *DB) AddChatMember(ctx context.Context, chatID, userID uuid.UUID) (*ChatMember, error) {
	member := &ChatMember{ChatID: chatID, UserID: userID, JoinedAt: time.Now()}
	err := s.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.GetChat(ctx, chatID); err != nil {
			return err
		}
		if _, err := s.FindUser(ctx, userID); err != nil {
			return err
		}
		ok, err := s.IsChatMember(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if ok {
			return ErrAlreadyMember
		}
		return getDBFromContext(ctx, s.db).Create(member).Error
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *DB) RemoveChatMember(ctx context.Context, chatID, userID uuid.UUID) error {
	res := getDBFromContext(ctx, s.db).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&ChatMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotMember
	}
	return nil
}

// LeaveAllChats removes the user from every chat and returns how many were left
func (s *DB) LeaveAllChats(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := getDBFromContext(ctx, s.db).Where("user_id = ?", userID).Delete(&ChatMember{})
	return res.RowsAffected, res.Error
}

func (s *DB) IsChatMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	var count int64
	err := getDBFromContext(ctx, s.db).
		Model(&ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *DB) ListChatMembers(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := getDBFromContext(ctx, s.db).
		Model(&ChatMember{}).
		Where("chat_id = ?", chatID).
		Order("joined_at asc").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (s *DB) ListChatMemberDetails(ctx context.Context, chatID uuid.UUID) ([]*MemberDetail, error) {
	var members []*MemberDetail
	err := getDBFromContext(ctx, s.db).
		Table("chat_members").
		Select("users.id AS user_id, users.nickname, users.public_key, chat_members.joined_at").
		Joins("JOIN users ON users.id = chat_members.user_id").
		Where("chat_members.chat_id = ?", chatID).
		Order("chat_members.joined_at asc").
		Scan(&members).Error
	return members, err
}

func (s *DB) ListUserChats(ctx context.Context, userID uuid.UUID) ([]*Chat, error) {
	var chats []*Chat
	err := getDBFromContext(ctx, s.db).
		Joins("JOIN chat_members ON chat_members.chat_id = chats.id").
		Where("chat_members.user_id = ?", userID).
		Order("chats.created_at desc").
		Find(&chats).Error
	return chats, err
}

func (s *DB) CountChatMembers(ctx context.Context, chatID uuid.UUID) (int64, error) {
	var count int64
	err := getDBFromContext(ctx, s.db).Model(&ChatMember{}).Where("chat_id = ?", chatID).Count(&count).Error
	return count, err
}

// CreateContactRequest records a pending request from one user to another
func (s *DB) CreateContactRequest(ctx context.Context, fromUserID, toUserID uuid.UUID) (*ContactRequest, error) {
	if fromUserID == toUserID {
		return nil, ErrSelfRequest
	}

	req := &ContactRequest{
		ID:         uuid.New(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     cnst.ContactRequestPending,
	}
	err := s.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.FindUser(ctx, fromUserID); err != nil {
			return err
		}
		if _, err := s.FindUser(ctx, toUserID); err != nil {
			return err
		}
		contacts, err := s.AreContacts(ctx, fromUserID, toUserID)
		if err != nil {
			return err
		}
		if contacts {
			return ErrAlreadyContacts
		}

		db := getDBFromContext(ctx, s.db)
		var pending int64
		err = db.Model(&ContactRequest{}).
			Where("from_user_id = ? AND to_user_id = ? AND status = ?", fromUserID, toUserID, cnst.ContactRequestPending).
			Count(&pending).Error
		if err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicateRequest
		}
		return db.Create(req).Error
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *DB) GetContactRequest(ctx context.Context, requestID uuid.UUID) (*ContactRequest, error) {
	var req ContactRequest
	if err := getDBFromContext(ctx, s.db).Where("id = ?", requestID).First(&req).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// ListPendingRequests returns requests addressed to the user that await an answer
func (s *DB) ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]*ContactRequest, error) {
	var reqs []*ContactRequest
	err := getDBFromContext(ctx, s.db).
		Where("to_user_id = ? AND status = ?", userID, cnst.ContactRequestPending).
		Order("created_at desc").
		Find(&reqs).Error
	return reqs, err
}

// RespondContactRequest accepts or declines a pending request addressed to
// responderID. Accepting creates the contact relation in both directions.
func (s *DB) RespondContactRequest(ctx context.Context, requestID, responderID uuid.UUID, status string) (*ContactRequest, error) {
	if status != cnst.ContactRequestAccepted && status != cnst.ContactRequestDeclined {
		return nil, ErrInvalidStatus
	}

	var req ContactRequest
	err := s.Transaction(ctx, func(ctx context.Context) error {
		db := getDBFromContext(ctx, s.db)
		err := db.Where("id = ? AND to_user_id = ? AND status = ?", requestID, responderID, cnst.ContactRequestPending).
			First(&req).Error
		if err != nil {
			return notFound(err)
		}

		now := time.Now()
		req.Status = status
		req.RespondedAt = &now
		if err := db.Save(&req).Error; err != nil {
			return err
		}
		if status != cnst.ContactRequestAccepted {
			return nil
		}

		pair := []Contact{
			{UserID: req.FromUserID, ContactUserID: req.ToUserID, CreatedAt: now},
			{UserID: req.ToUserID, ContactUserID: req.FromUserID, CreatedAt: now},
		}
		return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&pair).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *DB) ListContacts(ctx context.Context, userID uuid.UUID) ([]*User, error) {
	var users []*User
	err := getDBFromContext(ctx, s.db).
		Joins("JOIN contacts ON contacts.contact_user_id = users.id").
		Where("contacts.user_id = ?", userID).
		Order("users.nickname asc").
		Find(&users).Error
	return users, err
}

func (s *DB) AreContacts(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	var count int64
	err := getDBFromContext(ctx, s.db).
		Model(&Contact{}).
		Where("(user_id = ? AND contact_user_id = ?) OR (user_id = ? AND contact_user_id = ?)",
			userID, otherID, otherID, userID).
		Count(&count).Error
	return count > 0, err
}

// RemoveContact deletes the relation in both directions
func (s *DB) RemoveContact(ctx context.Context, userID, contactUserID uuid.UUID) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		res := getDBFromContext(ctx, s.db).
			Where("(user_id = ? AND contact_user_id = ?) OR (user_id = ? AND contact_user_id = ?)",
				userID, contactUserID, contactUserID, userID).
			Delete(&Contact{})
		if res.Error != nil {
			return fmt.Errorf("failed to remove contact: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
