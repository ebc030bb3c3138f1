// Package server implements the rendezvous service: session codes,
// room presence, and signal relay between connected clients.
package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrSessionNotFound covers unknown and expired codes alike.
var ErrSessionNotFound = errors.New("session not found")

// Session binds a short code to a channel address until it expires.
type Session struct {
	ID             uint   `gorm:"primaryKey"`
	Code           string `gorm:"uniqueIndex"`
	ChannelAddress string
	CreatedAt      int64
	ExpiresAt      int64
}

type Store struct {
	db *gorm.DB
}

// OpenStore opens (or creates) the session database. Use ":memory:"
// for an ephemeral store.
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}
	return NewStore(db)
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Session{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session db: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateSession generates a fresh code bound to the given address.
func (s *Store) CreateSession(channelAddress string, ttl time.Duration) (string, error) {
	now := time.Now()

	// Collisions are rare with a 32^6 code space; retry a few times
	// instead of coordinating.
	for attempt := 0; attempt < 5; attempt++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}

		session := Session{
			Code:           code,
			ChannelAddress: channelAddress,
			CreatedAt:      now.Unix(),
			ExpiresAt:      now.Add(ttl).Unix(),
		}
		if err := s.db.Create(&session).Error; err != nil {
			var existing Session
			if s.db.Where("code = ?", code).First(&existing).Error == nil {
				continue
			}
			return "", fmt.Errorf("failed to create session: %w", err)
		}
		return code, nil
	}

	return "", errors.New("could not generate a unique session code")
}

// ResolveSession returns the address bound to a code. Codes are
// case-insensitive. Expired codes resolve the same as unknown ones.
func (s *Store) ResolveSession(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var session Session
	err := s.db.Where("code = ? AND expires_at > ?", code, time.Now().Unix()).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to resolve session: %w", err)
	}

	return session.ChannelAddress, nil
}

// PurgeExpired deletes sessions past their expiry and reports how many.
func (s *Store) PurgeExpired() (int64, error) {
	res := s.db.Where("expires_at <= ?", time.Now().Unix()).Delete(&Session{})
	return res.RowsAffected, res.Error
}

func generateCode() (string, error) {
	buf := make([]byte, protocol.CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	out := make([]byte, protocol.CodeLength)
	for i, b := range buf {
		out[i] = protocol.CodeAlphabet[int(b)%len(protocol.CodeAlphabet)]
	}
	return string(out), nil
}
