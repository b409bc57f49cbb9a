package services

import (
	"errors"
	"time"

	"printshop/internal/models"
	"printshop/internal/redis"
	"printshop/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// SessionStore is the slice of the redis client the auth service needs.
type SessionStore interface {
	SetSession(token string, data *redis.SessionData, ttl time.Duration) error
	GetSession(token string) (*redis.SessionData, error)
	DeleteSession(token string) error
}

type AuthService interface {
	CreateUser(user *models.User, password string) error
	Login(username, password string) (string, *models.User, error)
	Logout(token string) error
	ValidateToken(token string) (*redis.SessionData, error)
}

type authService struct {
	userRepo   repository.UserRepository
	sessions   SessionStore
	sessionTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, sessions SessionStore, sessionTTL time.Duration) AuthService {
	return &authService{userRepo: userRepo, sessions: sessions, sessionTTL: sessionTTL}
}

func (s *authService) CreateUser(user *models.User, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashed)
	return s.userRepo.Create(user)
}

// Login verifies credentials and issues an opaque session token held in
// redis for the configured TTL.
func (s *authService) Login(username, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !user.IsActive {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	session := &redis.SessionData{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: time.Now(),
	}
	if err := s.sessions.SetSession(token, session, s.sessionTTL); err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *authService) Logout(token string) error {
	return s.sessions.DeleteSession(token)
}

func (s *authService) ValidateToken(token string) (*redis.SessionData, error) {
	return s.sessions.GetSession(token)
}
