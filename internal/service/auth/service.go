package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords so
// the login endpoint cannot be used to probe for accounts.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials")

var ErrInvalidToken = fmt.Errorf("invalid token")

type Config struct {
	Secret string
	TTL    time.Duration
}

// Service is the authentication boundary: it exchanges credentials for a
// signed token and turns tokens back into actors. Everything past the
// middleware works with model.Actor and never sees a credential.
type Service struct {
	users repository.UserRepository
	cfg   Config
}

func NewService(users repository.UserRepository, cfg Config) *Service {
	if cfg.TTL == 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &Service{users: users, cfg: cfg}
}

type claims struct {
	Role model.Role `json:"role"`
	Name string     `json:"name"`
	jwt.RegisteredClaims
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.cfg.TTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: user.Role,
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &model.LoginResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		Actor: model.Actor{
			ID:   user.ID,
			Role: user.Role,
			Name: user.Name,
		},
	}, nil
}

// ValidateToken parses and verifies a bearer token and rebuilds the acting
// identity from its claims.
func (s *Service) ValidateToken(tokenString string) (model.Actor, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return model.Actor{}, ErrInvalidToken
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return model.Actor{}, ErrInvalidToken
	}
	return model.Actor{ID: id, Role: c.Role, Name: c.Name}, nil
}

// HashPassword is used by provisioning tooling when seeding accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
