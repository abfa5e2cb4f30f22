package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues and verifies HS256 bearer tokens for local accounts.
type AuthService struct {
	Profiles ProfileStore
	Secret   []byte
	TTL      time.Duration
	Now      func() time.Time
}

func (s AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterInput struct {
	FullName string `json:"fullName" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email,max=190"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user host"`
}

type AuthResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      models.Profile `json:"user"`
}

var errBadCredentials = domain.AuthenticationError{Msg: "invalid email or password"}

func (s AuthService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return AuthResult{}, err
	}
	p, err := s.Profiles.GetProfileByEmail(ctx, in.Email)
	if err != nil {
		if domain.IsNotFound(err) {
			return AuthResult{}, errBadCredentials
		}
		return AuthResult{}, err
	}
	if p.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(in.Password)) != nil {
		return AuthResult{}, errBadCredentials
	}
	utils.LogEvent(utils.RequestID(ctx), "auth", "login", fmt.Sprintf("user %d logged in", p.ID))
	return s.issue(p)
}

// Register creates a guest or host account. Admins are provisioned out of band.
func (s AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = utils.NormalizeSpace(in.FullName)
	if err := validateStruct(in); err != nil {
		return AuthResult{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, domain.InternalError{Err: err}
	}
	p, err := s.Profiles.CreateProfile(ctx, models.Profile{
		Email:        in.Email,
		FullName:     in.FullName,
		Role:         utils.Fallback(in.Role, domain.RoleUser),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return AuthResult{}, err
	}
	utils.LogEvent(utils.RequestID(ctx), "auth", "register", fmt.Sprintf("user %d registered as %s", p.ID, p.Role))
	return s.issue(p)
}

func (s AuthService) issue(p models.Profile) (AuthResult, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	exp := s.now().Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": p.ID,
		"role":    p.Role,
		"exp":     exp.Unix(),
		"iat":     s.now().Unix(),
	})
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return AuthResult{}, domain.InternalError{Err: fmt.Errorf("sign token: %w", err)}
	}
	return AuthResult{Token: signed, ExpiresAt: exp.UTC(), User: p}, nil
}

// ParseToken validates a bearer token and returns the caller it names.
func (s AuthService) ParseToken(raw string) (domain.Actor, error) {
	if raw == "" {
		return domain.Actor{}, domain.AuthenticationError{Msg: "missing bearer token"}
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return domain.Actor{}, domain.AuthenticationError{Msg: msg, Err: err}
	}

	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return domain.Actor{}, domain.AuthenticationError{Msg: "invalid token subject"}
	}
	role, _ := claims["role"].(string)
	return domain.Actor{UserID: int64(id), Role: utils.Fallback(role, domain.RoleUser)}, nil
}

// CurrentRole reads the caller's stored role. Tokens carry the role from login
// time; this is what a demotion changes.
func (s AuthService) CurrentRole(ctx context.Context, userID int64) (string, error) {
	p, err := s.Profiles.GetProfile(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return "", domain.AuthenticationError{Msg: "account no longer exists", Err: err}
		}
		return "", err
	}
	return utils.Fallback(p.Role, domain.RoleUser), nil
}
