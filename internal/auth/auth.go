package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type ServiceAPI interface {
	Authenticate(dto LoginDTO) (AuthTokens, error)
	RefreshTokens(refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	GetSessionUser(userID int64) (*SessionUser, error)
}

type RepositoryAPI interface {
	GetPasswordForEmail(email string) (passwordHash string, userID int64, err error)
	SessionUserByID(userID int64) (*SessionUser, error)
	TouchLastAccess(userID int64, at time.Time) error
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(userID int64, email string, expires bool) (token string, err error)
	GenerateRefreshToken(userID int64, email string) (token string, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// SessionUser is the resolved principal carried through request context.
// The superadmin and active flags come from storage on every request,
// never from token claims.
type SessionUser struct {
	ID             int64  `json:"id"`
	UserKey        string `json:"user_key"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	IsActive       bool   `json:"is_active"`
	IsSuperadmin   bool   `json:"is_superadmin"`
	IsHidden       bool   `json:"-"`
	SessionExpires bool   `json:"-"`
}

func (u *SessionUser) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type ctxKey string

const ContextUserKey ctxKey = "session_user"

func UserFromContext(ctx context.Context) (*SessionUser, bool) {
	u, ok := ctx.Value(ContextUserKey).(*SessionUser)
	return u, ok
}

func ContextWithUser(ctx context.Context, user *SessionUser) context.Context {
	return context.WithValue(ctx, ContextUserKey, user)
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims represents JWT token claims
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserInactive       = errors.New("user is inactive")
)

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
