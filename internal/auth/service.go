package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	internal "github.com/rmaulana/iam-service/internal"
)

// Service authenticates users and issues session tokens.
type Service struct {
	userRepo       RepositoryAPI
	tokenGenerator TokenGeneratorAPI
}

// NewService creates a new auth service
func NewService(userRepo RepositoryAPI, tokenGen TokenGeneratorAPI) *Service {
	return &Service{
		userRepo:       userRepo,
		tokenGenerator: tokenGen,
	}
}

// NewJWTTokenGenerator creates a new JWT token generator
func NewJWTTokenGenerator(cfg internal.SecurityConfig) *JWTTokenGenerator {
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(cfg.AccessTokenSecret),
		RefreshTokenSecret: []byte(cfg.RefreshTokenSecret),
		AccessTokenTTL:     cfg.AccessTokenDuration,
		RefreshTokenTTL:    cfg.RefreshTokenDuration,
	}
}

// Authenticate validates credentials and returns tokens. Inactive users
// are rejected after the password check so the response does not leak
// which accounts exist.
func (s *Service) Authenticate(dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	storedHash, userID, err := s.userRepo.GetPasswordForEmail(dto.Email)
	if err != nil {
		return AuthTokens{}, ErrInvalidCredentials
	}

	if err := VerifyPassword(storedHash, dto.Password); err != nil {
		return AuthTokens{}, ErrInvalidCredentials
	}

	user, err := s.userRepo.SessionUserByID(userID)
	if err != nil {
		return AuthTokens{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return AuthTokens{}, ErrUserInactive
	}

	if err := s.userRepo.TouchLastAccess(userID, time.Now().UTC()); err != nil {
		return AuthTokens{}, err
	}

	return s.issueTokens(user)
}

// RefreshTokens validates a refresh token and rotates the token pair.
// The user is re-read so deactivation takes effect on the next refresh.
func (s *Service) RefreshTokens(refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	user, err := s.userRepo.SessionUserByID(claims.UserID)
	if err != nil {
		return AuthTokens{}, ErrInvalidToken
	}
	if !user.IsActive {
		return AuthTokens{}, ErrUserInactive
	}

	return s.issueTokens(user)
}

func (s *Service) issueTokens(user *SessionUser) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(user.ID, user.Email, user.SessionExpires)
	if err != nil {
		return AuthTokens{}, err
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

// GetSessionUser resolves the stored principal for an authenticated request.
func (s *Service) GetSessionUser(userID int64) (*SessionUser, error) {
	return s.userRepo.SessionUserByID(userID)
}

// GenerateAccessToken creates a new access token. Service accounts with
// session expiry disabled get a long-lived token instead of the normal TTL.
func (j *JWTTokenGenerator) GenerateAccessToken(userID int64, email string, expires bool) (string, error) {
	ttl := j.AccessTokenTTL
	if !expires {
		ttl = 24 * 365 * time.Hour
	}
	return j.signed(userID, email, ttl, j.AccessTokenSecret)
}

// GenerateRefreshToken creates a new refresh token
func (j *JWTTokenGenerator) GenerateRefreshToken(userID int64, email string) (string, error) {
	return j.signed(userID, email, j.RefreshTokenTTL, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) signed(userID int64, email string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(userID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns claims. Access and
// refresh tokens are signed with different secrets, so both are tried.
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	for _, secret := range [][]byte{j.AccessTokenSecret, j.RefreshTokenSecret} {
		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil {
			// Expiry is only reported once the signature checked out, so
			// there is no point trying the other secret.
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrTokenExpired
			}
			continue
		}
		if claims, ok := token.Claims.(*Claims); ok && token.Valid {
			return claims, nil
		}
	}

	return nil, ErrInvalidToken
}
