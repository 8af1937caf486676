package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	internal "github.com/rmaulana/iam-service/internal"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

// Mock repository for testing
type mockUserRepository struct {
	passwords     map[string]string // email -> password hash
	userIDs       map[string]int64  // email -> userID
	usersByID     map[int64]*SessionUser
	lastAccess    map[int64]time.Time
	returnError   bool
	errorToReturn error
}

func newMockUserRepository() *mockUserRepository {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.MinCost)

	return &mockUserRepository{
		passwords: map[string]string{
			"user@example.com":     string(hashedPassword),
			"admin@example.com":    string(hashedPassword),
			"inactive@example.com": string(hashedPassword),
		},
		userIDs: map[string]int64{
			"user@example.com":     1,
			"admin@example.com":    2,
			"inactive@example.com": 3,
		},
		usersByID: map[int64]*SessionUser{
			1: {ID: 1, UserKey: "usr-aaaa", Email: "user@example.com", FirstName: "Plain", LastName: "User", IsActive: true, SessionExpires: true},
			2: {ID: 2, UserKey: "usr-bbbb", Email: "admin@example.com", FirstName: "Root", IsActive: true, IsSuperadmin: true, SessionExpires: true},
			3: {ID: 3, UserKey: "usr-cccc", Email: "inactive@example.com", FirstName: "Gone", IsActive: false, SessionExpires: true},
		},
		lastAccess: map[int64]time.Time{},
	}
}

func (m *mockUserRepository) GetPasswordForEmail(email string) (string, int64, error) {
	if m.returnError {
		return "", 0, m.errorToReturn
	}

	hash, ok := m.passwords[email]
	if !ok {
		return "", 0, ErrInvalidCredentials
	}
	return hash, m.userIDs[email], nil
}

func (m *mockUserRepository) SessionUserByID(userID int64) (*SessionUser, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}

	if user, exists := m.usersByID[userID]; exists {
		return user, nil
	}
	return nil, errors.New("user not found")
}

func (m *mockUserRepository) TouchLastAccess(userID int64, at time.Time) error {
	if m.returnError {
		return m.errorToReturn
	}
	m.lastAccess[userID] = at
	return nil
}

func (m *mockUserRepository) setError(err error) {
	m.returnError = true
	m.errorToReturn = err
}

func testTokenGenerator(accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	return NewJWTTokenGenerator(internal.SecurityConfig{
		AccessTokenSecret:    "test-access-secret-0123456789abcdef",
		RefreshTokenSecret:   "test-refresh-secret-0123456789abcdef",
		AccessTokenDuration:  accessTTL,
		RefreshTokenDuration: refreshTTL,
	})
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		service  *Service
		mockRepo *mockUserRepository
		tokenGen *JWTTokenGenerator
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockUserRepository()
		tokenGen = testTokenGenerator(15*time.Minute, 24*time.Hour)
		service = NewService(mockRepo, tokenGen)
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return access and refresh tokens", func() {
				// Given
				dto := LoginDTO{
					Email:    "user@example.com",
					Password: "correct_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.Equal(tokens.RefreshToken))
			})

			ginkgo.It("should embed user identity in the access token", func() {
				// Given
				dto := LoginDTO{
					Email:    "admin@example.com",
					Password: "correct_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				claims, err := service.ValidateAccessToken(tokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal(int64(2)))
				gomega.Expect(claims.Email).To(gomega.Equal("admin@example.com"))
			})

			ginkgo.It("should record the last access timestamp", func() {
				// Given
				dto := LoginDTO{
					Email:    "user@example.com",
					Password: "correct_password",
				}

				// When
				_, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.lastAccess).To(gomega.HaveKey(int64(1)))
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should return error for unknown email", func() {
				// Given
				dto := LoginDTO{
					Email:    "nonexistent@example.com",
					Password: "any_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should return error for wrong password", func() {
				// Given
				dto := LoginDTO{
					Email:    "user@example.com",
					Password: "wrong_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when the user is deactivated", func() {
			ginkgo.It("should reject login even with the correct password", func() {
				// Given
				dto := LoginDTO{
					Email:    "inactive@example.com",
					Password: "correct_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrUserInactive))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when input validation fails", func() {
			ginkgo.It("should return validation error for empty email", func() {
				// Given
				dto := LoginDTO{
					Email:    "",
					Password: "password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err.Error()).To(gomega.ContainSubstring("email is required"))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should return validation error for empty password", func() {
				// Given
				dto := LoginDTO{
					Email:    "user@example.com",
					Password: "",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err.Error()).To(gomega.ContainSubstring("password is required"))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when repository returns error", func() {
			ginkgo.It("should return invalid credentials error", func() {
				// Given
				mockRepo.setError(errors.New("database error"))
				dto := LoginDTO{
					Email:    "user@example.com",
					Password: "correct_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		var validRefreshToken string

		ginkgo.BeforeEach(func() {
			dto := LoginDTO{
				Email:    "user@example.com",
				Password: "correct_password",
			}
			tokens, err := service.Authenticate(dto)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			validRefreshToken = tokens.RefreshToken
		})

		ginkgo.Context("when refresh token is valid", func() {
			ginkgo.It("should return a fresh token pair", func() {
				// When
				newTokens, err := service.RefreshTokens(validRefreshToken)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(newTokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(newTokens.RefreshToken).ToNot(gomega.BeEmpty())
			})

			ginkgo.It("should preserve user identity in the new tokens", func() {
				// When
				newTokens, err := service.RefreshTokens(validRefreshToken)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				claims, err := service.ValidateAccessToken(newTokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal(int64(1)))
				gomega.Expect(claims.Email).To(gomega.Equal("user@example.com"))
			})
		})

		ginkgo.Context("when the user was deactivated after login", func() {
			ginkgo.It("should refuse to rotate the tokens", func() {
				// Given
				mockRepo.usersByID[1].IsActive = false

				// When
				tokens, err := service.RefreshTokens(validRefreshToken)

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrUserInactive))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("when refresh token is invalid", func() {
			ginkgo.It("should return error for malformed token", func() {
				// When
				tokens, err := service.RefreshTokens("invalid.token.format")

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should return error for expired token", func() {
				// Given
				expiredGen := testTokenGenerator(-1*time.Hour, -1*time.Hour)
				expiredToken, err := expiredGen.GenerateRefreshToken(1, "user@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				tokens, err := service.RefreshTokens(expiredToken)

				// Then
				gomega.Expect(err).To(gomega.Or(gomega.Equal(ErrTokenExpired), gomega.Equal(ErrInvalidToken)))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})
		})
	})

	ginkgo.Describe("ValidateAccessToken", func() {
		var validAccessToken string

		ginkgo.BeforeEach(func() {
			dto := LoginDTO{
				Email:    "admin@example.com",
				Password: "correct_password",
			}
			tokens, err := service.Authenticate(dto)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			validAccessToken = tokens.AccessToken
		})

		ginkgo.Context("when access token is valid", func() {
			ginkgo.It("should return claims with user information", func() {
				// When
				claims, err := service.ValidateAccessToken(validAccessToken)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims).ToNot(gomega.BeNil())
				gomega.Expect(claims.UserID).To(gomega.Equal(int64(2)))
				gomega.Expect(claims.Email).To(gomega.Equal("admin@example.com"))
				gomega.Expect(claims.ExpiresAt).ToNot(gomega.BeNil())
			})
		})

		ginkgo.Context("when access token is invalid", func() {
			ginkgo.It("should return error for malformed token", func() {
				// When
				claims, err := service.ValidateAccessToken("invalid.token")

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(claims).To(gomega.BeNil())
			})

			ginkgo.It("should return error for empty token", func() {
				// When
				claims, err := service.ValidateAccessToken("")

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(claims).To(gomega.BeNil())
			})

			ginkgo.It("should return error for expired token", func() {
				// Given
				expiredGen := testTokenGenerator(-1*time.Hour, 24*time.Hour)
				expiredToken, err := expiredGen.GenerateAccessToken(1, "user@example.com", true)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				claims, err := service.ValidateAccessToken(expiredToken)

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrTokenExpired))
				gomega.Expect(claims).To(gomega.BeNil())
			})
		})
	})

	ginkgo.Describe("GetSessionUser", func() {
		ginkgo.Context("when user exists", func() {
			ginkgo.It("should return stored user flags", func() {
				// When
				user, err := service.GetSessionUser(2)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(user).ToNot(gomega.BeNil())
				gomega.Expect(user.UserKey).To(gomega.Equal("usr-bbbb"))
				gomega.Expect(user.IsSuperadmin).To(gomega.BeTrue())
			})
		})

		ginkgo.Context("when user does not exist", func() {
			ginkgo.It("should return error", func() {
				// When
				user, err := service.GetSessionUser(999)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(user).To(gomega.BeNil())
			})
		})
	})
})

var _ = ginkgo.Describe("JWTTokenGenerator", func() {
	var tokenGen *JWTTokenGenerator

	ginkgo.BeforeEach(func() {
		tokenGen = testTokenGenerator(15*time.Minute, 24*time.Hour)
	})

	ginkgo.Describe("GenerateAccessToken", func() {
		ginkgo.It("should generate a token that validates round trip", func() {
			// When
			token, err := tokenGen.GenerateAccessToken(123, "test@example.com", true)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(token).ToNot(gomega.BeEmpty())

			claims, err := tokenGen.ValidateToken(token)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal(int64(123)))
			gomega.Expect(claims.Email).To(gomega.Equal("test@example.com"))
			gomega.Expect(claims.ExpiresAt.Time).To(gomega.BeTemporally("~", time.Now().Add(15*time.Minute), time.Minute))
		})

		ginkgo.It("should issue a long lived token when session expiry is off", func() {
			// When
			token, err := tokenGen.GenerateAccessToken(123, "service@example.com", false)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			claims, err := tokenGen.ValidateToken(token)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.ExpiresAt.Time).To(gomega.BeTemporally(">", time.Now().Add(300*24*time.Hour)))
		})
	})

	ginkgo.Describe("GenerateRefreshToken", func() {
		ginkgo.It("should generate a token that validates round trip", func() {
			// When
			token, err := tokenGen.GenerateRefreshToken(456, "refresh@example.com")

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(token).ToNot(gomega.BeEmpty())

			claims, err := tokenGen.ValidateToken(token)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal(int64(456)))
			gomega.Expect(claims.ExpiresAt.Time).To(gomega.BeTemporally("~", time.Now().Add(24*time.Hour), time.Minute))
		})
	})

	ginkgo.Describe("ValidateToken", func() {
		ginkgo.Context("with invalid token", func() {
			ginkgo.It("should return error for malformed token", func() {
				// When
				claims, err := tokenGen.ValidateToken("invalid.token.here")

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(claims).To(gomega.BeNil())
			})

			ginkgo.It("should return error for empty token", func() {
				// When
				claims, err := tokenGen.ValidateToken("")

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(claims).To(gomega.BeNil())
			})

			ginkgo.It("should reject a token signed with a different secret", func() {
				// Given
				otherGen := NewJWTTokenGenerator(internal.SecurityConfig{
					AccessTokenSecret:    "completely-different-access-secret!",
					RefreshTokenSecret:   "completely-different-refresh-secret",
					AccessTokenDuration:  15 * time.Minute,
					RefreshTokenDuration: 24 * time.Hour,
				})
				token, err := otherGen.GenerateAccessToken(1, "test@example.com", true)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				claims, err := tokenGen.ValidateToken(token)

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrInvalidToken))
				gomega.Expect(claims).To(gomega.BeNil())
			})
		})

		ginkgo.Context("with expired token", func() {
			ginkgo.It("should return ErrTokenExpired", func() {
				// Given
				expiredGen := testTokenGenerator(-1*time.Hour, -1*time.Hour)
				token, err := expiredGen.GenerateAccessToken(123, "expired@example.com", true)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				claims, err := tokenGen.ValidateToken(token)

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrTokenExpired))
				gomega.Expect(claims).To(gomega.BeNil())
			})
		})
	})
})

var _ = ginkgo.Describe("LoginDTO", func() {
	ginkgo.Describe("Validate", func() {
		ginkgo.It("should accept a complete DTO", func() {
			dto := LoginDTO{Email: "user@example.com", Password: "secure_password"}
			gomega.Expect(dto.Validate()).To(gomega.Succeed())
		})

		ginkgo.It("should reject empty email", func() {
			dto := LoginDTO{Password: "password"}
			gomega.Expect(dto.Validate()).To(gomega.MatchError("email is required"))
		})

		ginkgo.It("should reject empty password", func() {
			dto := LoginDTO{Email: "user@example.com"}
			gomega.Expect(dto.Validate()).To(gomega.MatchError("password is required"))
		})
	})
})

var _ = ginkgo.Describe("RefreshTokenDTO", func() {
	ginkgo.Describe("Validate", func() {
		ginkgo.It("should accept a present token", func() {
			dto := RefreshTokenDTO{RefreshToken: "valid.jwt.token"}
			gomega.Expect(dto.Validate()).To(gomega.Succeed())
		})

		ginkgo.It("should reject an empty token", func() {
			dto := RefreshTokenDTO{}
			gomega.Expect(dto.Validate()).To(gomega.MatchError("refresh_token is required"))
		})
	})
})
