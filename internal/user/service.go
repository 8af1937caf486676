package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rmaulana/iam-service/internal/auth"
	iamDatamodel "github.com/rmaulana/iam-service/internal/core/datamodel/iam"
	"github.com/rmaulana/iam-service/internal/core/events"
)

type RepositoryAPI interface {
	List(ctx context.Context, offset, limit int, includeHidden bool) ([]*iamDatamodel.User, int64, error)
	GetByKey(ctx context.Context, userKey string) (*iamDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*iamDatamodel.User, error)
	Create(ctx context.Context, user *iamDatamodel.User) error

	// DeleteCascade removes the user together with their profile assignments.
	DeleteCascade(ctx context.Context, userID int64) error

	// ProfileIDsByKeys resolves profile keys; any unknown key fails the whole
	// lookup so a partial assignment never happens.
	ProfileIDsByKeys(ctx context.Context, profileKeys []string) ([]int64, error)

	// ReplaceProfiles swaps the user's assignment set in one transaction.
	ReplaceProfiles(ctx context.Context, userID int64, profileIDs []int64) error

	AssignedProfiles(ctx context.Context, userID int64) ([]*iamDatamodel.AccessProfile, error)
}

// ProfileSummary is the compact profile listing on a user.
type ProfileSummary struct {
	ProfileKey string `json:"profile_key"`
	Title      string `json:"title"`
}

// UserListResponse is one page of visible users.
type UserListResponse struct {
	Users   []User `json:"users"`
	Total   int64  `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

const defaultPerPage = 20

type Service struct {
	repo       RepositoryAPI
	bus        *events.EventBus
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, bus *events.EventBus, bcryptCost int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		bus:        bus,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// ListUsers pages through visible users. Hidden machine accounts never show
// up here.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) (*UserListResponse, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = defaultPerPage
	}

	rows, total, err := s.repo.List(ctx, (page-1)*perPage, perPage, false)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, err
	}

	resp := &UserListResponse{
		Users:   make([]User, 0, len(rows)),
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}
	for _, row := range rows {
		resp.Users = append(resp.Users, *FromDataModel(row))
	}
	return resp, nil
}

func (s *Service) GetUser(ctx context.Context, userKey string) (*User, error) {
	row, err := s.repo.GetByKey(ctx, userKey)
	if err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) CreateUser(ctx context.Context, dto CreateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetByEmail(ctx, dto.Email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := &iamDatamodel.User{
		UserKey:        NewUserKey(),
		Email:          dto.Email,
		PasswordHash:   hash,
		FirstName:      dto.FirstName,
		LastName:       dto.LastName,
		IsActive:       true,
		IsSuperadmin:   dto.IsSuperadmin,
		IsHidden:       dto.IsHidden,
		SessionExpires: dto.SessionExpires,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create user", "email", dto.Email, "error", err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publish(ctx, events.NewAuditEvent(events.EventTypeUserCreated, map[string]interface{}{
		"user_key":      row.UserKey,
		"email":         row.Email,
		"is_superadmin": row.IsSuperadmin,
	}))
	return FromDataModel(row), nil
}

// CreateSuperadmin provisions a hidden superadmin account with a
// never-expiring session, meant for machine access and bootstrap.
func (s *Service) CreateSuperadmin(ctx context.Context, email, password string) (*User, error) {
	dto := CreateUserDTO{
		Email:        email,
		Password:     password,
		FirstName:    "Superadmin",
		IsSuperadmin: true,
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := &iamDatamodel.User{
		UserKey:        NewUserKey(),
		Email:          email,
		PasswordHash:   hash,
		FirstName:      "Superadmin",
		IsActive:       true,
		IsSuperadmin:   true,
		IsHidden:       true,
		SessionExpires: false,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("create superadmin: %w", err)
	}

	s.publish(ctx, events.NewAuditEvent(events.EventTypeUserCreated, map[string]interface{}{
		"user_key":      row.UserKey,
		"email":         row.Email,
		"is_superadmin": true,
		"is_hidden":     true,
	}))
	return FromDataModel(row), nil
}

func (s *Service) RemoveUser(ctx context.Context, userKey string) error {
	row, err := s.repo.GetByKey(ctx, userKey)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteCascade(ctx, row.ID); err != nil {
		s.logger.Error("failed to remove user", "user_key", userKey, "error", err)
		return fmt.Errorf("remove user %s: %w", userKey, err)
	}

	s.publish(ctx, events.NewAuditEvent(events.EventTypeUserRemoved, map[string]interface{}{
		"user_key": userKey,
	}))
	return nil
}

// SetProfiles replaces the user's access profile assignments. An empty list
// strips every profile, leaving the user with no grants at all.
func (s *Service) SetProfiles(ctx context.Context, userKey string, profileKeys []string) error {
	row, err := s.repo.GetByKey(ctx, userKey)
	if err != nil {
		return err
	}

	var profileIDs []int64
	if len(profileKeys) > 0 {
		profileIDs, err = s.repo.ProfileIDsByKeys(ctx, profileKeys)
		if err != nil {
			return err
		}
	}

	if err := s.repo.ReplaceProfiles(ctx, row.ID, profileIDs); err != nil {
		s.logger.Error("failed to set user profiles", "user_key", userKey, "error", err)
		return fmt.Errorf("set profiles for %s: %w", userKey, err)
	}

	s.publish(ctx, events.NewAuditEvent(events.EventTypeUserProfilesChanged, map[string]interface{}{
		"user_key": userKey,
		"profiles": profileKeys,
	}))
	return nil
}

func (s *Service) UserProfiles(ctx context.Context, userKey string) ([]ProfileSummary, error) {
	row, err := s.repo.GetByKey(ctx, userKey)
	if err != nil {
		return nil, err
	}

	profiles, err := s.repo.AssignedProfiles(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("load profiles for %s: %w", userKey, err)
	}

	summaries := make([]ProfileSummary, 0, len(profiles))
	for _, profile := range profiles {
		summaries = append(summaries, ProfileSummary{ProfileKey: profile.ProfileKey, Title: profile.Title})
	}
	return summaries, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error("publish audit event failed", "event_type", event.EventType(), "error", err)
	}
}
