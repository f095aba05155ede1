package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"yaoundeconnect.org/internal/ids"
	"yaoundeconnect.org/internal/notify"
	"yaoundeconnect.org/internal/roles"
)

// Dispatcher is the post-commit notification hook, satisfied by
// *notify.Dispatcher. May be nil.
type Dispatcher interface {
	Dispatch(evt notify.Event) bool
}

// Service provides registration, login and role-guarded user management.
// All collaborators are injected; nothing here is a package singleton.
type Service struct {
	store    UserStore
	tokens   *TokenService
	resolver roles.Resolver
	notifier Dispatcher
	now      func() time.Time
}

// NewService constructs the auth service.
func NewService(store UserStore, tokens *TokenService, resolver roles.Resolver, notifier Dispatcher) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("auth: user store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("auth: token service is required")
	}
	return &Service{
		store:    store,
		tokens:   tokens,
		resolver: resolver,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

// RegisterInput is a self-service signup request.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a membre account and queues the verification email.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         roles.Membre,
		VerifyToken:  uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, user, user.ID); err != nil {
		return User{}, err
	}

	if s.notifier != nil {
		s.notifier.Dispatch(notify.Event{
			Type:           notify.EventUserVerify,
			ActorID:        user.ID,
			Detail:         user.VerifyToken,
			RecipientEmail: user.Email,
		})
	}
	return *user, nil
}

// VerifyEmail confirms an account from its verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, fmt.Errorf("%w: token is required", ErrValidation)
	}
	user, err := s.store.FindByVerifyToken(ctx, token)
	if err != nil {
		return User{}, err
	}
	if user.EmailVerified {
		return *user, nil
	}
	updated, err := s.store.MarkEmailVerified(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	if s.notifier != nil {
		s.notifier.Dispatch(notify.Event{
			Type:           notify.EventUserWelcome,
			ActorID:        updated.ID,
			RecipientEmail: updated.Email,
		})
	}
	return *updated, nil
}

// LoginResult carries the issued token alongside the account.
type LoginResult struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login authenticates credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return LoginResult{}, ErrEmailNotVerified
	}
	token, expiresAt, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: *user, Token: token, ExpiresAt: expiresAt}, nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	return *user, nil
}

// CanListUsers reports whether actor passes the staff-only read guard.
func (s *Service) CanListUsers(actor roles.Actor) bool {
	return s.resolver.AtLeast(actor.Role, roles.Moderateur)
}

// CanModerate reports whether actor may read the moderation queue, stats and
// audit history. Same floor as the transition guard.
func (s *Service) CanModerate(actor roles.Actor) bool {
	return s.resolver.AtLeast(actor.Role, roles.Moderateur)
}

// List returns a page of users; restricted to actors that can manage at
// least one role.
func (s *Service) List(ctx context.Context, actor roles.Actor, limit, offset int) ([]User, error) {
	if !s.CanListUsers(actor) {
		return nil, fmt.Errorf("%w: role %s may not list users", ErrAuthorization, actor.Role)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

// CreateUserInput is an administrative account creation request.
type CreateUserInput struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     roles.Role `json:"role"`
}

// CreateUser creates an account with an explicit role. The actor must be
// allowed to manage the target role; this is checked before any write.
func (s *Service) CreateUser(ctx context.Context, actor roles.Actor, in CreateUserInput) (User, error) {
	if !in.Role.Valid() {
		return User{}, fmt.Errorf("%w: invalid target role", ErrValidation)
	}
	if !s.resolver.CanManageRole(actor.Role, in.Role) {
		return User{}, fmt.Errorf("%w: role %s may not create %s accounts", ErrAuthorization, actor.Role, in.Role)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := s.now().UTC()
	user := &User{
		ID:            ids.New(),
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		Role:          in.Role,
		EmailVerified: true, // administratively created accounts skip verification
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, user, actor.ID); err != nil {
		return User{}, err
	}
	return *user, nil
}

// UpdateUser applies field changes to a managed account.
func (s *Service) UpdateUser(ctx context.Context, actor roles.Actor, targetID string, upd UserUpdate) (User, error) {
	target, err := s.store.FindByID(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	if !s.resolver.CanManageUser(actor, target.Actor()) {
		return User{}, fmt.Errorf("%w: role %s may not manage this account", ErrAuthorization, actor.Role)
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return User{}, fmt.Errorf("%w: invalid target role", ErrValidation)
		}
		// Role escalation is bounded by what the actor can manage.
		if !s.resolver.CanManageRole(actor.Role, *upd.Role) {
			return User{}, fmt.Errorf("%w: role %s may not assign %s", ErrAuthorization, actor.Role, *upd.Role)
		}
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return User{}, err
		}
		upd.Email = &email
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return User{}, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		upd.Name = &name
	}
	updated, err := s.store.Update(ctx, targetID, upd, actor.ID)
	if err != nil {
		return User{}, err
	}
	return *updated, nil
}

// ResetPassword sets a new password on the actor's own account or on a
// managed one. Self-service is the one exception to the no-self-management
// rule.
func (s *Service) ResetPassword(ctx context.Context, actor roles.Actor, targetID, newPassword string) error {
	target, err := s.store.FindByID(ctx, targetID)
	if err != nil {
		return err
	}
	if actor.ID != targetID && !s.resolver.CanManageUser(actor, target.Actor()) {
		return fmt.Errorf("%w: role %s may not manage this account", ErrAuthorization, actor.Role)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.store.UpdatePassword(ctx, targetID, hash, actor.ID); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.Dispatch(notify.Event{
			Type:           notify.EventUserPassword,
			ActorID:        actor.ID,
			RecipientEmail: target.Email,
		})
	}
	return nil
}

// DeleteUser removes a managed account.
func (s *Service) DeleteUser(ctx context.Context, actor roles.Actor, targetID string) error {
	target, err := s.store.FindByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !s.resolver.CanManageUser(actor, target.Actor()) {
		return fmt.Errorf("%w: role %s may not manage this account", ErrAuthorization, actor.Role)
	}
	return s.store.Delete(ctx, targetID, actor.ID)
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrValidation)
	}
	return email, nil
}
