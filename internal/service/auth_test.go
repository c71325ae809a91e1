package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/domain"
	"medbook/pkg/auth"
)

type fakeUserRepo struct {
	users map[int64]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user domain.User) (int64, error) {
	user.ID = int64(len(r.users) + 1)
	r.users[user.ID] = &user
	return user.ID, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, notFoundErr("пользователь", id)
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, notFoundErr("пользователь", "")
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Phone == phone })
}

func (r *fakeUserRepo) Update(_ context.Context, id int64, dto domain.UpdateUserDTO) error {
	u, ok := r.users[id]
	if !ok {
		return notFoundErr("пользователь", id)
	}
	if dto.FirstName != nil {
		u.FirstName = *dto.FirstName
	}
	if dto.Email != nil {
		u.Email = *dto.Email
	}
	if dto.IsActive != nil {
		u.IsActive = *dto.IsActive
	}
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	u, ok := r.users[id]
	if !ok {
		return notFoundErr("пользователь", id)
	}
	u.PasswordHash = hash
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int64) error {
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) List(context.Context, domain.UserFilter) ([]domain.User, int, error) {
	return nil, 0, nil
}

type fakeAuthRepo struct {
	sessions map[string]domain.Session
	// lostRace удаляет старую сессию перед ротацией, как параллельный refresh.
	lostRace bool
}

func (r *fakeAuthRepo) CreateSession(_ context.Context, session domain.Session) error {
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeAuthRepo) GetSessionByRefreshToken(_ context.Context, token string) (*domain.Session, error) {
	for _, s := range r.sessions {
		if s.RefreshToken == token {
			cp := s
			return &cp, nil
		}
	}
	return nil, notFoundErr("сессия", "")
}

func (r *fakeAuthRepo) RotateSession(_ context.Context, oldID string, next domain.Session) error {
	if r.lostRace {
		delete(r.sessions, oldID)
	}
	if _, ok := r.sessions[oldID]; !ok {
		return notFoundErr("сессия", oldID)
	}
	delete(r.sessions, oldID)
	r.sessions[next.ID] = next
	return nil
}

func (r *fakeAuthRepo) DeleteExpiredSessions(_ context.Context, userID int64, now time.Time) (int64, error) {
	var n int64
	for id, s := range r.sessions {
		if s.UserID == userID && !s.ExpiresAt.After(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeAuthRepo) DeleteSession(_ context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func (r *fakeAuthRepo) DeleteSessionsByUserID(_ context.Context, userID int64) error {
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

var testHashParams = auth.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newAuthService() (*AuthServiceImpl, *fakeUserRepo, *fakeAuthRepo) {
	users := newFakeUserRepo()
	sessions := &fakeAuthRepo{sessions: make(map[string]domain.Session)}
	jwtConfig := config.JWTConfig{SigningKey: "test", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour}

	svc := NewAuthService(sessions, users,
		auth.NewTokenManager(jwtConfig.SigningKey, jwtConfig.AccessTokenTTL),
		auth.NewHasher(testHashParams),
		jwtConfig, zap.NewNop())

	return svc, users, sessions
}

func registerPatient() domain.RegisterRequest {
	return domain.RegisterRequest{
		FirstName: "анна",
		LastName:  "Иванова",
		Email:     " Anna@Example.com ",
		Phone:     "8 (912) 345-67-89",
		Password:  "secret1",
		Role:      domain.UserRolePatient,
	}
}

func TestAuthRegister(t *testing.T) {
	svc, users, _ := newAuthService()
	ctx := context.Background()

	id, err := svc.Register(ctx, registerPatient())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user := users.users[id]
	if user.Email != "anna@example.com" || user.Phone != "+79123456789" || user.FirstName != "Анна" {
		t.Errorf("user not normalized: %+v", user)
	}
	if user.PasswordHash == "" || strings.Contains(user.PasswordHash, "secret1") {
		t.Error("password must be stored hashed")
	}
	if !user.IsActive {
		t.Error("new user must be active")
	}

	if _, err := svc.Register(ctx, registerPatient()); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate email: expected conflict, got %v", err)
	}

	admin := registerPatient()
	admin.Email, admin.Phone, admin.Role = "root@example.com", "+70000000001", domain.UserRoleAdmin
	if _, err := svc.Register(ctx, admin); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("admin self-registration: expected forbidden, got %v", err)
	}

	weak := registerPatient()
	weak.Email, weak.Phone, weak.Password = "weak@example.com", "+70000000002", "password"
	if _, err := svc.Register(ctx, weak); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("weak password: expected validation error, got %v", err)
	}
}

func TestAuthLoginRefreshLogout(t *testing.T) {
	svc, users, sessions := newAuthService()
	ctx := context.Background()

	id, err := svc.Register(ctx, registerPatient())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, domain.LoginRequest{Login: "anna@example.com", Password: "wrong1"}, "ua", "127.0.0.1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("wrong password: expected unauthorized, got %v", err)
	}

	tokens, err := svc.Login(ctx, domain.LoginRequest{Login: "ANNA@example.com", Password: "secret1"}, "ua", "127.0.0.1")
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions.sessions))
	}

	identity, err := svc.ParseToken(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if identity.UserID != id || identity.Role != domain.UserRolePatient {
		t.Errorf("unexpected identity %+v", identity)
	}

	if _, err := svc.Login(ctx, domain.LoginRequest{Login: "89123456789", Password: "secret1"}, "ua", "127.0.0.1"); err != nil {
		t.Errorf("login by phone: %v", err)
	}

	rotated, err := svc.RefreshTokens(ctx, tokens.RefreshToken, "ua", "127.0.0.1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		t.Error("refresh token must rotate")
	}
	if _, err := svc.RefreshTokens(ctx, tokens.RefreshToken, "ua", "127.0.0.1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("old refresh token: expected unauthorized, got %v", err)
	}

	if err := svc.Logout(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.RefreshTokens(ctx, rotated.RefreshToken, "ua", "127.0.0.1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("after logout: expected unauthorized, got %v", err)
	}
	if err := svc.Logout(ctx, rotated.RefreshToken); err != nil {
		t.Errorf("repeated logout must succeed: %v", err)
	}

	users.users[id].IsActive = false
	if _, err := svc.Login(ctx, domain.LoginRequest{Login: "anna@example.com", Password: "secret1"}, "ua", "127.0.0.1"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("inactive user: expected forbidden, got %v", err)
	}
}

func TestAuthRefreshExpired(t *testing.T) {
	svc, _, sessions := newAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, registerPatient()); err != nil {
		t.Fatalf("register: %v", err)
	}
	tokens, err := svc.Login(ctx, domain.LoginRequest{Login: "anna@example.com", Password: "secret1"}, "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := svc.RefreshTokens(ctx, tokens.RefreshToken, "", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expired session: expected unauthorized, got %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Error("expired session must be removed")
	}
}

func TestAuthParseToken_Invalid(t *testing.T) {
	svc, _, _ := newAuthService()

	if _, err := svc.ParseToken(context.Background(), "garbage"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}

	other := auth.NewTokenManager("other-key", time.Minute)
	token, err := other.NewAccessToken(1, string(domain.UserRolePatient))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.ParseToken(context.Background(), token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("foreign signature: expected unauthorized, got %v", err)
	}
}

func TestUserUpdatePassword(t *testing.T) {
	users := newFakeUserRepo()
	sessions := &fakeAuthRepo{sessions: make(map[string]domain.Session)}
	svc := NewUserService(users, sessions, auth.NewHasher(testHashParams), zap.NewNop())
	ctx := context.Background()

	id, err := svc.Create(ctx, domain.CreateUserDTO{
		FirstName: "Пётр",
		LastName:  "Сидоров",
		Email:     "petr@example.com",
		Phone:     "+79990001122",
		Password:  "start123",
		Role:      domain.UserRoleDoctor,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.UpdatePassword(ctx, id, domain.PasswordUpdateDTO{OldPassword: "nope123", NewPassword: "next123"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("wrong old password: expected validation error, got %v", err)
	}
	sessions.sessions["s1"] = domain.Session{ID: "s1", UserID: id, RefreshToken: "old"}
	sessions.sessions["s2"] = domain.Session{ID: "s2", UserID: id + 1, RefreshToken: "other"}

	if err := svc.UpdatePassword(ctx, id, domain.PasswordUpdateDTO{OldPassword: "start123", NewPassword: "next123"}); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if _, ok := sessions.sessions["s1"]; ok {
		t.Error("sessions must be revoked after password change")
	}
	if _, ok := sessions.sessions["s2"]; !ok {
		t.Error("sessions of other users must stay")
	}

	ok, err := auth.NewHasher(testHashParams).Verify("next123", users.users[id].PasswordHash)
	if err != nil || !ok {
		t.Errorf("new password must verify, ok=%v err=%v", ok, err)
	}

	if _, err := svc.GetByID(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestAuthRefresh_RotationLostRace(t *testing.T) {
	svc, _, sessions := newAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, registerPatient()); err != nil {
		t.Fatalf("register: %v", err)
	}
	tokens, err := svc.Login(ctx, domain.LoginRequest{Login: "anna@example.com", Password: "secret1"}, "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	sessions.lostRace = true
	if _, err := svc.RefreshTokens(ctx, tokens.RefreshToken, "", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("reused refresh token: expected unauthorized, got %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Errorf("no new session may be created, got %d", len(sessions.sessions))
	}
}

func TestAuthLogin_PurgesExpiredSessions(t *testing.T) {
	svc, _, sessions := newAuthService()
	ctx := context.Background()

	id, err := svc.Register(ctx, registerPatient())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	sessions.sessions["stale"] = domain.Session{ID: "stale", UserID: id, RefreshToken: "stale", ExpiresAt: time.Now().Add(-time.Hour)}

	if _, err := svc.Login(ctx, domain.LoginRequest{Login: "anna@example.com", Password: "secret1"}, "", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, ok := sessions.sessions["stale"]; ok {
		t.Error("expired session must be removed on login")
	}
	if len(sessions.sessions) != 1 {
		t.Errorf("expected only the new session, got %d", len(sessions.sessions))
	}
}
