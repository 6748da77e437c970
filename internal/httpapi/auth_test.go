package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"decaldesk/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestCreateDealerAccountStoresPasswordHash(t *testing.T) {
	store := &userStoreStub{users: map[string]domain.UserAccount{}}

	manager := NewAuthManager("test-secret", time.Hour, store)
	account, err := manager.CreateDealerAccount(domain.DealerAccountCreateRequest{
		Username: "stickerhut",
		Password: "pass1234",
		Name:     "Sticker Hut",
	})
	if err != nil {
		t.Fatalf("create dealer account failed: %v", err)
	}
	if account.Username != "stickerhut" {
		t.Fatalf("unexpected username %s", account.Username)
	}
	if account.Role != domain.RoleDealer {
		t.Fatalf("unexpected role %s", account.Role)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "stickerhut" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected dealer account to be saved")
	}
	if found.Password == "pass1234" {
		t.Fatalf("expected dealer password to be hashed")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	_, err = manager.Login(domain.LoginRequest{
		Username: "stickerhut",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("login with hashed dealer account failed: %v", err)
	}
}

func TestCreateDealerAccountRejectsWeakInput(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	cases := []domain.DealerAccountCreateRequest{
		{Username: "ab", Password: "pass1234"},
		{Username: "has space", Password: "pass1234"},
		{Username: "validname", Password: "short"},
	}
	for _, req := range cases {
		if _, err := manager.CreateDealerAccount(req); err == nil {
			t.Errorf("expected rejection for %+v", req)
		}
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	token, err := manager.sign("dealer-a", domain.RoleDealer, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	actor, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse valid token: %v", err)
	}
	if actor.Username != "dealer-a" || actor.Role != domain.RoleDealer {
		t.Fatalf("unexpected actor %+v", actor)
	}

	if _, err := manager.ParseToken(token + "x"); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}

	other := NewAuthManager("different-secret", time.Hour, &userStoreStub{})
	if _, err := other.ParseToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{})

	token, err := manager.sign("dealer-a", domain.RoleDealer, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestInactiveAccountCannotLogin(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"ghost": {
				Username:  "ghost",
				Password:  "ghost-pass",
				Role:      domain.RoleDealer,
				Active:    false,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	if _, err := manager.Login(domain.LoginRequest{Username: "ghost", Password: "ghost-pass"}); err == nil {
		t.Fatal("expected inactive account login to fail")
	}
}
