package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven/mocks"
)

func newTestAuthService(users ...domain.APIUser) (*mocks.MockAuthAdapter, *authService) {
	authAdapter := mocks.NewMockAuthAdapter()
	if len(users) == 0 {
		users = []domain.APIUser{
			{Username: "admin", PasswordHash: "password123", Role: domain.RoleAdmin},
			{Username: "ha", PasswordHash: "readonly", Role: domain.RoleViewer},
		}
	}
	svc := NewAuthService(users, authAdapter, time.Hour).(*authService)
	return authAdapter, svc
}

func TestAuthService_Authenticate(t *testing.T) {
	_, svc := newTestAuthService()

	tests := []struct {
		name    string
		req     domain.LoginRequest
		wantErr error
	}{
		{
			name:    "valid credentials",
			req:     domain.LoginRequest{Username: "admin", Password: "password123"},
			wantErr: nil,
		},
		{
			name:    "empty username",
			req:     domain.LoginRequest{Username: "", Password: "password123"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "empty password",
			req:     domain.LoginRequest{Username: "admin", Password: ""},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "wrong password",
			req:     domain.LoginRequest{Username: "admin", Password: "wrongpassword"},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name:    "unknown user",
			req:     domain.LoginRequest{Username: "nobody", Password: "password123"},
			wantErr: domain.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Authenticate(context.Background(), tt.req)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Token == "" {
				t.Error("expected token to be set")
			}
			if resp.Role != domain.RoleAdmin {
				t.Errorf("expected role admin, got %s", resp.Role)
			}
			if resp.ExpiresAt.Before(time.Now()) {
				t.Error("expected expiry in the future")
			}
		})
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	_, svc := newTestAuthService()

	resp, err := svc.Authenticate(context.Background(), domain.LoginRequest{Username: "ha", Password: "readonly"})
	if err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}

	authCtx, err := svc.ValidateToken(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if authCtx.Username != "ha" {
		t.Errorf("expected username ha, got %s", authCtx.Username)
	}
	if authCtx.IsAdmin() {
		t.Error("viewer must not be admin")
	}
}

func TestAuthService_ValidateToken_Invalid(t *testing.T) {
	_, svc := newTestAuthService()

	for _, token := range []string{"", "not-a-token"} {
		_, err := svc.ValidateToken(context.Background(), token)
		if !errors.Is(err, domain.ErrTokenInvalid) {
			t.Errorf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestAuthService_ValidateToken_Expired(t *testing.T) {
	_, svc := newTestAuthService()

	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }
	resp, err := svc.Authenticate(context.Background(), domain.LoginRequest{Username: "admin", Password: "password123"})
	if err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}

	svc.now = time.Now
	_, err = svc.ValidateToken(context.Background(), resp.Token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthService_ValidateToken_RemovedUser(t *testing.T) {
	adapter, svc := newTestAuthService()

	token, err := adapter.GenerateToken(&domain.TokenClaims{
		Subject:   "ghost",
		Role:      domain.RoleAdmin,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	_, err = svc.ValidateToken(context.Background(), token)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
