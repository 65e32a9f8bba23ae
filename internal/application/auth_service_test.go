package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/timebox/internal/application"
	"github.com/example/timebox/internal/testfixtures"
)

type authFixture struct {
	service *application.AuthService
	clock   *testfixtures.Clock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	harness := testfixtures.NewSQLiteHarness(t)
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	ids := testfixtures.NewIDGenerator("id")
	tokens := testfixtures.NewIDGenerator("token")

	service := application.NewAuthService(
		harness.Users,
		harness.Sessions,
		nil, nil,
		ids.NextFunc(),
		tokens.NextFunc(),
		clock.NowFunc(),
		24*time.Hour,
		nil,
	)
	return &authFixture{service: service, clock: clock}
}

func TestRegisterThenAuthenticate(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	registered, err := f.service.Register(ctx, application.RegisterInput{
		Email:    "Alex@Example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.User.Email != "alex@example.com" {
		t.Errorf("expected lowercased email, got %s", registered.User.Email)
	}
	if registered.Token == "" {
		t.Error("expected a session token")
	}

	authed, err := f.service.Authenticate(ctx, "alex@example.com", "correct horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.User.ID != registered.User.ID {
		t.Errorf("expected same account, got %s and %s", authed.User.ID, registered.User.ID)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	input := application.RegisterInput{Email: "alex@example.com", Password: "correct horse"}
	if _, err := f.service.Register(ctx, input); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := f.service.Register(ctx, input); !errors.Is(err, application.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)

	_, err := f.service.Register(context.Background(), application.RegisterInput{
		Email:    "not-an-address",
		Password: "short",
	})
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if _, ok := vErr.FieldErrors["email"]; !ok {
		t.Error("expected an email field error")
	}
	if _, ok := vErr.FieldErrors["password"]; !ok {
		t.Error("expected a password field error")
	}
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	if _, err := f.service.Register(ctx, application.RegisterInput{Email: "alex@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.service.Authenticate(ctx, "alex@example.com", "wrong"); !errors.Is(err, application.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.service.Authenticate(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, application.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown account, got %v", err)
	}
}

func TestValidateSessionLifecycle(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	registered, err := f.service.Register(ctx, application.RegisterInput{Email: "alex@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	principal, err := f.service.ValidateSession(ctx, registered.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if principal.UserID != registered.User.ID {
		t.Errorf("unexpected principal %s", principal.UserID)
	}

	f.clock.Advance(25 * time.Hour)
	if _, err := f.service.ValidateSession(ctx, registered.Token); !errors.Is(err, application.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRevokeSessionInvalidatesToken(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	registered, err := f.service.Register(ctx, application.RegisterInput{Email: "alex@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.service.RevokeSession(ctx, registered.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := f.service.ValidateSession(ctx, registered.Token); !errors.Is(err, application.ErrSessionRevoked) {
		t.Errorf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	registered, err := f.service.Register(ctx, application.RegisterInput{Email: "alex@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	principal := application.Principal{UserID: registered.User.ID}

	name := "Alex"
	avatar := "https://example.com/a.png"
	updated, err := f.service.UpdateProfile(ctx, principal, application.ProfilePatch{DisplayName: &name, AvatarURL: &avatar})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.DisplayName != "Alex" || updated.AvatarURL != avatar {
		t.Errorf("unexpected profile %+v", updated)
	}
}
