package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

const testJwtSecret = "test-secret"

func signedAccessToken(t *testing.T, sub string, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestTokenDigest_Deterministic(t *testing.T) {
	a := TokenDigest("kc_abcdef")
	b := TokenDigest("kc_abcdef")
	if a != b {
		t.Fatalf("digest not deterministic: %q != %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("digest length = %d, want 64 hex chars", len(a))
	}
	if a == TokenDigest("kc_abcdeg") {
		t.Fatal("different tokens share a digest")
	}
}

func TestAuthenticate_ApiToken(t *testing.T) {
	user := &types.User{ID: uuid.New()}
	raw := "kc_valid-cli-token"
	apiToken := &types.ApiToken{ID: uuid.New(), UserID: user.ID, Digest: TokenDigest(raw)}
	tokens := newFakeApiTokenRepo(apiToken)
	svc := NewTokenService(nil, testLogger(t), newFakeUserRepo(user), tokens, testJwtSecret)

	rd, err := svc.Authenticate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if rd.UserID != user.ID || rd.TokenID != apiToken.ID {
		t.Fatalf("request data = %+v", rd)
	}
	if len(tokens.touched) != 1 || tokens.touched[0] != apiToken.ID {
		t.Fatalf("last_used_at not touched: %v", tokens.touched)
	}
}

func TestAuthenticate_UnknownApiToken(t *testing.T) {
	svc := NewTokenService(nil, testLogger(t), newFakeUserRepo(), newFakeApiTokenRepo(), testJwtSecret)
	_, err := svc.Authenticate(context.Background(), "kc_nope")
	assertApiErr(t, err, 401, "unauthorized")
}

func TestAuthenticate_AccessToken(t *testing.T) {
	user := &types.User{ID: uuid.New()}
	svc := NewTokenService(nil, testLogger(t), newFakeUserRepo(user), newFakeApiTokenRepo(), testJwtSecret)

	rd, err := svc.Authenticate(context.Background(), signedAccessToken(t, user.ID.String(), testJwtSecret))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if rd.UserID != user.ID {
		t.Fatalf("user = %s, want %s", rd.UserID, user.ID)
	}
	if rd.TokenID != uuid.Nil {
		t.Fatal("access token auth must not carry a token id")
	}
}

func TestAuthenticate_AccessTokenBadSignature(t *testing.T) {
	user := &types.User{ID: uuid.New()}
	svc := NewTokenService(nil, testLogger(t), newFakeUserRepo(user), newFakeApiTokenRepo(), testJwtSecret)
	_, err := svc.Authenticate(context.Background(), signedAccessToken(t, user.ID.String(), "other-secret"))
	assertApiErr(t, err, 401, "unauthorized")
}

func TestAuthenticate_BannedUser(t *testing.T) {
	now := time.Now()
	user := &types.User{ID: uuid.New(), BannedAt: &now}
	raw := "kc_banned"
	tokens := newFakeApiTokenRepo(&types.ApiToken{ID: uuid.New(), UserID: user.ID, Digest: TokenDigest(raw)})
	svc := NewTokenService(nil, testLogger(t), newFakeUserRepo(user), tokens, testJwtSecret)

	// Banned accounts get the same generic 401 as bad credentials.
	_, err := svc.Authenticate(context.Background(), raw)
	assertApiErr(t, err, 401, "unauthorized")
	_, err = svc.Authenticate(context.Background(), signedAccessToken(t, user.ID.String(), testJwtSecret))
	assertApiErr(t, err, 401, "unauthorized")
}

func TestAuthenticate_Empty(t *testing.T) {
	svc := NewTokenService(nil, testLogger(t), newFakeUserRepo(), newFakeApiTokenRepo(), testJwtSecret)
	_, err := svc.Authenticate(context.Background(), "   ")
	assertApiErr(t, err, 401, "unauthorized")
}
