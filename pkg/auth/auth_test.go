package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testParams = Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(testParams)

	hash, err := h.Hash("s3cret!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Errorf("unexpected hash prefix: %s", hash)
	}

	ok, err := h.Verify("s3cret!", hash)
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}

	ok, err = h.Verify("wrong", hash)
	if err != nil || ok {
		t.Fatalf("Verify(wrong) = %v, %v", ok, err)
	}
}

func TestHasher_VerifyUsesParamsFromHash(t *testing.T) {
	hash, err := NewHasher(testParams).Hash("pw")
	if err != nil {
		t.Fatal(err)
	}

	ok, err := NewHasher(DefaultParams).Verify("pw", hash)
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v", ok, err)
	}
}

func TestHasher_SaltDiffers(t *testing.T) {
	h := NewHasher(testParams)
	a, _ := h.Hash("pw")
	b, _ := h.Hash("pw")
	if a == b {
		t.Error("two hashes of the same password must differ")
	}
}

func TestHasher_InvalidHash(t *testing.T) {
	h := NewHasher(testParams)
	for _, in := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$a$b"} {
		if _, err := h.Verify("pw", in); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidHash", in, err)
		}
	}

	if _, err := h.Verify("pw", "$argon2id$v=16$m=1,t=1,p=1$YQ$Yg"); !errors.Is(err, ErrIncompatibleVersion) {
		t.Errorf("expected ErrIncompatibleVersion, got %v", err)
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("key", time.Minute)

	token, err := m.NewAccessToken(42, "doctor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.UserID != 42 || claims.Role != "doctor" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("key", time.Minute)
	token, _ := m.NewAccessToken(1, "patient")

	other := NewTokenManager("other-key", time.Minute)
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong key: expected ErrInvalidToken, got %v", err)
	}

	expired := NewTokenManager("key", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _ := expired.NewAccessToken(1, "patient")
	if _, err := m.Parse(old); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: expected ErrInvalidToken, got %v", err)
	}

	if _, err := m.Parse("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: expected ErrInvalidToken, got %v", err)
	}
}

func TestNewRefreshToken(t *testing.T) {
	a, err := NewRefreshToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewRefreshToken()
	if a == b || len(a) < 40 {
		t.Errorf("refresh tokens should be long and unique: %q %q", a, b)
	}
}
