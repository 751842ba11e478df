package credential

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func makeToken(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(payload)) + ".c2lnbmF0dXJl"
}

func TestNewRejectsMalformed(t *testing.T) {
	tests := []string{
		"",
		"<USER_ACCESS_TOKEN_HERE>",
		"a.b",
		"a.b.c.d",
		".e30.sig",
		"eyJhbGciOiJub25lIn0.!!!.sig",
		makeToken(`not json`),
		makeToken(`[1,2]`),
		makeToken(`{"exp":"soon"}`),
	}

	for _, tok := range tests {
		if _, err := New(tok); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("New(%q): got %v, want ErrMalformedToken", tok, err)
		}
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	cred, err := New(makeToken(fmt.Sprintf(`{"skypeid":"acs:1","exp":%d}`, exp.Unix())))
	if err != nil {
		t.Fatal(err)
	}
	if !cred.ExpiresOn().Equal(exp) {
		t.Fatalf("ExpiresOn: got %v, want %v", cred.ExpiresOn(), exp)
	}

	ctx := context.Background()
	cred.now = func() time.Time { return exp.Add(-time.Minute) }
	at, err := cred.Token(ctx)
	if err != nil {
		t.Fatalf("token before expiry: %v", err)
	}
	if at.Token == "" {
		t.Fatal("empty token")
	}

	cred.now = func() time.Time { return exp }
	if _, err := cred.Token(ctx); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("token at expiry: got %v, want ErrExpiredToken", err)
	}
}

func TestTokenWithoutExpiry(t *testing.T) {
	cred, err := New("  " + makeToken(`{"sub":"user"}`) + "\n")
	if err != nil {
		t.Fatal(err)
	}
	h, err := BearerHeader(context.Background(), cred)
	if err != nil {
		t.Fatal(err)
	}
	if h != "Bearer "+makeToken(`{"sub":"user"}`) {
		t.Errorf("unexpected header %q", h)
	}
}

func TestVaultSealOpen(t *testing.T) {
	v := NewVault(filepath.Join(t.TempDir(), "nested", "token.sealed"))
	v.N = 1 << 10 // keep the test fast

	if v.Exists() {
		t.Fatal("vault should start empty")
	}
	if err := v.Seal("correct horse", "secret-token"); err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !v.Exists() {
		t.Fatal("vault file missing after seal")
	}

	got, err := v.Open("correct horse")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got != "secret-token" {
		t.Fatalf("got %q", got)
	}

	if _, err := v.Open("wrong"); !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("wrong passphrase: got %v", err)
	}

	if err := v.Clear(); err != nil {
		t.Fatal(err)
	}
	if err := v.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestVaultRequiresPassphrase(t *testing.T) {
	v := NewVault(filepath.Join(t.TempDir(), "token.sealed"))
	if err := v.Seal("", "tok"); err == nil {
		t.Fatal("expected error for empty passphrase")
	}
}
