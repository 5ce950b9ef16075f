package crypto

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	tests := []struct {
		name   string
		token  string
		wantOK bool
	}{
		{name: "jwt with exp", token: signedToken(t, jwt.MapClaims{"sub": "alice", "exp": exp.Unix()}), wantOK: true},
		{name: "jwt without exp", token: signedToken(t, jwt.MapClaims{"sub": "alice"}), wantOK: false},
		{name: "opaque token", token: "not-a-jwt", wantOK: false},
		{name: "empty token", token: "", wantOK: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := TokenExpiry(test.token)
			if ok != test.wantOK {
				t.Fatalf("TokenExpiry() ok = %v, want %v", ok, test.wantOK)
			}
			if ok && !got.Equal(exp) {
				t.Errorf("TokenExpiry() = %v, want %v", got, exp)
			}
		})
	}
}

// Requirement: an expired JWT still reports its expiry; the signature and exp are never enforced client-side.
func TestTokenExpiry_ExpiredToken(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{"exp": exp.Unix()})

	got, ok := TokenExpiry(token)
	if !ok {
		t.Fatal("expected expiry for expired token")
	}
	if !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", got, exp)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("token-a")
	b := Fingerprint("token-b")

	if len(a) != fingerprintLength {
		t.Errorf("Fingerprint length = %d, want %d", len(a), fingerprintLength)
	}
	if a == b {
		t.Error("different tokens should have different fingerprints")
	}
	if a != Fingerprint("token-a") {
		t.Error("Fingerprint should be deterministic")
	}
	if Fingerprint("") != "" {
		t.Error("empty token should have empty fingerprint")
	}
}

func TestSameToken(t *testing.T) {
	if !SameToken("abc", "abc") {
		t.Error("identical tokens should match")
	}
	if SameToken("abc", "abd") || SameToken("abc", "") {
		t.Error("different tokens should not match")
	}
}
