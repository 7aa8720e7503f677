package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_ConfiguredCost(t *testing.T) {
	// The account service passes BCRYPT_COST through verbatim; the hash
	// must encode exactly the cost it was given.
	tests := []struct {
		name       string
		cost       int
		wantPrefix string
	}{
		{name: "test cost", cost: 4, wantPrefix: "$2a$04$"},
		{name: "default config cost", cost: 10, wantPrefix: "$2a$10$"},
		{name: "hardened cost", cost: 12, wantPrefix: "$2a$12$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword("Secret1!", tt.cost)
			if err != nil {
				t.Fatalf("HashPassword failed: %v", err)
			}
			if !strings.HasPrefix(hash, tt.wantPrefix) {
				t.Errorf("hash %q does not encode cost %d", hash, tt.cost)
			}
			if !VerifyPassword(hash, "Secret1!") {
				t.Error("hash does not verify against its own password")
			}
		})
	}
}

func TestHashPassword_CostOutOfRange(t *testing.T) {
	if _, err := HashPassword("Secret1!", bcrypt.MaxCost+1); err == nil {
		t.Error("expected error for cost above bcrypt maximum")
	}

	// Costs below the minimum are silently raised by bcrypt, so a
	// misconfigured BCRYPT_COST=0 still yields a working hash.
	hash, err := HashPassword("Secret1!", 0)
	if err != nil {
		t.Fatalf("HashPassword with cost 0 failed: %v", err)
	}
	if !VerifyPassword(hash, "Secret1!") {
		t.Error("hash with clamped cost does not verify")
	}
}

func TestHashPassword_LengthLimit(t *testing.T) {
	// Registration does not cap password length, so the bcrypt 72-byte
	// limit is the effective one.
	if _, err := HashPassword(strings.Repeat("a", 72), 4); err != nil {
		t.Errorf("72-byte password rejected: %v", err)
	}
	if _, err := HashPassword(strings.Repeat("a", 73), 4); err == nil {
		t.Error("expected error for password over 72 bytes")
	}
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	hash1, err := HashPassword("Secret1!", 4)
	if err != nil {
		t.Fatalf("first hash failed: %v", err)
	}
	hash2, err := HashPassword("Secret1!", 4)
	if err != nil {
		t.Fatalf("second hash failed: %v", err)
	}

	if hash1 == hash2 {
		t.Error("two hashes of the same password are identical")
	}
	if !VerifyPassword(hash1, "Secret1!") || !VerifyPassword(hash2, "Secret1!") {
		t.Error("salted hashes do not both verify")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Secret1!", 4)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
	}{
		{name: "correct password", hash: hash, password: "Secret1!", want: true},
		{name: "wrong password", hash: hash, password: "Secret2!", want: false},
		{name: "case matters", hash: hash, password: "secret1!", want: false},
		{name: "empty attempt", hash: hash, password: "", want: false},
		{name: "garbage hash", hash: "notahash", password: "Secret1!", want: false},
		{name: "empty hash", hash: "", password: "Secret1!", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.hash, tt.password); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}
