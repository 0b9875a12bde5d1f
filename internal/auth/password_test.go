package auth

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("rahasia123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "rahasia123" {
		t.Fatal("hash must not equal the password")
	}
	if !CheckPassword(hash, "rahasia123") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "salah") {
		t.Error("expected wrong password to fail")
	}
	if CheckPassword("not-a-hash", "rahasia123") {
		t.Error("expected malformed hash to fail")
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword(16)
	if err != nil {
		t.Fatalf("GeneratePassword: %v", err)
	}
	if len(a) != 16 {
		t.Errorf("expected 16 characters, got %d", len(a))
	}
	b, _ := GeneratePassword(16)
	if a == b {
		t.Error("two generated passwords are identical")
	}
	if strings.ContainsAny(a, " \t\n") {
		t.Errorf("password contains whitespace: %q", a)
	}
}
