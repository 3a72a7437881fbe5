package authkit

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, hashErr := HashPassword("correct horse battery staple")
	if hashErr != nil {
		t.Fatalf("unexpected hash error: %v", hashErr)
	}
	if hash == "" || hash == "correct horse battery staple" {
		t.Fatalf("expected a derived hash, got %q", hash)
	}
	if !VerifyPassword("correct horse battery staple", hash) {
		t.Fatalf("expected password to verify against its own hash")
	}
	if VerifyPassword("wrong password", hash) {
		t.Fatalf("expected wrong password to fail verification")
	}
}

func TestVerifyPasswordFailsClosed(t *testing.T) {
	t.Parallel()

	if VerifyPassword("anything", "") {
		t.Fatalf("expected empty stored hash to fail verification")
	}
	if VerifyPassword("anything", "not-a-bcrypt-hash") {
		t.Fatalf("expected malformed stored hash to fail verification")
	}
}
