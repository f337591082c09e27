package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("secretPassword", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if hash == "secretPassword" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !VerifyPassword(hash, "secretPassword") {
		t.Fatal("expected verification to succeed for the original password")
	}
}

func TestVerifyPassword_Mismatch(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("secretPassword", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected verification to fail for a different password")
	}
}

func TestVerifyPassword_MalformedDigest(t *testing.T) {
	t.Parallel()

	if VerifyPassword("not-a-bcrypt-digest", "secretPassword") {
		t.Fatal("malformed digest must verify as false, not panic or error")
	}
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	t.Parallel()

	first, err := HashPassword("secretPassword", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	second, err := HashPassword("secretPassword", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
	if !VerifyPassword(first, "secretPassword") || !VerifyPassword(second, "secretPassword") {
		t.Fatal("both digests must verify against the original password")
	}
}
