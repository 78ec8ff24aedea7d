package auth

import "testing"

func TestGenerateOTPFormat(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 10; i++ {
		code, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatal("codes are not varying")
	}
}

func TestHashAndCheckOTP(t *testing.T) {
	hash, err := HashOTP("123456")
	if err != nil {
		t.Fatalf("HashOTP: %v", err)
	}
	if hash == "123456" {
		t.Fatal("code stored in clear")
	}
	if !CheckOTP(hash, "123456") {
		t.Fatal("expected matching code to verify")
	}
	if CheckOTP(hash, "654321") {
		t.Fatal("expected wrong code to fail")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "hunter22") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hash, "hunter2") {
		t.Fatal("expected wrong password to fail")
	}
}
