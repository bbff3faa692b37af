package password

import (
	"testing"
)

func TestBcryptPasswordService(t *testing.T) {
	service := NewBcryptPasswordService(bcryptTestCost, nil)

	t.Run("HashPassword", func(t *testing.T) {
		hash, err := service.HashPassword("test-password-123")
		if err != nil {
			t.Errorf("Failed to hash password: %v", err)
		}
		if hash == "" {
			t.Error("Hash should not be empty")
		}
		if hash == "test-password-123" {
			t.Error("Hash should not equal the plaintext")
		}
	})

	t.Run("HashEmptyPassword", func(t *testing.T) {
		_, err := service.HashPassword("")
		if err == nil {
			t.Error("Should fail to hash empty password")
		}
	})

	t.Run("VerifyPassword", func(t *testing.T) {
		password := "test-password-123"
		hash, err := service.HashPassword(password)
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}

		isValid, err := service.VerifyPassword(password, hash)
		if err != nil {
			t.Errorf("Failed to verify password: %v", err)
		}
		if !isValid {
			t.Error("Password should be valid")
		}
	})

	t.Run("VerifyWrongPassword", func(t *testing.T) {
		hash, err := service.HashPassword("test-password-123")
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}

		isValid, err := service.VerifyPassword("wrong-password-456", hash)
		if err != nil {
			t.Errorf("Should not return error for wrong password: %v", err)
		}
		if isValid {
			t.Error("Wrong password should not be valid")
		}
	})

	t.Run("VerifyEmptyPassword", func(t *testing.T) {
		_, err := service.VerifyPassword("", "$2a$10$somethinghashedlooking")
		if err == nil {
			t.Error("Should fail to verify with empty password")
		}
	})

	t.Run("VerifyEmptyHash", func(t *testing.T) {
		_, err := service.VerifyPassword("password", "")
		if err == nil {
			t.Error("Should fail to verify with empty hash")
		}
	})
}

// bcryptTestCost keeps the hashing rounds cheap in tests.
const bcryptTestCost = 4

func TestCheckStrength(t *testing.T) {
	service := NewBcryptPasswordService(bcryptTestCost, nil)

	tests := []struct {
		name     string
		password string
		valid    bool
		failures int
	}{
		{"Valid", "Abcd1234!", true, 0},
		{"TooShort", "Ab1!", false, 1},
		{"NoUppercase", "abcd1234!", false, 1},
		{"NoLowercase", "ABCD1234!", false, 1},
		{"NoDigit", "Abcdefgh!", false, 1},
		{"NoSpecial", "Abcd12345", false, 1},
		{"Empty", "", false, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, reasons := service.CheckStrength(tt.password)
			if valid != tt.valid {
				t.Errorf("Expected valid=%v, got %v (reasons: %v)", tt.valid, valid, reasons)
			}
			if len(reasons) != tt.failures {
				t.Errorf("Expected %d failed rules, got %d: %v", tt.failures, len(reasons), reasons)
			}
		})
	}
}

func TestCustomStrengthRules(t *testing.T) {
	rules := []StrengthRule{
		{
			Name:   "min_length",
			Reason: "must be at least 12 characters",
			Check:  func(p string) bool { return len(p) >= 12 },
		},
	}
	service := NewBcryptPasswordService(bcryptTestCost, rules)

	valid, _ := service.CheckStrength("short")
	if valid {
		t.Error("Custom rule should reject short password")
	}

	valid, reasons := service.CheckStrength("longenoughpassword")
	if !valid {
		t.Errorf("Custom rule should accept 12+ characters, got %v", reasons)
	}
}
