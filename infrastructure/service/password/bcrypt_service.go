package password

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// StrengthRule is a named password policy check. The rule set is data, not
// scattered conditionals, so the policy can be audited and tested on its own.
type StrengthRule struct {
	Name   string
	Reason string
	Check  func(password string) bool
}

// DefaultStrengthRules is the registration/reset/change policy: minimum
// length plus the four composition classes.
func DefaultStrengthRules() []StrengthRule {
	return []StrengthRule{
		{
			Name:   "min_length",
			Reason: "must be at least 8 characters",
			Check:  func(p string) bool { return len(p) >= 8 },
		},
		{
			Name:   "uppercase",
			Reason: "must contain an uppercase letter",
			Check:  containsClass(unicode.IsUpper),
		},
		{
			Name:   "lowercase",
			Reason: "must contain a lowercase letter",
			Check:  containsClass(unicode.IsLower),
		},
		{
			Name:   "digit",
			Reason: "must contain a digit",
			Check:  containsClass(unicode.IsDigit),
		},
		{
			Name:   "special",
			Reason: "must contain a special character",
			Check: containsClass(func(r rune) bool {
				return unicode.IsPunct(r) || unicode.IsSymbol(r)
			}),
		},
	}
}

func containsClass(class func(rune) bool) func(string) bool {
	return func(password string) bool {
		for _, r := range password {
			if class(r) {
				return true
			}
		}
		return false
	}
}

// BcryptPasswordService hashes and verifies passwords with bcrypt and applies
// the strength rule set. Plaintext and hashes are never logged.
type BcryptPasswordService struct {
	cost  int
	rules []StrengthRule
}

func NewBcryptPasswordService(cost int, rules []StrengthRule) *BcryptPasswordService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if rules == nil {
		rules = DefaultStrengthRules()
	}
	return &BcryptPasswordService{
		cost:  cost,
		rules: rules,
	}
}

func (s *BcryptPasswordService) HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedPassword), nil
}

// VerifyPassword reports whether password matches hash. A mismatch is
// (false, nil); errors are reserved for malformed hashes and empty input.
func (s *BcryptPasswordService) VerifyPassword(password, hash string) (bool, error) {
	if hash == "" || password == "" {
		return false, fmt.Errorf("passwords cannot be empty")
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return false, fmt.Errorf("failed to compare passwords: %w", err)
	}

	return true, nil
}

// CheckStrength runs every rule and returns the reasons for all that failed.
func (s *BcryptPasswordService) CheckStrength(password string) (bool, []string) {
	var reasons []string
	for _, rule := range s.rules {
		if !rule.Check(password) {
			reasons = append(reasons, rule.Reason)
		}
	}
	return len(reasons) == 0, reasons
}
