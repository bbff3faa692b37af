package outbound

// PasswordService hashes and verifies passwords and applies the strength
// policy. Implementations must never log or return the plaintext or hash.
type PasswordService interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) (bool, error)
	CheckStrength(password string) (bool, []string)
}
