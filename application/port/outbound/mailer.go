package outbound

import "context"

// Mailer dispatches password-reset tokens. Delivery failures are logged by
// the implementation and never surfaced to the caller, so the forgot-password
// reply stays identical whether or not the email exists.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, resetToken string) error
}
