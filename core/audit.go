package core

import (
	"context"
)

// AuthEventLogger records validation outcomes to an external sink (e.g., ClickHouse).
// Implementations should be non-blocking and best-effort; a slow sink must not
// hold up request validation.
type AuthEventLogger interface {
	LogValidation(ctx context.Context, subject string, issuer string, mode ValidationType, accepted bool, reason string) error
}
