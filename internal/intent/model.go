package intent

import (
	"time"

	"membership_backend/internal/common"
)

// Token purposes. A single table backs every short-lived keyed value the
// application needs; the purpose tag keeps the namespaces apart.
const (
	PurposeOAuthState        = "oauth_state"
	PurposeEmailVerification = "email_verification"
)

// EphemeralToken is a short-lived keyed value with an expiry. Rows are created
// immediately before an external redirect (or email dispatch) and deleted once
// consumed. Expired, unconsumed rows are tolerated: every lookup filters on
// the expiry, and a cron job purges leftovers.
type EphemeralToken struct {
	common.BaseModel
	Identifier string    `gorm:"type:varchar(255);index;not null"`
	Token      string    `gorm:"type:text;not null"`
	Purpose    string    `gorm:"type:varchar(50);index;not null"`
	ExpiresAt  time.Time `gorm:"index;not null"`
}

// TableName specifies the table name for the EphemeralToken model.
func (EphemeralToken) TableName() string {
	return "ephemeral_tokens"
}

// Intent is the user's declared goal for a sign-in attempt.
type Intent string

const (
	// IntentLogin requires an existing account.
	IntentLogin Intent = "login"
	// IntentRegister requires that no account exists yet.
	IntentRegister Intent = "register"
)

// ParseIntent validates a raw intent string.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentLogin, IntentRegister:
		return Intent(s), true
	}
	return "", false
}
