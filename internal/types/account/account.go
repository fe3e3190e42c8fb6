package account

import "time"

// Credentials is the OAuth token pair the account authorized us with.
// The engine never inspects it, it is only handed to the platform client.
type Credentials struct {
	AccessToken       string `json:"-"`
	AccessTokenSecret string `json:"-"`
}

type DeviceToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type Account struct {
	UID         string      `json:"uid"`
	ScreenName  string      `json:"screenName"`
	Credentials Credentials `json:"-"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`

	// Suppressions holds sink uids this account previously unblocked.
	// Populated by the unblock flow, read-only here.
	Suppressions map[string]bool `json:"-"`

	DeviceTokens []DeviceToken `json:"-"`
}

// Suppressed reports whether the account previously unblocked sinkUID.
func (a *Account) Suppressed(sinkUID string) bool {
	return a.Suppressions[sinkUID]
}
