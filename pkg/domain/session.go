package domain

// Identity is the signed-in driver as reported by the backend.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the in-memory state of the authenticated driver.
type Session struct {
	Identity
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	PushToken    string `json:"-"`
}

// Active reports whether the session can authorize requests.
// Every downstream component gates on this.
func (s Session) Active() bool {
	return s.Email != "" && s.AccessToken != ""
}

// AuthData is the "data" object returned by /login and /refreshToken.
// RefreshToken is only present on /login.
type AuthData struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Identity returns the identity part of the payload.
func (d AuthData) Identity() Identity {
	return Identity{Name: d.Name, Email: d.Email}
}
