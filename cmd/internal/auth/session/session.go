package session

// Session is the token pair for the current citizen.
//
// It is owned exclusively by the Manager; callers only ever see copies.
// An empty AccessToken means "not authenticated" everywhere in this module.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Authenticated reports whether the session carries an access token.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}
