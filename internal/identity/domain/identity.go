package domain

// Principal is the authenticated identity attached to a request after a
// session token verifies. It is request-scoped and never persisted.
type Principal struct {
	UserID   int64
	Username string
	// Authorities is always empty; access is decided by route classification only.
	Authorities []string
}

// NewPrincipal returns a principal with no authorities.
func NewPrincipal(userID int64, username string) *Principal {
	return &Principal{UserID: userID, Username: username, Authorities: []string{}}
}
