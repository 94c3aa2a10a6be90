package models

// Session is the identity attached to every event. An empty UserID means
// the visitor has not been identified.
type Session struct {
	ID     string `json:"sessionId"`
	UserID string `json:"userId,omitempty"`
}

// Anonymous reports whether no user has been identified for the session.
func (s Session) Anonymous() bool {
	return s.UserID == ""
}
