package domain

// Identity is the authenticated user bound to a connection or request.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func (i Identity) IsZero() bool {
	return i.UserID == ""
}

// DisplayName falls back to the user id when no username is known.
func (i Identity) DisplayName() string {
	if i.Username != "" {
		return i.Username
	}
	return i.UserID
}
