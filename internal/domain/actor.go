package domain

// Actor is the community member behind a trigger event.
type Actor struct {
	UserID   string
	Username string
	GuildID  string
	IsAdmin  bool
	IsOwner  bool
	RoleIDs  []string
}

// HasRole reports whether the actor holds roleID.
func (a Actor) HasRole(roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, id := range a.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// InGuild reports whether the trigger came from a community rather than a direct message.
func (a Actor) InGuild() bool {
	return a.GuildID != ""
}
