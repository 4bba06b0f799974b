package domain

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID    string
	Moderator bool
}

// CanManage reports whether the actor may manage resources owned by ownerID.
func (a Actor) CanManage(ownerID string) bool {
	return a.Moderator || (a.UserID != "" && a.UserID == ownerID)
}
