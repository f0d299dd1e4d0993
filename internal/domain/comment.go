package domain

import "time"

// Comment is an append-only remark on a ticket.
type Comment struct {
	ID        int64
	TicketID  int64
	AuthorID  int64
	Message   string
	Private   bool
	CreatedAt time.Time

	AuthorName string
}

// VisibleTo reports whether the viewer may read the comment.
func (c Comment) VisibleTo(viewer *User) bool {
	if !c.Private {
		return true
	}
	return viewer != nil && viewer.Role != RoleClient
}
