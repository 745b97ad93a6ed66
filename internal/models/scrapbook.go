package models

import "time"

// ModerationState defines lifecycle states for scrapbook moderation.
type ModerationState string

const (
	// ModerationStateUnmoderated indicates the scrapbook is awaiting review.
	ModerationStateUnmoderated ModerationState = "unmoderated"
	// ModerationStateApproved indicates the scrapbook was accepted.
	ModerationStateApproved ModerationState = "approved"
	// ModerationStateRejected indicates the scrapbook was rejected.
	ModerationStateRejected ModerationState = "rejected"
)

// ModerationTransitions is the accepted transition table, keyed by target
// state. A transition is legal only when the current state appears in the
// source list for the requested target. Unmoderate is deliberately narrower
// than the reverse of reject: it only applies to rejected scrapbooks.
var ModerationTransitions = map[ModerationState][]ModerationState{
	ModerationStateApproved:    {ModerationStateUnmoderated, ModerationStateRejected},
	ModerationStateRejected:    {ModerationStateUnmoderated, ModerationStateApproved},
	ModerationStateUnmoderated: {ModerationStateRejected},
}

// TransitionSources returns the states from which the target state is
// reachable.
func TransitionSources(to ModerationState) []ModerationState {
	return ModerationTransitions[to]
}

// CanTransition reports whether moving from to the target state is legal.
func CanTransition(from, to ModerationState) bool {
	for _, src := range ModerationTransitions[to] {
		if src == from {
			return true
		}
	}
	return false
}

// Scrapbook is an ordered, moderated collection of memories owned by one
// user. Its ScrapbookMemory rows are owned exclusively by the scrapbook;
// the referenced memories are not, and survive scrapbook deletion.
type Scrapbook struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	User            *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title           string          `gorm:"size:200;not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	ModerationState ModerationState `gorm:"type:varchar(20);not null;default:'unmoderated';index" json:"moderation_state"`
	ModeratedAt     *time.Time      `json:"moderated_at"`
	ModeratedByID   *uint           `json:"moderated_by_id"`
	ModeratedBy     *User           `gorm:"foreignKey:ModeratedByID" json:"moderated_by,omitempty"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	ScrapbookMemories []ScrapbookMemory `gorm:"foreignKey:ScrapbookID;constraint:OnDelete:CASCADE" json:"scrapbook_memories,omitempty"`
}

// CanModify reports whether the given user may view or change this
// scrapbook. Only the owner qualifies.
func (s *Scrapbook) CanModify(userID uint) bool {
	return userID != 0 && s.UserID == userID
}
