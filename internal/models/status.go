package models

// ListingStatus is the lifecycle state of a listing
type ListingStatus string

const (
	StatusPendingApproval ListingStatus = "pending_approval"
	StatusActive          ListingStatus = "active"
	StatusEnded           ListingStatus = "ended"
	StatusArchived        ListingStatus = "archived"
	StatusRejected        ListingStatus = "rejected"
)

// active -> active is a restart.
var allowedTransitions = map[ListingStatus][]ListingStatus{
	StatusPendingApproval: {StatusActive, StatusRejected},
	StatusActive:          {StatusActive, StatusEnded, StatusRejected},
	StatusEnded:           {StatusArchived},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next
func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	for _, to := range allowedTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible
func (s ListingStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

func (s ListingStatus) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusActive, StatusEnded, StatusArchived, StatusRejected:
		return true
	}
	return false
}
