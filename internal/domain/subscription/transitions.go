package subscription

// Transition is a status change.
type Transition struct {
	From Status
	To   Status
}

var validTransitions = map[Transition]bool{
	{StatusPending, StatusActive}:    true, // payment confirmed
	{StatusPending, StatusCancelled}: true,
	{StatusActive, StatusActive}:     true, // renewal
	{StatusActive, StatusExpired}:    true,
	{StatusActive, StatusCancelled}:  true,
	{StatusExpired, StatusActive}:    true, // explicit renewal only
}

// CanTransition checks if a transition from one status to another is valid.
func CanTransition(from, to Status) bool {
	return validTransitions[Transition{from, to}]
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExpired, StatusCancelled:
		return true
	}
	return false
}
