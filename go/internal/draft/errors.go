package draft

import "errors"

// Pick validation errors. The messages are stable and shown to clients.
var (
	ErrNotStarted     = errors.New("Draft not started")
	ErrPaused         = errors.New("Draft paused")
	ErrPlayerNotFound = errors.New("Player not found")
	ErrAlreadyPicked  = errors.New("Player already picked")
	ErrNotYourTurn    = errors.New("Not your turn")
	ErrTeamNotFound   = errors.New("Team not found")
	ErrTeamFull       = errors.New("Team is full")
	ErrSalaryCap      = errors.New("Salary cap exceeded")
	ErrNoSlot         = errors.New("No roster slot available")
)

var (
	// ErrNoEligiblePlayer means auto-pick found no undrafted, affordable and slottable player.
	ErrNoEligiblePlayer = errors.New("no eligible player")
	ErrRoomNotFound     = errors.New("Draft room not found")
	ErrInvalidConfig    = errors.New("invalid draft config")
	ErrForbidden        = errors.New("admin only")
)

var validationErrors = []error{
	ErrNotStarted, ErrPaused, ErrPlayerNotFound, ErrAlreadyPicked, ErrNotYourTurn,
	ErrTeamNotFound, ErrTeamFull, ErrSalaryCap, ErrNoSlot, ErrNoEligiblePlayer, ErrInvalidConfig,
}

// IsValidation reports whether err is a rejected operation rather than a failure.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

var publicErrors = append([]error{ErrRoomNotFound, ErrForbidden}, validationErrors...)

// PublicMessage returns the client-facing text for err: the sentinel's own
// message when err wraps one, err's text otherwise.
func PublicMessage(err error) string {
	for _, v := range publicErrors {
		if errors.Is(err, v) {
			return v.Error()
		}
	}
	return err.Error()
}
