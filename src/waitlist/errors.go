package waitlist

import "errors"

var (
	// ErrCapacityAvailable is a routing signal, not a failure: the camp
	// still has room, so the caller should take the normal registration
	// path instead of queueing.
	ErrCapacityAvailable = errors.New("camp has capacity available")

	// ErrDuplicateEntry means the camper already holds an active
	// registration (waitlisted, pending or confirmed) for this camp.
	ErrDuplicateEntry = errors.New("camper already has an active registration for this camp")

	// ErrInvalidToken means the token does not resolve to a waitlisted
	// entry. Tokens die permanently when an entry leaves the waitlist.
	ErrInvalidToken = errors.New("offer token is not valid")

	// ErrOfferExpired means the token is real but the accept window has
	// lapsed.
	ErrOfferExpired = errors.New("offer has expired")

	// ErrSpotNoLongerAvailable means capacity changed between offer
	// issuance and the claimant acting on it.
	ErrSpotNoLongerAvailable = errors.New("spot is no longer available")

	ErrNotFound = errors.New("record not found")
)
