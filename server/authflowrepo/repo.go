package authflowrepo

import "time"

// AuthFlowState is what a browser login started by the gateway needs at
// the callback. It lives only between the redirect and the callback.
type AuthFlowState struct {
	CodeVerifier string
	Nonce        string
	ReturnTo     string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	// Take returns the state and removes it, so a callback can not be replayed.
	Take(state string) (*AuthFlowState, error)
}
