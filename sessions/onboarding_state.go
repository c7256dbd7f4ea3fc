package sessions

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
)

// OnboardingState is the step a new tenant's setup has reached. The zero value
// is NotStarted and states are ordered.
type OnboardingState int

const (
	NotStarted OnboardingState = iota
	BusinessInfo
	Subscription
	Payment
	Setup
	Complete
)

var onboardingStateNames = [...]string{
	NotStarted:   "NOT_STARTED",
	BusinessInfo: "BUSINESS_INFO",
	Subscription: "SUBSCRIPTION",
	Payment:      "PAYMENT",
	Setup:        "SETUP",
	Complete:     "COMPLETE",
}

// AllOnboardingStates lists the states in order.
func AllOnboardingStates() []OnboardingState {
	return []OnboardingState{NotStarted, BusinessInfo, Subscription, Payment, Setup, Complete}
}

func (s OnboardingState) Valid() bool {
	return s >= NotStarted && s <= Complete
}

func (s OnboardingState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("OnboardingState(%d)", int(s))
	}
	return onboardingStateNames[s]
}

// HasTenant reports whether a session in this state must carry a tenant ID.
func (s OnboardingState) HasTenant() bool {
	return s >= Subscription
}

// ParseOnboardingState accepts the upper-case names, case-insensitively.
func ParseOnboardingState(v string) (OnboardingState, error) {
	for i, name := range onboardingStateNames {
		if strings.EqualFold(name, v) {
			return OnboardingState(i), nil
		}
	}
	return NotStarted, errors.Wrapf(errors.ErrUnknownOnboardingState, "%q", v)
}

func (s OnboardingState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.Wrapf(errors.ErrUnknownOnboardingState, "%d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *OnboardingState) UnmarshalText(text []byte) error {
	parsed, err := ParseOnboardingState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
