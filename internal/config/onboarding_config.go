package config

const (
	freePlanIDVar     = "FREE_PLAN_ID"
	backendBaseURLVar = "BACKEND_BASE_URL"
)

type OnboardingConfig interface {
	GetFreePlanID() string
	GetBackendBaseURL() string
}

type Onboarding struct{}

var _ OnboardingConfig = Onboarding{}

// GetFreePlanID names the plan that skips the payment step.
func (Onboarding) GetFreePlanID() string {
	return GetEnv(freePlanIDVar, "free")
}

// GetBackendBaseURL is the business backend that provisions tenants and
// confirms payment methods. Empty selects the in-memory backend.
func (Onboarding) GetBackendBaseURL() string {
	return GetEnv(backendBaseURLVar, "")
}
