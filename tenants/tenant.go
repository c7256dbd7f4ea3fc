package tenants

import "time"

// Tenant is the business account a completed onboarding is scoped to.
// It is provisioned once business info has been submitted.
type Tenant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Country      string    `json:"country,omitempty"`
	OwnerUserID  string    `json:"owner_user_id"`
	PlanID       string    `json:"plan_id,omitempty"`
	SetupStarted bool      `json:"setup_started"`
	SetupDone    bool      `json:"setup_done"`
	CreatedAt    time.Time `json:"created_at"`
}
