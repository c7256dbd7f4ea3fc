package onboarding

import "context"

// BusinessInfo is the first wizard step's submission.
type BusinessInfo struct {
	Name    string `json:"name" validate:"required,max=200"`
	Country string `json:"country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
}

type PlanSelection struct {
	PlanID string `json:"planId" validate:"required,max=64"`
}

type PaymentConfirmation struct {
	PaymentMethodID string `json:"paymentMethodId" validate:"required,max=128"`
}

// Backend is the business backend behind the wizard. Payment processing and
// tenant provisioning live there.
type Backend interface {
	// ProvisionTenant creates the user's tenant, or returns the existing one
	// so a retried submission does not provision twice.
	ProvisionTenant(ctx context.Context, userID string, info BusinessInfo) (string, error)

	// SelectPlan records the chosen plan on the tenant.
	SelectPlan(ctx context.Context, tenantID, planID string) error

	// ConfirmPaymentMethod succeeds once the processor accepts the method.
	// It does not imply a first charge.
	ConfirmPaymentMethod(ctx context.Context, tenantID, paymentMethodID string) error

	// StartSetup kicks off the asynchronous provisioning job.
	StartSetup(ctx context.Context, tenantID string) error

	// SetupStatus reports whether the provisioning job has finished.
	SetupStatus(ctx context.Context, tenantID string) (bool, error)
}
