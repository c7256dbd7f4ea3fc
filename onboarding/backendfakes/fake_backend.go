package backendfakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/onboarding"
	"github.com/jrsteele09/go-session-gateway/tenants"
)

var _ onboarding.Backend = (*FakeBackend)(nil)

// FakeBackend provisions tenants into a tenants.Repo. It backs local
// development and the tests.
type FakeBackend struct {
	tenants      tenants.Repo
	failures     map[string]error // operation -> injected error
	autoComplete bool
	lock         sync.Mutex
}

type Option func(*FakeBackend)

// WithAutoComplete makes setup finish as soon as it starts.
func WithAutoComplete() Option {
	return func(b *FakeBackend) {
		b.autoComplete = true
	}
}

func NewFakeBackend(repo tenants.Repo, opts ...Option) *FakeBackend {
	b := &FakeBackend{tenants: repo, failures: make(map[string]error)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FailWith makes op ("provision", "plan", "payment", "setup", "status")
// return err until cleared with a nil err.
func (b *FakeBackend) FailWith(op string, err error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// CompleteSetup marks the tenant's setup job as finished.
func (b *FakeBackend) CompleteSetup(tenantID string) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.update(tenantID, func(t *tenants.Tenant) error {
		if !t.SetupStarted {
			return errors.Wrapf(errors.ErrInvalidRequest, "setup not started")
		}
		t.SetupDone = true
		return nil
	})
}

func (b *FakeBackend) ProvisionTenant(_ context.Context, userID string, info onboarding.BusinessInfo) (string, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.failures["provision"]; err != nil {
		return "", err
	}
	if existing, err := b.tenants.GetByOwner(userID); err == nil {
		return existing.ID, nil
	}
	tenant := &tenants.Tenant{Name: info.Name, Country: info.Country, OwnerUserID: userID}
	if err := b.tenants.Upsert(tenant); err != nil {
		return "", err
	}
	return tenant.ID, nil
}

func (b *FakeBackend) SelectPlan(_ context.Context, tenantID, planID string) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.failures["plan"]; err != nil {
		return err
	}
	return b.update(tenantID, func(t *tenants.Tenant) error {
		t.PlanID = planID
		return nil
	})
}

func (b *FakeBackend) ConfirmPaymentMethod(_ context.Context, tenantID, paymentMethodID string) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.failures["payment"]; err != nil {
		return err
	}
	if paymentMethodID == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "missing payment method")
	}
	_, err := b.tenants.Get(tenantID)
	return err
}

func (b *FakeBackend) StartSetup(_ context.Context, tenantID string) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.failures["setup"]; err != nil {
		return err
	}
	return b.update(tenantID, func(t *tenants.Tenant) error {
		t.SetupStarted = true
		t.SetupDone = t.SetupDone || b.autoComplete
		return nil
	})
}

func (b *FakeBackend) SetupStatus(_ context.Context, tenantID string) (bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.failures["status"]; err != nil {
		return false, err
	}
	tenant, err := b.tenants.Get(tenantID)
	if err != nil {
		return false, err
	}
	return tenant.SetupDone, nil
}

// update must be called with the lock held.
func (b *FakeBackend) update(tenantID string, fn func(*tenants.Tenant) error) error {
	tenant, err := b.tenants.Get(tenantID)
	if err != nil {
		return err
	}
	if err := fn(tenant); err != nil {
		return err
	}
	return b.tenants.Upsert(tenant)
}
