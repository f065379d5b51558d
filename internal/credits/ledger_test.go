package credits

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scrapdeouf-engine/internal/domain"
)

type memStore struct {
	mu       sync.Mutex
	accounts map[string]Account
}

func newMemStore(accts ...Account) *memStore {
	m := &memStore{accounts: make(map[string]Account)}
	for _, a := range accts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *memStore) GetAccount(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, errors.New("account not found")
	}
	return a, nil
}

func (m *memStore) UpdateAccount(_ context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
	return nil
}

func mapJob(max int, emails, phones bool) *domain.ExtractionJob {
	return &domain.ExtractionJob{
		Template: domain.TemplateMapSearch,
		Map:      &domain.MapSearchConfig{Query: "plumber paris", MaxResults: max, EnrichEmails: emails, EnrichPhones: phones},
	}
}

func TestEstimate_MapSurcharges(t *testing.T) {
	cases := []struct {
		name   string
		job    *domain.ExtractionJob
		expect int
	}{
		{"base only", mapJob(10, false, false), 10 * BaseCostPerResult},
		{"emails", mapJob(10, true, false), 10 * (BaseCostPerResult + EmailSurcharge)},
		{"phones", mapJob(10, false, true), 10 * (BaseCostPerResult + PhoneSurcharge)},
		{"both", mapJob(10, true, true), 10 * (BaseCostPerResult + EmailSurcharge + PhoneSurcharge)},
	}
	for _, c := range cases {
		if got := Estimate(c.job); got != c.expect {
			t.Errorf("%s: Estimate = %d, want %d", c.name, got, c.expect)
		}
	}
}

func TestEstimate_CapsRequestedMax(t *testing.T) {
	job := mapJob(5000, false, false)
	if got := Estimate(job); got != domain.MaxTargets*BaseCostPerResult {
		t.Errorf("Estimate with max 5000 = %d, want %d", got, domain.MaxTargets*BaseCostPerResult)
	}
}

func TestActualCost_CommerceDetailSurcharge(t *testing.T) {
	job := &domain.ExtractionJob{
		Template: domain.TemplateCommerceSearch,
		Commerce: &domain.CommerceSearchConfig{SearchURL: "https://shop.example/s?k=x", MaxResults: 50},
	}
	if got := ActualCost(job, 7); got != 7*(BaseCostPerResult+DetailSurcharge) {
		t.Errorf("ActualCost = %d, want %d", got, 7*(BaseCostPerResult+DetailSurcharge))
	}
}

func TestDeduct_UsedAfterEqualsUsedBeforePlusActual(t *testing.T) {
	st := newMemStore(Account{
		ID: "a1", Plan: PlanPro, Interval: IntervalMonthly,
		SubscriptionActive: true, Used: 120, Limit: PlanLimit(PlanPro),
		LastReset: time.Now().Add(-time.Hour),
	})
	l := NewLedger(st)

	if err := l.Deduct(context.Background(), "a1", 33); err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	a, _ := st.GetAccount(context.Background(), "a1")
	if a.Used != 153 {
		t.Errorf("used after = %d, want 153", a.Used)
	}
}

func TestAuthorize_RejectsWithShortfall(t *testing.T) {
	st := newMemStore(Account{
		ID: "a1", Plan: PlanFree, Interval: IntervalMonthly,
		SubscriptionActive: true, Used: 40, Limit: PlanLimit(PlanFree),
		LastReset: time.Now().Add(-time.Hour),
	})
	l := NewLedger(st)

	err := l.Authorize(context.Background(), "a1", 25)
	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("Authorize error = %v, want QuotaError", err)
	}
	if qe.Shortfall != 15 {
		t.Errorf("shortfall = %d, want 15", qe.Shortfall)
	}
	if qe.Remaining != 10 {
		t.Errorf("remaining = %d, want 10", qe.Remaining)
	}
}

func TestRefresh_ResetsPastAnniversary(t *testing.T) {
	st := newMemStore(Account{
		ID: "a1", Plan: PlanStarter, Interval: IntervalMonthly,
		SubscriptionActive: true, Used: 480, Limit: PlanLimit(PlanStarter),
		LastReset: time.Now().AddDate(0, -2, 0),
	})
	l := NewLedger(st)

	// An estimate that would not fit against stale usage must pass
	// once the window has rolled over.
	if err := l.Authorize(context.Background(), "a1", 100); err != nil {
		t.Fatalf("Authorize after anniversary: %v", err)
	}
	a, _ := st.GetAccount(context.Background(), "a1")
	if a.Used != 0 {
		t.Errorf("used after reset = %d, want 0", a.Used)
	}
}

func TestRefresh_YearlyIntervalNotResetEarly(t *testing.T) {
	last := time.Now().AddDate(0, -6, 0)
	st := newMemStore(Account{
		ID: "a1", Plan: PlanBusiness, Interval: IntervalYearly,
		SubscriptionActive: true, Used: 100, Limit: PlanLimit(PlanBusiness),
		LastReset: last,
	})
	l := NewLedger(st)

	if err := l.Deduct(context.Background(), "a1", 1); err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	a, _ := st.GetAccount(context.Background(), "a1")
	if a.Used != 101 {
		t.Errorf("yearly account reset after 6 months: used = %d, want 101", a.Used)
	}
}

func TestRefresh_LapsedSubscriptionForcedToFreeTier(t *testing.T) {
	st := newMemStore(Account{
		ID: "a1", Plan: PlanPro, Interval: IntervalYearly,
		SubscriptionActive: false, Used: 900, Limit: PlanLimit(PlanPro),
		LastReset: time.Now().AddDate(-2, 0, 0),
	})
	l := NewLedger(st)

	err := l.Authorize(context.Background(), "a1", 10)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	a, _ := st.GetAccount(context.Background(), "a1")
	if a.Plan != PlanFree || a.Limit != PlanLimit(PlanFree) {
		t.Errorf("lapsed account = plan %s limit %d, want free/%d", a.Plan, a.Limit, PlanLimit(PlanFree))
	}
	if a.Used != 0 {
		t.Errorf("lapsed account used = %d, want 0", a.Used)
	}
	if time.Since(a.LastReset) > time.Minute {
		t.Errorf("lapsed account lastReset not restamped: %v", a.LastReset)
	}
}

func TestDeduct_ConcurrentSameAccountNoLostUpdate(t *testing.T) {
	st := newMemStore(Account{
		ID: "a1", Plan: PlanBusiness, Interval: IntervalMonthly,
		SubscriptionActive: true, Used: 0, Limit: PlanLimit(PlanBusiness),
		LastReset: time.Now(),
	})
	l := NewLedger(st)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Deduct(context.Background(), "a1", 5)
		}()
	}
	wg.Wait()

	a, _ := st.GetAccount(context.Background(), "a1")
	if a.Used != 100 {
		t.Errorf("used after 20 concurrent deductions of 5 = %d, want 100", a.Used)
	}
}
