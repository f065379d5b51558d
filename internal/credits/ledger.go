package credits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scrapdeouf-engine/internal/domain"
)

// Per-result pricing. The base cost covers the listing scrape itself;
// surcharges are added per result for the optional stages.
const (
	BaseCostPerResult = 1
	EmailSurcharge    = 2
	PhoneSurcharge    = 1
	DetailSurcharge   = 1
)

type Plan string

const (
	PlanFree     Plan = "free"
	PlanStarter  Plan = "starter"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// PlanLimit returns the credit allowance per billing period.
func PlanLimit(p Plan) int {
	switch p {
	case PlanStarter:
		return 500
	case PlanPro:
		return 5000
	case PlanBusiness:
		return 50000
	default:
		return 50
	}
}

type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// Account is the ledger's view of an account: plan tier, usage counters
// and the reset anniversary.
type Account struct {
	ID                 string
	Plan               Plan
	Interval           Interval
	SubscriptionActive bool
	Used               int
	Limit              int
	LastReset          time.Time
}

// AccountStore is the persistence boundary the ledger mutates through.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (Account, error)
	UpdateAccount(ctx context.Context, a Account) error
}

// QuotaError is returned when the pre-run estimate exceeds the
// remaining allowance. Shortfall is how many credits are missing.
type QuotaError struct {
	Estimate  int
	Remaining int
	Shortfall int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("insufficient credits: estimate %d exceeds remaining %d (short %d)",
		e.Estimate, e.Remaining, e.Shortfall)
}

// Estimate prices a job before it runs, assuming the requested maximum
// is fully achieved. Deliberately conservative: real jobs may return
// fewer results, and the gap is intentional so a job can never start
// and then blow past the limit mid-run.
func Estimate(job *domain.ExtractionJob) int {
	return cost(job, job.RequestedMax())
}

// ActualCost prices a finished run from the persisted result count and
// the job's enrichment flags, nothing else.
func ActualCost(job *domain.ExtractionJob, resultCount int) int {
	if resultCount < 0 {
		resultCount = 0
	}
	return cost(job, resultCount)
}

func cost(job *domain.ExtractionJob, n int) int {
	per := BaseCostPerResult
	switch job.Template {
	case domain.TemplateMapSearch:
		if job.EnrichEmails() {
			per += EmailSurcharge
		}
		if job.EnrichPhones() {
			per += PhoneSurcharge
		}
	case domain.TemplateCommerceSearch:
		per += DetailSurcharge
	}
	return per * n
}

// Ledger serializes credit updates per account so two jobs finishing on
// the same account cannot double-deduct.
type Ledger struct {
	store AccountStore
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLedger(store AccountStore) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) accountLock(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// Authorize refreshes the account's quota window and rejects the job
// when used + estimate would exceed the limit. The estimate itself is
// never deducted.
func (l *Ledger) Authorize(ctx context.Context, accountID string, estimate int) error {
	lock := l.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.refresh(ctx, accountID)
	if err != nil {
		return err
	}

	remaining := acct.Limit - acct.Used
	if acct.Used+estimate > acct.Limit {
		return &QuotaError{
			Estimate:  estimate,
			Remaining: remaining,
			Shortfall: acct.Used + estimate - acct.Limit,
		}
	}
	return nil
}

// Deduct applies the actual cost of a finished run in a single update.
func (l *Ledger) Deduct(ctx context.Context, accountID string, actual int) error {
	if actual < 0 {
		return fmt.Errorf("negative credit deduction %d", actual)
	}
	lock := l.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.refresh(ctx, accountID)
	if err != nil {
		return err
	}
	acct.Used += actual
	if err := l.store.UpdateAccount(ctx, acct); err != nil {
		return fmt.Errorf("deduct credits: %w", err)
	}
	return nil
}

// refresh loads the account and normalizes drift: lapsed subscriptions
// are forced onto the lowest tier with the window restarted now, and
// usage resets to zero on the first access past the reset anniversary.
func (l *Ledger) refresh(ctx context.Context, accountID string) (Account, error) {
	acct, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return Account{}, fmt.Errorf("load account %s: %w", accountID, err)
	}

	now := l.now()
	dirty := false

	if !acct.SubscriptionActive {
		if acct.Plan != PlanFree || acct.Limit != PlanLimit(PlanFree) {
			acct.Plan = PlanFree
			acct.Interval = IntervalMonthly
			acct.Limit = PlanLimit(PlanFree)
			acct.Used = 0
			acct.LastReset = now
			dirty = true
		}
	} else if acct.Limit != PlanLimit(acct.Plan) {
		acct.Limit = PlanLimit(acct.Plan)
		dirty = true
	}

	if now.After(nextReset(acct.LastReset, acct.Interval)) {
		acct.Used = 0
		acct.LastReset = now
		dirty = true
	}

	if dirty {
		if err := l.store.UpdateAccount(ctx, acct); err != nil {
			return Account{}, fmt.Errorf("refresh account %s: %w", accountID, err)
		}
	}
	return acct, nil
}

func nextReset(last time.Time, interval Interval) time.Time {
	if interval == IntervalYearly {
		return last.AddDate(1, 0, 0)
	}
	return last.AddDate(0, 1, 0)
}
