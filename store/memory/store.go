// Package memory provides an in-memory Store implementation, used for
// tests and as the default store when nothing else is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/clawback"
	"github.com/xraph/clawback/deposit"
	"github.com/xraph/clawback/entitlement"
	"github.com/xraph/clawback/id"
	"github.com/xraph/clawback/ledger"
	"github.com/xraph/clawback/refund"
	"github.com/xraph/clawback/store"
	"github.com/xraph/clawback/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Ledger storage
	ledgers    map[string]*ledger.CreatorLedger
	dailySpend map[string]types.Money // creatorID + "|" + day

	// Deposit storage
	deposits     map[string]*deposit.Deposit // keyed by ExternalTxRef
	depositOrder []string

	// Refund storage
	refunds     map[string]*refund.Refund // keyed by ID
	refundOrder []string

	// Grant storage
	grants map[string]*entitlement.Grant // kind + "|" + subject + "|" + buyer
}

func New() *Store {
	return &Store{
		ledgers:    make(map[string]*ledger.CreatorLedger),
		dailySpend: make(map[string]types.Money),
		deposits:   make(map[string]*deposit.Deposit),
		refunds:    make(map[string]*refund.Refund),
		grants:     make(map[string]*entitlement.Grant),
	}
}

// ==================== Ledger Store ====================

func (s *Store) GetLedger(_ context.Context, creatorID string) (*ledger.CreatorLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.ledgers[creatorID]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, clawback.ErrLedgerNotFound
}

func (s *Store) UpsertLedger(_ context.Context, l *ledger.CreatorLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.ledgers[l.CreatorID]; ok {
		existing.DailyLimit = l.DailyLimit
		existing.RefundsEnabled = l.RefundsEnabled
		existing.WalletProvider = l.WalletProvider
		existing.Touch()
		return nil
	}

	cp := *l
	s.ledgers[l.CreatorID] = &cp
	return nil
}

func (s *Store) Credit(_ context.Context, creatorID string, amount types.Money) (types.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[creatorID]
	if !ok {
		l = &ledger.CreatorLedger{
			Entity:    types.NewEntity(),
			CreatorID: creatorID,
			Balance:   types.Zero(amount.Currency),
		}
		s.ledgers[creatorID] = l
	}

	l.Balance = l.Balance.Add(amount)
	l.Touch()
	return l.Balance, nil
}

func (s *Store) Debit(_ context.Context, creatorID string, amount types.Money) (types.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[creatorID]
	if !ok {
		return types.Money{}, clawback.ErrLedgerNotFound
	}
	if l.Balance.LessThan(amount) {
		return types.Money{}, clawback.ErrInsufficientBalance
	}

	l.Balance = l.Balance.Subtract(amount)
	l.Touch()
	return l.Balance, nil
}

func (s *Store) SpentToday(_ context.Context, creatorID string, day ledger.Day) (types.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if spent, ok := s.dailySpend[spendKey(creatorID, day)]; ok {
		return spent, nil
	}
	return types.USD(0), nil
}

func (s *Store) AddSpentToday(_ context.Context, creatorID string, day ledger.Day, amount types.Money) (types.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := spendKey(creatorID, day)
	spent, ok := s.dailySpend[key]
	if !ok {
		spent = types.Zero(amount.Currency)
	}
	spent = spent.Add(amount)
	s.dailySpend[key] = spent
	return spent, nil
}

func spendKey(creatorID string, day ledger.Day) string {
	return creatorID + "|" + day.String()
}

// ==================== Deposit Store ====================

func (s *Store) CreateDeposit(_ context.Context, d *deposit.Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deposits[d.ExternalTxRef]; exists {
		return clawback.ErrDuplicateDeposit
	}

	cp := *d
	s.deposits[d.ExternalTxRef] = &cp
	s.depositOrder = append(s.depositOrder, d.ExternalTxRef)
	return nil
}

func (s *Store) GetDepositByRef(_ context.Context, externalTxRef string) (*deposit.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := s.deposits[externalTxRef]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, clawback.ErrDepositNotFound
}

func (s *Store) ListDeposits(_ context.Context, creatorID string, opts deposit.ListOpts) ([]*deposit.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*deposit.Deposit, 0)
	// newest first
	for i := len(s.depositOrder) - 1; i >= 0; i-- {
		d := s.deposits[s.depositOrder[i]]
		if d.CreatorID != creatorID {
			continue
		}
		if opts.Status != "" && d.Status != opts.Status {
			continue
		}
		cp := *d
		result = append(result, &cp)
	}
	return paginate(result, opts.Limit, opts.Offset), nil
}

// ==================== Refund Store ====================

func (s *Store) CreateRefund(_ context.Context, r *refund.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.refunds[r.ID.String()] = &cp
	s.refundOrder = append(s.refundOrder, r.ID.String())
	return nil
}

func (s *Store) GetRefund(_ context.Context, refundID id.RefundID) (*refund.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.refunds[refundID.String()]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, clawback.ErrRefundNotFound
}

func (s *Store) GetActiveRefundByRef(_ context.Context, originalTxRef string) (*refund.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.refundOrder {
		r := s.refunds[key]
		if r.OriginalTxRef != originalTxRef {
			continue
		}
		if r.Status == refund.StatusProcessing || r.Status == refund.StatusCompleted {
			cp := *r
			return &cp, nil
		}
	}
	return nil, clawback.ErrRefundNotFound
}

func (s *Store) UpdateRefund(_ context.Context, r *refund.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refunds[r.ID.String()]; !ok {
		return clawback.ErrRefundNotFound
	}
	cp := *r
	cp.UpdatedAt = time.Now().UTC()
	s.refunds[r.ID.String()] = &cp
	return nil
}

func (s *Store) ListRefunds(_ context.Context, creatorID string, opts refund.ListOpts) ([]*refund.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*refund.Refund, 0)
	for i := len(s.refundOrder) - 1; i >= 0; i-- {
		r := s.refunds[s.refundOrder[i]]
		if r.CreatorID != creatorID {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	return paginate(result, opts.Limit, opts.Offset), nil
}

// ==================== Entitlement Store ====================

func (s *Store) CreateGrant(_ context.Context, g *entitlement.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *g
	s.grants[grantKey(g.Kind, g.SubjectID, g.Buyer)] = &cp
	return nil
}

func (s *Store) GetGrant(_ context.Context, kind entitlement.Kind, subjectID, buyer string) (*entitlement.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if g, ok := s.grants[grantKey(kind, subjectID, buyer)]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, clawback.ErrGrantNotFound
}

func (s *Store) RevokeGrant(_ context.Context, kind entitlement.Kind, subjectID, buyer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.grants, grantKey(kind, subjectID, buyer))
	return nil
}

func (s *Store) ListGrants(_ context.Context, buyer string, opts entitlement.ListOpts) ([]*entitlement.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entitlement.Grant, 0)
	for _, g := range s.grants {
		if g.Buyer != buyer {
			continue
		}
		if opts.Kind != "" && g.Kind != opts.Kind {
			continue
		}
		cp := *g
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, opts.Limit, opts.Offset), nil
}

func grantKey(kind entitlement.Kind, subjectID, buyer string) string {
	return string(kind) + "|" + subjectID + "|" + buyer
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
