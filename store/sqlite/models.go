package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/clawback/deposit"
	"github.com/xraph/clawback/entitlement"
	"github.com/xraph/clawback/id"
	"github.com/xraph/clawback/ledger"
	"github.com/xraph/clawback/refund"
	"github.com/xraph/clawback/types"
)

// ==================== Ledger models ====================

type ledgerModel struct {
	grove.BaseModel `grove:"table:clawback_ledgers"`

	CreatorID      string    `grove:"creator_id,pk"`
	Balance        int64     `grove:"balance"`
	DailyLimit     int64     `grove:"daily_limit"`
	Currency       string    `grove:"currency"`
	RefundsEnabled bool      `grove:"refunds_enabled"`
	WalletProvider string    `grove:"wallet_provider"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toLedgerModel(l *ledger.CreatorLedger) *ledgerModel {
	return &ledgerModel{
		CreatorID:      l.CreatorID,
		Balance:        l.Balance.Amount,
		DailyLimit:     l.DailyLimit.Amount,
		Currency:       l.Balance.Currency,
		RefundsEnabled: l.RefundsEnabled,
		WalletProvider: l.WalletProvider,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func fromLedgerModel(m *ledgerModel) *ledger.CreatorLedger {
	return &ledger.CreatorLedger{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		CreatorID:      m.CreatorID,
		Balance:        types.Money{Amount: m.Balance, Currency: m.Currency},
		DailyLimit:     types.Money{Amount: m.DailyLimit, Currency: m.Currency},
		RefundsEnabled: m.RefundsEnabled,
		WalletProvider: m.WalletProvider,
	}
}

type dailySpendModel struct {
	grove.BaseModel `grove:"table:clawback_daily_spend"`

	CreatorID string    `grove:"creator_id,pk"`
	Day       string    `grove:"day,pk"`
	Total     int64     `grove:"total"`
	Currency  string    `grove:"currency"`
	UpdatedAt time.Time `grove:"updated_at"`
}

// ==================== Deposit models ====================

type depositModel struct {
	grove.BaseModel `grove:"table:clawback_deposits"`

	ID            string    `grove:"id,pk"`
	CreatorID     string    `grove:"creator_id"`
	Amount        int64     `grove:"amount"`
	Currency      string    `grove:"currency"`
	ExternalTxRef string    `grove:"external_tx_ref"`
	Status        string    `grove:"status"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toDepositModel(d *deposit.Deposit) *depositModel {
	return &depositModel{
		ID:            d.ID.String(),
		CreatorID:     d.CreatorID,
		Amount:        d.Amount.Amount,
		Currency:      d.Amount.Currency,
		ExternalTxRef: d.ExternalTxRef,
		Status:        string(d.Status),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func fromDepositModel(m *depositModel) (*deposit.Deposit, error) {
	depID, err := id.ParseDepositID(m.ID)
	if err != nil {
		return nil, err
	}

	return &deposit.Deposit{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            depID,
		CreatorID:     m.CreatorID,
		Amount:        types.Money{Amount: m.Amount, Currency: m.Currency},
		ExternalTxRef: m.ExternalTxRef,
		Status:        deposit.Status(m.Status),
	}, nil
}

// ==================== Refund models ====================

type refundModel struct {
	grove.BaseModel `grove:"table:clawback_refunds"`

	ID             string     `grove:"id,pk"`
	CreatorID      string     `grove:"creator_id"`
	BuyerAddress   string     `grove:"buyer_address"`
	OriginalTxRef  string     `grove:"original_tx_ref"`
	Kind           string     `grove:"kind"`
	PostID         string     `grove:"post_id"`
	ChainID        string     `grove:"chain_id"`
	OriginalAmount int64      `grove:"original_amount"`
	FeeAmount      int64      `grove:"fee_amount"`
	RefundAmount   int64      `grove:"refund_amount"`
	Currency       string     `grove:"currency"`
	Status         string     `grove:"status"`
	Reason         string     `grove:"reason"`
	PayoutBackend  string     `grove:"payout_backend"`
	PayoutTxRef    string     `grove:"payout_tx_ref"`
	NeedsReconcile bool       `grove:"needs_reconcile"`
	CompletedAt    *time.Time `grove:"completed_at"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

func toRefundModel(r *refund.Refund) *refundModel {
	return &refundModel{
		ID:             r.ID.String(),
		CreatorID:      r.CreatorID,
		BuyerAddress:   r.BuyerAddress,
		OriginalTxRef:  r.OriginalTxRef,
		Kind:           string(r.Kind),
		PostID:         r.PostID,
		ChainID:        r.ChainID,
		OriginalAmount: r.OriginalAmount.Amount,
		FeeAmount:      r.FeeAmount.Amount,
		RefundAmount:   r.RefundAmount.Amount,
		Currency:       r.OriginalAmount.Currency,
		Status:         string(r.Status),
		Reason:         r.Reason,
		PayoutBackend:  r.PayoutBackend,
		PayoutTxRef:    r.PayoutTxRef,
		NeedsReconcile: r.NeedsReconcile,
		CompletedAt:    r.CompletedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromRefundModel(m *refundModel) (*refund.Refund, error) {
	refundID, err := id.ParseRefundID(m.ID)
	if err != nil {
		return nil, err
	}

	return &refund.Refund{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             refundID,
		CreatorID:      m.CreatorID,
		BuyerAddress:   m.BuyerAddress,
		OriginalTxRef:  m.OriginalTxRef,
		Kind:           refund.Kind(m.Kind),
		PostID:         m.PostID,
		ChainID:        m.ChainID,
		OriginalAmount: types.Money{Amount: m.OriginalAmount, Currency: m.Currency},
		FeeAmount:      types.Money{Amount: m.FeeAmount, Currency: m.Currency},
		RefundAmount:   types.Money{Amount: m.RefundAmount, Currency: m.Currency},
		Status:         refund.Status(m.Status),
		Reason:         m.Reason,
		PayoutBackend:  m.PayoutBackend,
		PayoutTxRef:    m.PayoutTxRef,
		NeedsReconcile: m.NeedsReconcile,
		CompletedAt:    m.CompletedAt,
	}, nil
}

// ==================== Grant models ====================

type grantModel struct {
	grove.BaseModel `grove:"table:clawback_grants"`

	ID          string     `grove:"id"`
	Kind        string     `grove:"kind,pk"`
	SubjectID   string     `grove:"subject_id,pk"`
	Buyer       string     `grove:"buyer,pk"`
	ActiveUntil *time.Time `grove:"active_until"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
}

func toGrantModel(g *entitlement.Grant) *grantModel {
	return &grantModel{
		ID:          g.ID.String(),
		Kind:        string(g.Kind),
		SubjectID:   g.SubjectID,
		Buyer:       g.Buyer,
		ActiveUntil: g.ActiveUntil,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func fromGrantModel(m *grantModel) (*entitlement.Grant, error) {
	grantID, err := id.ParseAny(m.ID)
	if err != nil {
		return nil, err
	}

	return &entitlement.Grant{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          grantID,
		Kind:        entitlement.Kind(m.Kind),
		SubjectID:   m.SubjectID,
		Buyer:       m.Buyer,
		ActiveUntil: m.ActiveUntil,
	}, nil
}
