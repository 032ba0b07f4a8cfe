package clawback_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	clawback "github.com/xraph/clawback"
	"github.com/xraph/clawback/ledger"
	"github.com/xraph/clawback/refund"
	"github.com/xraph/clawback/store/memory"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation compile and run.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		st := memory.New()

		// Create engine
		engine := clawback.New(st,
			clawback.WithFeeRate(200), // 2% platform fee
			clawback.WithBackend(&stubBackend{name: "crossmint"}),
			clawback.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)

		// Start the engine
		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		// Fund the creator's refund balance
		dep, err := engine.RecordDeposit(ctx, "creator-1", clawback.USD(5000), "0xdeposit")
		if err != nil {
			t.Fatal(err)
		}
		if dep.ID.IsNil() {
			t.Fatal("expected deposit ID")
		}

		// Enable refunds
		enabled := true
		if _, err := engine.UpdateLedgerSettings(ctx, "creator-1", ledger.SettingsChange{
			RefundsEnabled: &enabled,
		}); err != nil {
			t.Fatal(err)
		}

		// Refund an unlock purchase
		ref, err := engine.RequestRefund(ctx, clawback.RefundRequest{
			CreatorID:      "creator-1",
			BuyerAddress:   "0xbuyer",
			OriginalTxRef:  "0xpurchase",
			Kind:           refund.KindUnlock,
			PostID:         "post-1",
			OriginalAmount: clawback.USD(3000),
		})
		if err != nil {
			t.Fatal(err)
		}
		if ref.Status != refund.StatusCompleted {
			t.Fatalf("refund status: %s", ref.Status)
		}

		// Check access after the refund revoked the grant
		access, err := engine.CheckAccess(ctx, clawback.Post{
			ID:        "post-1",
			CreatorID: "creator-1",
			Price:     clawback.USD(500),
		}, "0xbuyer")
		if err != nil {
			t.Fatal(err)
		}
		if access.Granted {
			t.Error("expected access revoked after refund")
		}
	})
}
