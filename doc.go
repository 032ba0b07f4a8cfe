// Package clawback provides a refund ledger and entitlement engine for
// creator-payments platforms.
//
// Clawback is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - Per-creator refund balances funded by idempotent deposit ingestion
//   - Payout gating: enabled flag, hard balance check, rolling daily cap
//   - A refund state machine with payout-before-ledger-mutation ordering
//   - Interchangeable custodial payout backends (Crossmint, Privy built-in)
//   - Durable access grants with a fixed-precedence access evaluator
//   - Lifecycle plugin hooks for audit trails and metrics
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/clawback"
//	    "github.com/xraph/clawback/payout/crossmint"
//	    "github.com/xraph/clawback/store/postgres"
//	)
//
//	// Initialize store
//	st := postgres.New(db)
//
//	// Create engine
//	engine := clawback.New(st,
//	    clawback.WithFeeRate(200), // 2% platform fee
//	    clawback.WithBackend(crossmint.New(apiKey)),
//	)
//
//	// Start the engine (migrates the store, begins background workers)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Deposits fund a creator's refund balance exactly once per on-chain
// reference:
//
//	dep, err := engine.RecordDeposit(ctx, creatorID, clawback.USD(5000), txRef)
//
// Refunds run through a state machine gated by the creator's ledger:
//
//	ref, err := engine.RequestRefund(ctx, clawback.RefundRequest{
//	    CreatorID:      creatorID,
//	    BuyerAddress:   buyer,
//	    OriginalTxRef:  purchaseRef,
//	    Kind:           refund.KindUnlock,
//	    PostID:         postID,
//	    OriginalAmount: clawback.USD(3000),
//	})
//
// Access checks evaluate grants at time of check, first match wins:
//
//	access, err := engine.CheckAccess(ctx, post, buyer)
//	if access.Granted {
//	    // serve the post
//	}
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	rfd_01h2xcejqtf2nbrexx3vqjhp41  // Refund ID
//	dep_01h2xcejqtf2nbrexx3vqjhp41  // Deposit ID
//	ulk_01h455vb4pex5vsknk084sn02q  // Unlock grant ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package clawback
