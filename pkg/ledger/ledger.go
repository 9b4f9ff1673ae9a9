package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"solmint/pkg/token"
)

// AccountKind selects which rent-exemption minimum to query.
type AccountKind string

const (
	AccountMint    AccountKind = "mint"    // SPL mint account, 82 bytes
	AccountHolding AccountKind = "holding" // SPL token account, 165 bytes
)

// Account data sizes under the standard token program.
const (
	MintAccountSize    uint64 = 82
	HoldingAccountSize uint64 = 165
)

// ErrUnconfirmed reports that a transaction has not yet reached the
// requested commitment. It is the retryable confirmation outcome.
var ErrUnconfirmed = errors.New("transaction not yet confirmed")

// ExecutionError reports that the ledger executed a transaction and the
// transaction itself failed. Resubmitting the same instructions is not
// meaningful, so this outcome is never retried.
type ExecutionError struct {
	Reason string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("transaction failed on-chain: %s", e.Reason)
}

// Reader is the query side of the ledger used by the issuance and
// monitoring engines.
type Reader interface {
	// GetNativeBalance returns the lamport balance of an address.
	GetNativeBalance(ctx context.Context, addr solana.PublicKey) (uint64, error)

	// GetHoldingAccounts returns all token accounts owned by the address
	// under the standard token program.
	GetHoldingAccounts(ctx context.Context, owner solana.PublicKey) ([]token.Holding, error)

	// AccountExists reports whether an account is present on-chain.
	AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error)

	// GetRentExemptionMinimum returns the minimum lamport balance for an
	// account of the given kind to persist indefinitely.
	GetRentExemptionMinimum(ctx context.Context, kind AccountKind) (uint64, error)

	// GetLatestBlockhash returns a recent blockhash for transaction assembly.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// Writer is the submission side of the ledger.
type Writer interface {
	// SubmitTransaction sends a fully signed transaction.
	SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// ConfirmTransaction checks a submitted transaction once. It returns
	// nil when the transaction reached the configured commitment without
	// an execution error, ErrUnconfirmed when it is not yet visible, and
	// an *ExecutionError when the ledger rejected it.
	ConfirmTransaction(ctx context.Context, sig solana.Signature) error
}

// ValidateAddress checks ledger-address well-formedness.
func ValidateAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("address is empty")
	}
	if _, err := solana.PublicKeyFromBase58(addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return nil
}
