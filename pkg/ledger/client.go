package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"solmint/pkg/token"
)

// Client implements Reader and Writer on top of a Solana JSON-RPC endpoint.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
	log        *zap.SugaredLogger
}

// NewClient connects a ledger client to the given RPC endpoint.
func NewClient(endpoint string, commitment string, log *zap.SugaredLogger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("RPC endpoint not configured")
	}
	return &Client{
		rpc:        rpc.New(endpoint),
		commitment: CommitmentFromString(commitment),
		log:        log,
	}, nil
}

// CommitmentFromString maps a configured commitment name to the RPC type,
// defaulting to confirmed.
func CommitmentFromString(commitment string) rpc.CommitmentType {
	switch strings.ToLower(commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}

// GetNativeBalance returns the lamport balance of an address.
func (c *Client) GetNativeBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, addr, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return out.Value, nil
}

// parsedTokenAccount mirrors the jsonParsed layout of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				UIAmount *float64 `json:"uiAmount"`
				Decimals uint8    `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// GetHoldingAccounts returns all token accounts owned by the address under
// the standard token program. A holding whose display amount is absent is
// reported with amount 0.
func (c *Client) GetHoldingAccounts(ctx context.Context, owner solana.PublicKey) ([]token.Holding, error) {
	out, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{
			Commitment: c.commitment,
			Encoding:   solana.EncodingJSONParsed,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get token accounts: %w", err)
	}

	holdings := make([]token.Holding, 0, len(out.Value))
	for _, acc := range out.Value {
		var parsed parsedTokenAccount
		if err := json.Unmarshal(acc.Account.Data.GetRawJSON(), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse token account %s: %w", acc.Pubkey, err)
		}

		amount := float64(0)
		if ui := parsed.Parsed.Info.TokenAmount.UIAmount; ui != nil {
			amount = *ui
		}

		holdings = append(holdings, token.Holding{
			HoldingAddress: acc.Pubkey.String(),
			Mint:           parsed.Parsed.Info.Mint,
			Amount:         amount,
			Decimals:       parsed.Parsed.Info.TokenAmount.Decimals,
		})
	}
	return holdings, nil
}

// AccountExists checks if an account exists on-chain.
func (c *Client) AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error) {
	out, err := c.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get account info: %w", err)
	}
	return out.Value != nil, nil
}

// GetRentExemptionMinimum returns the rent-exempt minimum for an account of
// the given kind.
func (c *Client) GetRentExemptionMinimum(ctx context.Context, kind AccountKind) (uint64, error) {
	var size uint64
	switch kind {
	case AccountMint:
		size = MintAccountSize
	case AccountHolding:
		size = HoldingAccountSize
	default:
		return 0, fmt.Errorf("unknown account kind: %s", kind)
	}

	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get rent exemption minimum: %w", err)
	}
	return lamports, nil
}

// GetLatestBlockhash returns a recent blockhash for transaction assembly.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// SubmitTransaction sends a fully signed transaction.
func (c *Client) SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// ConfirmTransaction checks a submitted transaction once against the
// client's commitment level.
func (c *Client) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return fmt.Errorf("failed to get signature status: %w", err)
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		return ErrUnconfirmed
	}

	status := out.Value[0]
	if status.Err != nil {
		return &ExecutionError{Reason: fmt.Sprintf("%v", status.Err)}
	}
	if !commitmentReached(status.ConfirmationStatus, c.commitment) {
		return ErrUnconfirmed
	}
	return nil
}

// commitmentReached reports whether an observed confirmation status
// satisfies the requested commitment.
func commitmentReached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := func(s string) int {
		switch s {
		case string(rpc.ConfirmationStatusProcessed):
			return 1
		case string(rpc.ConfirmationStatusConfirmed):
			return 2
		case string(rpc.ConfirmationStatusFinalized):
			return 3
		}
		return 0
	}
	return rank(string(status)) >= rank(string(want))
}
