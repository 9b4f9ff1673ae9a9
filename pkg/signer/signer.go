package signer

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solmint/pkg/ledger"
)

// Signer approves and submits transactions on behalf of the connected
// wallet. Implementations are capability-checked before use: a signer that
// reports disconnected must not be asked to send.
type Signer interface {
	// PublicKey is the wallet's public address.
	PublicKey() solana.PublicKey

	// IsConnected reports whether the signer can currently submit.
	IsConnected() bool

	// SendTransaction signs the transaction with the wallet key and
	// submits it through the writer.
	SendTransaction(ctx context.Context, tx *solana.Transaction, w ledger.Writer) (solana.Signature, error)
}

// LocalSigner signs with an in-memory private key. It stands in for an
// external wallet in tests and example programs; it is not a custody layer.
type LocalSigner struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewLocalSigner parses a Base58-encoded private key.
func NewLocalSigner(privateKeyBase58 string) (*LocalSigner, error) {
	if privateKeyBase58 == "" {
		return nil, fmt.Errorf("private key not configured")
	}
	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &LocalSigner{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// PublicKey returns the wallet address.
func (s *LocalSigner) PublicKey() solana.PublicKey {
	return s.publicKey
}

// IsConnected always holds for a key held in memory.
func (s *LocalSigner) IsConnected() bool {
	return true
}

// SendTransaction signs for the wallet key and submits. Signatures already
// present on the transaction (a partially signed mint key, for example) are
// preserved.
func (s *LocalSigner) SendTransaction(ctx context.Context, tx *solana.Transaction, w ledger.Writer) (solana.Signature, error) {
	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return w.SubmitTransaction(ctx, tx)
}
