package issuance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	tokenprog "github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"solmint/pkg/ledger"
	"solmint/pkg/signer"
	"solmint/pkg/token"
)

// DefaultNetworkFeeAllowance is the flat fee budget added on top of the two
// rent-exemption minimums, in lamports (0.005 SOL).
const DefaultNetworkFeeAllowance uint64 = 5_000_000

// CompletionHandler receives the result of a fully confirmed issuance. The
// monitoring engine's Start is the typical handler.
type CompletionHandler func(token.IssuanceResult)

// Issuer drives the four-stage issuance workflow: affordability check, mint
// provisioning, holding-account provisioning and supply issuance. Each stage
// submits at most one transaction and waits for its confirmation before the
// next stage runs. A failed stage aborts the run without rolling back prior
// stages; re-running is idempotent from the holding-account stage onward but
// always provisions a fresh mint.
type Issuer struct {
	reader       ledger.Reader
	writer       ledger.Writer
	wallet       signer.Signer
	retry        ledger.RetryPolicy
	feeAllowance uint64
	onCompleted  CompletionHandler
	log          *zap.SugaredLogger

	mu       sync.Mutex
	inFlight bool
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithRetryPolicy overrides the confirmation retry policy.
func WithRetryPolicy(p ledger.RetryPolicy) Option {
	return func(i *Issuer) { i.retry = p }
}

// WithNetworkFeeAllowance overrides the flat fee budget, in SOL.
func WithNetworkFeeAllowance(sol float64) Option {
	return func(i *Issuer) { i.feeAllowance = uint64(sol * token.LamportsPerSOL) }
}

// WithCompletionHandler registers a callback invoked with the result of
// every successful issuance.
func WithCompletionHandler(h CompletionHandler) Option {
	return func(i *Issuer) { i.onCompleted = h }
}

// New creates an issuer bound to a ledger and a signer.
func New(reader ledger.Reader, writer ledger.Writer, wallet signer.Signer, log *zap.SugaredLogger, opts ...Option) *Issuer {
	i := &Issuer{
		reader:       reader,
		writer:       writer,
		wallet:       wallet,
		retry:        ledger.DefaultRetryPolicy,
		feeAllowance: DefaultNetworkFeeAllowance,
		log:          log,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// EstimateCost queries both rent-exemption minimums and returns the SOL cost
// breakdown of one issuance run. Callers re-invoke it whenever the signer's
// connection state changes.
func (i *Issuer) EstimateCost(ctx context.Context) (token.CostEstimate, error) {
	mintRent, accountRent, err := i.rentMinimums(ctx)
	if err != nil {
		return token.CostEstimate{}, err
	}
	return i.breakdown(mintRent, accountRent), nil
}

func (i *Issuer) rentMinimums(ctx context.Context) (mintRent, accountRent uint64, err error) {
	mintRent, err = i.reader.GetRentExemptionMinimum(ctx, ledger.AccountMint)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get mint rent minimum: %w", err)
	}
	accountRent, err = i.reader.GetRentExemptionMinimum(ctx, ledger.AccountHolding)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get account rent minimum: %w", err)
	}
	return mintRent, accountRent, nil
}

func (i *Issuer) breakdown(mintRent, accountRent uint64) token.CostEstimate {
	return token.CostEstimate{
		MintRent:    token.LamportsToSOL(mintRent),
		AccountRent: token.LamportsToSOL(accountRent),
		NetworkFee:  token.LamportsToSOL(i.feeAllowance),
		Total:       token.LamportsToSOL(mintRent + accountRent + i.feeAllowance),
	}
}

// Issue runs the full workflow and returns the issuance result once every
// stage has been confirmed. Validation failures are reported before any
// ledger interaction. A second call while a run is in flight is rejected
// with ErrIssuanceInFlight.
func (i *Issuer) Issue(ctx context.Context, req token.IssuanceRequest) (*token.IssuanceResult, error) {
	req.RecipientAddress = strings.TrimSpace(req.RecipientAddress)
	if err := validateRequest(req, i.wallet); err != nil {
		return nil, err
	}

	if err := i.begin(); err != nil {
		return nil, err
	}
	defer i.end()

	decimals := req.Decimals
	if decimals == 0 {
		decimals = token.DefaultDecimals
	}

	payer := i.wallet.PublicKey()
	recipient := solana.MustPublicKeyFromBase58(req.RecipientAddress)

	// Stage 1: affordability. No ledger mutation happens before this passes.
	mintRent, accountRent, err := i.rentMinimums(ctx)
	if err != nil {
		return nil, &NetworkError{Stage: StageAffordability, Cause: err}
	}
	balance, err := i.reader.GetNativeBalance(ctx, payer)
	if err != nil {
		return nil, &NetworkError{Stage: StageAffordability, Cause: err}
	}
	estimated := mintRent + accountRent + i.feeAllowance
	if balance < estimated {
		return nil, &InsufficientFundsError{
			Shortfall: token.LamportsToSOL(estimated - balance),
			Breakdown: i.breakdown(mintRent, accountRent),
		}
	}

	// Stage 2: mint provisioning. A fresh mint identity is generated on
	// every run, so an aborted run leaves an orphaned mint behind.
	mint := solana.NewWallet()
	mintPub := mint.PublicKey()

	i.log.Infow("creating token mint", "mint", mintPub.String(), "payer", payer.String())

	createMintTx, err := i.buildTransaction(ctx, payer, []solana.Instruction{
		system.NewCreateAccountInstruction(
			mintRent,
			ledger.MintAccountSize,
			solana.TokenProgramID,
			payer,
			mintPub,
		).Build(),
		tokenprog.NewInitializeMintInstructionBuilder().
			SetDecimals(decimals).
			SetMintAuthority(payer).
			SetMintAccount(mintPub).
			SetSysVarRentPubkeyAccount(solana.SysVarRentPubkey).
			Build(),
	})
	if err != nil {
		return nil, &NetworkError{Stage: StageMint, Cause: err}
	}
	if _, err := createMintTx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(mintPub) {
			return &mint.PrivateKey
		}
		return nil
	}); err != nil {
		return nil, &NetworkError{Stage: StageMint, Cause: fmt.Errorf("failed to sign with mint key: %w", err)}
	}
	if err := i.sendAndConfirm(ctx, StageMint, createMintTx); err != nil {
		return nil, err
	}

	i.log.Infow("token mint created", "mint", mintPub.String())

	// Stage 3: holding-account provisioning. The associated address is
	// deterministic, so an account left by a previous run is reused.
	holdingAddr, _, err := solana.FindAssociatedTokenAddress(recipient, mintPub)
	if err != nil {
		return nil, &NetworkError{Stage: StageHoldingAccount, Cause: fmt.Errorf("failed to derive holding account: %w", err)}
	}
	exists, err := i.reader.AccountExists(ctx, holdingAddr)
	if err != nil {
		return nil, &NetworkError{Stage: StageHoldingAccount, Cause: err}
	}
	if exists {
		i.log.Infow("holding account already exists", "account", holdingAddr.String())
	} else {
		createHoldingTx, err := i.buildTransaction(ctx, payer, []solana.Instruction{
			associatedtokenaccount.NewCreateInstruction(payer, recipient, mintPub).Build(),
		})
		if err != nil {
			return nil, &NetworkError{Stage: StageHoldingAccount, Cause: err}
		}
		if err := i.sendAndConfirm(ctx, StageHoldingAccount, createHoldingTx); err != nil {
			return nil, err
		}
		i.log.Infow("holding account created", "account", holdingAddr.String())
	}

	// Stage 4: supply issuance.
	base := token.BaseUnits(req.Amount, decimals)
	if base == 0 {
		return nil, ErrAmountTooSmall
	}
	mintToTx, err := i.buildTransaction(ctx, payer, []solana.Instruction{
		tokenprog.NewMintToInstruction(base, mintPub, holdingAddr, payer, []solana.PublicKey{}).Build(),
	})
	if err != nil {
		return nil, &NetworkError{Stage: StageSupply, Cause: err}
	}
	mintSig, err := i.wallet.SendTransaction(ctx, mintToTx, i.writer)
	if err != nil {
		return nil, &NetworkError{Stage: StageSupply, Cause: err}
	}
	if err := i.confirmStage(ctx, StageSupply, mintSig); err != nil {
		return nil, err
	}

	result := token.IssuanceResult{
		MintAddress:           mintPub.String(),
		HoldingAccountAddress: holdingAddr.String(),
		DeliveredAmount:       strconv.FormatFloat(req.Amount, 'f', -1, 64),
		RecipientAddress:      req.RecipientAddress,
		TransactionSignature:  mintSig.String(),
		PayerAddress:          payer.String(),
	}

	i.log.Infow("issuance complete",
		"mint", result.MintAddress,
		"recipient", result.RecipientAddress,
		"amount", result.DeliveredAmount,
		"signature", result.TransactionSignature,
	)

	if i.onCompleted != nil {
		i.onCompleted(result)
	}
	return &result, nil
}

// validateRequest applies the preconditions in order, short-circuiting on
// the first failure. No ledger call happens here.
func validateRequest(req token.IssuanceRequest, wallet signer.Signer) error {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return &ValidationError{Field: "amount", Reason: "must be a number"}
	}
	if req.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be greater than 0"}
	}
	if req.Amount > token.MaxIssuanceAmount {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("must not exceed %d", token.MaxIssuanceAmount)}
	}
	if wallet == nil || !wallet.IsConnected() {
		return ErrSignerUnavailable
	}
	if err := ledger.ValidateAddress(req.RecipientAddress); err != nil {
		return &ValidationError{Field: "recipient", Reason: err.Error()}
	}
	return nil
}

func (i *Issuer) begin() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.inFlight {
		return ErrIssuanceInFlight
	}
	i.inFlight = true
	return nil
}

func (i *Issuer) end() {
	i.mu.Lock()
	i.inFlight = false
	i.mu.Unlock()
}

func (i *Issuer) buildTransaction(ctx context.Context, payer solana.PublicKey, instructions []solana.Instruction) (*solana.Transaction, error) {
	blockhash, err := i.reader.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

func (i *Issuer) sendAndConfirm(ctx context.Context, stage Stage, tx *solana.Transaction) error {
	sig, err := i.wallet.SendTransaction(ctx, tx, i.writer)
	if err != nil {
		return &NetworkError{Stage: stage, Cause: err}
	}
	return i.confirmStage(ctx, stage, sig)
}

// confirmStage waits out the retry policy and maps the two terminal
// confirmation outcomes onto the workflow error taxonomy.
func (i *Issuer) confirmStage(ctx context.Context, stage Stage, sig solana.Signature) error {
	err := i.retry.Confirm(ctx, i.writer, sig)
	if err == nil {
		return nil
	}
	var execErr *ledger.ExecutionError
	if errors.As(err, &execErr) {
		return &LedgerRejectedError{Stage: stage, Reason: execErr.Reason}
	}
	return &NetworkError{Stage: stage, Cause: err}
}
