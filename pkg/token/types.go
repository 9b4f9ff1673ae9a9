package token

import (
	"fmt"
	"math"
	"time"
)

const (
	// LamportsPerSOL is the number of base units in one SOL.
	LamportsPerSOL = 1_000_000_000

	// DefaultDecimals is the fixed decimal precision of newly issued mints.
	DefaultDecimals uint8 = 9

	// MaxIssuanceAmount is the largest amount a single issuance may request.
	MaxIssuanceAmount = 1_000_000
)

// IssuanceRequest describes a token to issue and its initial delivery.
type IssuanceRequest struct {
	RecipientAddress string  `json:"recipient_address"` // Base58 address receiving the initial supply
	Amount           float64 `json:"amount"`            // Display-unit amount, 0 < amount <= 1,000,000
	Decimals         uint8   `json:"decimals"`          // Mint precision, fixed at 9
}

// NewIssuanceRequest builds a request with the fixed decimal precision.
func NewIssuanceRequest(recipient string, amount float64) IssuanceRequest {
	return IssuanceRequest{
		RecipientAddress: recipient,
		Amount:           amount,
		Decimals:         DefaultDecimals,
	}
}

// IssuanceResult records a fully completed issuance workflow.
// It is only ever produced after every stage has been confirmed on-chain.
type IssuanceResult struct {
	MintAddress           string `json:"mint_address"`
	HoldingAccountAddress string `json:"holding_account_address"`
	DeliveredAmount       string `json:"delivered_amount"`
	RecipientAddress      string `json:"recipient_address"`
	TransactionSignature  string `json:"transaction_signature"`
	PayerAddress          string `json:"payer_address"`
}

// CostEstimate breaks down the SOL cost of one issuance run.
type CostEstimate struct {
	MintRent    float64 `json:"mint_rent"`    // Rent-exempt minimum for the mint account
	AccountRent float64 `json:"account_rent"` // Rent-exempt minimum for the holding account
	NetworkFee  float64 `json:"network_fee"`  // Flat allowance for transaction fees
	Total       float64 `json:"total"`        // Sum of the three components
}

// Holding is one token balance owned by the monitored address.
type Holding struct {
	HoldingAddress string  `json:"holding_address"`
	Mint           string  `json:"mint"`
	Amount         float64 `json:"amount"`
	Decimals       uint8   `json:"decimals"`
}

// ActivityRecord is a single recent transaction touching the monitored
// address, sourced from the best-effort activity history service.
type ActivityRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Succeeded   bool      `json:"succeeded"`
}

const (
	// MaxActivityRecords is the most activity entries retained per snapshot.
	MaxActivityRecords = 10

	// MaxActivityDisplayed is the most activity entries shown to callers.
	MaxActivityDisplayed = 5
)

// MonitorSnapshot is one complete observation of an address: native balance,
// token holdings and recent activity. Snapshots are replaced wholesale on
// every successful poll and never partially mutated.
type MonitorSnapshot struct {
	Address        string           `json:"address"`
	NativeBalance  float64          `json:"native_balance"`
	Holdings       []Holding        `json:"holdings"`
	RecentActivity []ActivityRecord `json:"recent_activity"` // Newest first
	CapturedAt     time.Time        `json:"captured_at"`
}

// DisplayActivity returns the newest activity entries capped for display.
func (s *MonitorSnapshot) DisplayActivity() []ActivityRecord {
	if len(s.RecentActivity) <= MaxActivityDisplayed {
		return s.RecentActivity
	}
	return s.RecentActivity[:MaxActivityDisplayed]
}

// BaseUnits converts a display amount to the integer base-unit
// representation, truncating toward zero.
func BaseUnits(amount float64, decimals uint8) uint64 {
	return uint64(math.Floor(amount * math.Pow10(int(decimals))))
}

// DisplayUnits converts an integer base-unit amount back to display units.
func DisplayUnits(base uint64, decimals uint8) float64 {
	return float64(base) / math.Pow10(int(decimals))
}

// LamportsToSOL converts lamports to SOL display units.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSOL
}

// ShortAddress renders an address in the truncated head...tail form used
// for display.
func ShortAddress(addr string) string {
	if len(addr) <= 16 {
		return addr
	}
	return fmt.Sprintf("%s...%s", addr[:8], addr[len(addr)-8:])
}
