package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solmint/pkg/ledger"
	"solmint/pkg/token"
)

// DefaultPollInterval is how long after a completed fetch the next one is
// scheduled.
const DefaultPollInterval = 30 * time.Second

// ErrInvalidAddress reports a malformed monitoring target.
var ErrInvalidAddress = errors.New("invalid address")

// State is an immutable view of the engine, returned by State().
type State struct {
	Address      string
	Polling      bool
	LastSnapshot *token.MonitorSnapshot
	LastError    string
}

// Engine tracks one address: native balance, token holdings and recent
// activity. After every completed fetch it arms exactly one follow-up fetch;
// only Stop cancels the schedule. Fetches are single-flight: Start and
// Refresh are no-ops while one is already running.
type Engine struct {
	reader   ledger.Reader
	activity ActivitySource
	interval time.Duration
	log      *zap.SugaredLogger

	mu       sync.Mutex
	ctx      context.Context
	address  string
	polling  bool
	fetching bool
	snapshot *token.MonitorSnapshot
	lastErr  string
	timer    *time.Timer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPollInterval overrides the delay between completed fetches.
func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.interval = d }
}

// NewEngine creates a monitoring engine over a ledger reader and a
// best-effort activity source.
func NewEngine(reader ledger.Reader, activity ActivitySource, log *zap.SugaredLogger, opts ...EngineOption) *Engine {
	e := &Engine{
		reader:   reader,
		activity: activity,
		interval: DefaultPollInterval,
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start validates the address, marks the engine polling and kicks off an
// immediate fetch. Starting while a fetch is in flight is a no-op.
func (e *Engine) Start(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalidAddress)
	}
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fetching {
		return nil
	}

	e.stopTimerLocked()
	e.ctx = ctx
	e.address = address
	e.polling = true
	e.fetching = true
	go e.fetch(ctx, address)
	return nil
}

// Refresh repeats the fetch for the current address. It is a no-op when no
// address is set or a fetch is already in flight.
func (e *Engine) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.address == "" || e.fetching {
		return
	}
	e.fetching = true
	go e.fetch(e.fetchContextLocked(), e.address)
}

// Stop clears the target address, snapshot and error, and cancels any
// pending scheduled fetch. An in-flight fetch is not interrupted; its result
// is discarded because the address no longer matches.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
	e.address = ""
	e.polling = false
	e.snapshot = nil
	e.lastErr = ""
}

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Address:      e.address,
		Polling:      e.polling,
		LastSnapshot: e.snapshot,
		LastError:    e.lastErr,
	}
}

// tick is the timer callback; it behaves like Refresh.
func (e *Engine) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.address == "" || e.fetching {
		return
	}
	e.log.Debugw("auto-refreshing monitoring data", "address", e.address)
	e.fetching = true
	go e.fetch(e.fetchContextLocked(), e.address)
}

func (e *Engine) fetchContextLocked() context.Context {
	if e.ctx != nil {
		return e.ctx
	}
	return context.Background()
}

// fetch gathers balance, holdings and activity concurrently and publishes a
// new snapshot once all three have resolved. Activity failures degrade to an
// empty sequence; balance or holdings failures discard the whole snapshot
// and keep the last-known-good one.
func (e *Engine) fetch(ctx context.Context, address string) {
	owner := solana.MustPublicKeyFromBase58(address)

	var (
		wg       sync.WaitGroup
		lamports uint64
		holdings []token.Holding
		activity []token.ActivityRecord
		balErr   error
		holdErr  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		lamports, balErr = e.reader.GetNativeBalance(ctx, owner)
	}()
	go func() {
		defer wg.Done()
		holdings, holdErr = e.reader.GetHoldingAccounts(ctx, owner)
	}()
	go func() {
		defer wg.Done()
		records, err := e.activity.RecentActivity(ctx, address, token.MaxActivityRecords)
		if err != nil {
			// Activity history is supplementary.
			e.log.Warnw("activity history unavailable", "address", address, "error", err)
			records = []token.ActivityRecord{}
		}
		if len(records) > token.MaxActivityRecords {
			records = records[:token.MaxActivityRecords]
		}
		activity = records
	}()
	wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetching = false

	if e.address != address {
		// Stopped or retargeted while the fetch was in flight.
		return
	}
	defer e.scheduleNextLocked()

	if balErr != nil {
		e.lastErr = fmt.Sprintf("failed to fetch account info: %v", balErr)
		e.log.Errorw("monitor fetch failed", "address", address, "error", balErr)
		return
	}
	if holdErr != nil {
		e.lastErr = fmt.Sprintf("failed to fetch account info: %v", holdErr)
		e.log.Errorw("monitor fetch failed", "address", address, "error", holdErr)
		return
	}

	e.snapshot = &token.MonitorSnapshot{
		Address:        address,
		NativeBalance:  token.LamportsToSOL(lamports),
		Holdings:       holdings,
		RecentActivity: activity,
		CapturedAt:     time.Now().UTC(),
	}
	e.lastErr = ""
}

// scheduleNextLocked arms the single follow-up fetch. Callers hold e.mu.
func (e *Engine) scheduleNextLocked() {
	if !e.polling {
		return
	}
	e.stopTimerLocked()
	e.timer = time.AfterFunc(e.interval, e.tick)
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
