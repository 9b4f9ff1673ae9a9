package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solmint/pkg/ledger"
	"solmint/pkg/token"
)

const testAddress = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

// fakeReader serves scripted balances and holdings. An optional gate blocks
// balance reads so tests can hold a fetch open.
type fakeReader struct {
	mu       sync.Mutex
	lamports uint64
	holdings []token.Holding
	balErr   error
	holdErr  error
	calls    int
	gate     chan struct{}
}

func (r *fakeReader) GetNativeBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.lamports, r.balErr
}

func (r *fakeReader) GetHoldingAccounts(ctx context.Context, owner solana.PublicKey) ([]token.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.holdings, r.holdErr
}

func (r *fakeReader) AccountExists(ctx context.Context, addr solana.PublicKey) (bool, error) {
	return false, nil
}

func (r *fakeReader) GetRentExemptionMinimum(ctx context.Context, kind ledger.AccountKind) (uint64, error) {
	return 0, nil
}

func (r *fakeReader) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (r *fakeReader) balanceCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *fakeReader) setBalanceError(err error) {
	r.mu.Lock()
	r.balErr = err
	r.mu.Unlock()
}

type fakeActivity struct {
	mu      sync.Mutex
	records []token.ActivityRecord
	err     error
}

func (a *fakeActivity) RecentActivity(ctx context.Context, address string, limit int) ([]token.ActivityRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.records, a.err
}

func newTestEngine(reader *fakeReader, activity *fakeActivity, opts ...EngineOption) *Engine {
	base := []EngineOption{WithPollInterval(10 * time.Millisecond)}
	return NewEngine(reader, activity, zap.NewNop().Sugar(), append(base, opts...)...)
}

func waitForSnapshot(t *testing.T, engine *Engine) *token.MonitorSnapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return engine.State().LastSnapshot != nil
	}, time.Second, 2*time.Millisecond)
	return engine.State().LastSnapshot
}

func TestStartRejectsInvalidAddress(t *testing.T) {
	reader := &fakeReader{}
	engine := newTestEngine(reader, &fakeActivity{})

	for _, address := range []string{"", "   ", "definitely-not-base58", "0x1234"} {
		err := engine.Start(context.Background(), address)
		require.ErrorIs(t, err, ErrInvalidAddress, "address %q", address)
	}

	state := engine.State()
	assert.Nil(t, state.LastSnapshot)
	assert.False(t, state.Polling)
	assert.Zero(t, reader.balanceCalls(), "invalid addresses must not reach the ledger")
}

func TestFetchProducesSnapshot(t *testing.T) {
	reader := &fakeReader{
		lamports: 2_500_000_000,
		holdings: []token.Holding{{Mint: "So11111111111111111111111111111111111111112", Amount: 500, Decimals: 6}},
	}
	activity := &fakeActivity{records: []token.ActivityRecord{{ID: "sig1", Kind: "TRANSFER", Succeeded: true}}}
	engine := newTestEngine(reader, activity)

	require.NoError(t, engine.Start(context.Background(), testAddress))
	snapshot := waitForSnapshot(t, engine)

	assert.Equal(t, testAddress, snapshot.Address)
	assert.Equal(t, 2.5, snapshot.NativeBalance)
	require.Len(t, snapshot.Holdings, 1)
	assert.Equal(t, float64(500), snapshot.Holdings[0].Amount)
	assert.Equal(t, uint8(6), snapshot.Holdings[0].Decimals)
	require.Len(t, snapshot.RecentActivity, 1)
	assert.False(t, snapshot.CapturedAt.IsZero())

	state := engine.State()
	assert.True(t, state.Polling)
	assert.Empty(t, state.LastError)
}

func TestActivityFailureDegradesToEmpty(t *testing.T) {
	reader := &fakeReader{
		lamports: 1_000_000_000,
		holdings: []token.Holding{{Amount: 1, Decimals: 9}},
	}
	activity := &fakeActivity{err: fmt.Errorf("activity API returned status code 503")}
	engine := newTestEngine(reader, activity)

	require.NoError(t, engine.Start(context.Background(), testAddress))
	snapshot := waitForSnapshot(t, engine)

	assert.Equal(t, 1.0, snapshot.NativeBalance)
	assert.Len(t, snapshot.Holdings, 1)
	assert.Empty(t, snapshot.RecentActivity, "activity failures must degrade to an empty sequence")
	assert.Empty(t, engine.State().LastError, "activity failures are not fetch failures")
}

func TestActivityIsCappedPerSnapshot(t *testing.T) {
	records := make([]token.ActivityRecord, 15)
	for i := range records {
		records[i] = token.ActivityRecord{ID: fmt.Sprintf("sig%d", i), Succeeded: true}
	}
	reader := &fakeReader{lamports: 1}
	engine := newTestEngine(reader, &fakeActivity{records: records})

	require.NoError(t, engine.Start(context.Background(), testAddress))
	snapshot := waitForSnapshot(t, engine)

	require.Len(t, snapshot.RecentActivity, token.MaxActivityRecords)
	assert.Equal(t, "sig0", snapshot.RecentActivity[0].ID, "newest entries must be the ones retained")
}

func TestFetchErrorKeepsLastKnownGood(t *testing.T) {
	reader := &fakeReader{lamports: 2_500_000_000}
	engine := newTestEngine(reader, &fakeActivity{})

	require.NoError(t, engine.Start(context.Background(), testAddress))
	first := waitForSnapshot(t, engine)

	reader.setBalanceError(fmt.Errorf("connection refused"))
	require.Eventually(t, func() bool {
		return engine.State().LastError != ""
	}, time.Second, 2*time.Millisecond)

	state := engine.State()
	require.NotNil(t, state.LastSnapshot, "a failed fetch must not drop the last-known-good snapshot")
	assert.Equal(t, first.NativeBalance, state.LastSnapshot.NativeBalance)
	assert.Contains(t, state.LastError, "connection refused")

	// The schedule stays armed, so polling self-heals once reads recover.
	reader.setBalanceError(nil)
	require.Eventually(t, func() bool {
		return engine.State().LastError == ""
	}, time.Second, 2*time.Millisecond)
}

func TestPollingReArmsAfterEveryFetch(t *testing.T) {
	reader := &fakeReader{lamports: 1}
	engine := newTestEngine(reader, &fakeActivity{})

	require.NoError(t, engine.Start(context.Background(), testAddress))
	require.Eventually(t, func() bool {
		return reader.balanceCalls() >= 3
	}, time.Second, 2*time.Millisecond, "follow-up fetches must keep firing")

	engine.Stop()
}

func TestStopCancelsSchedule(t *testing.T) {
	reader := &fakeReader{lamports: 1}
	engine := newTestEngine(reader, &fakeActivity{})

	require.NoError(t, engine.Start(context.Background(), testAddress))
	waitForSnapshot(t, engine)

	engine.Stop()
	time.Sleep(30 * time.Millisecond) // let any in-flight fetch drain
	calls := reader.balanceCalls()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, reader.balanceCalls(), "no further network calls after Stop")

	state := engine.State()
	assert.Empty(t, state.Address)
	assert.False(t, state.Polling)
	assert.Nil(t, state.LastSnapshot)
	assert.Empty(t, state.LastError)
}

func TestRefreshIsNoOpWithoutTarget(t *testing.T) {
	reader := &fakeReader{}
	engine := newTestEngine(reader, &fakeActivity{})

	engine.Refresh()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, reader.balanceCalls())
}

func TestStaleFetchResultIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	reader := &fakeReader{lamports: 1, gate: gate}
	engine := newTestEngine(reader, &fakeActivity{})

	require.NoError(t, engine.Start(context.Background(), testAddress))
	engine.Stop() // fetch still blocked on the gate

	close(gate)
	time.Sleep(50 * time.Millisecond)

	state := engine.State()
	assert.Nil(t, state.LastSnapshot, "a fetch finishing after Stop must be discarded")
	assert.Empty(t, state.LastError)
}
