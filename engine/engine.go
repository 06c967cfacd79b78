// Package engine wires the content store, reconciliation, scheduler, funding
// policy, and upload coordinator into one session-scoped sync engine. All
// state lives in the Engine value owned by the caller; there are no
// process-wide singletons, so logout tears everything down cleanly.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/openshelf/shelf-sync-node/config"
	"github.com/openshelf/shelf-sync-node/constant"
	"github.com/openshelf/shelf-sync-node/db"
	"github.com/openshelf/shelf-sync-node/dedup"
	"github.com/openshelf/shelf-sync-node/funding"
	"github.com/openshelf/shelf-sync-node/keys"
	"github.com/openshelf/shelf-sync-node/ledger"
	"github.com/openshelf/shelf-sync-node/scheduler"
	"github.com/openshelf/shelf-sync-node/store"
	"github.com/openshelf/shelf-sync-node/uploader"
	"github.com/openshelf/shelf-sync-node/wallet"
)

// Engine is the per-session sync engine.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger
	clock  clock.Clock

	store     *store.ContentStore
	session   *store.SessionStore
	dedup     *dedup.Engine
	fundState *funding.StateStore

	ledger   ledger.Client
	wallet   wallet.Client
	uploader *uploader.Coordinator
	prober   *uploader.FinalityProber

	sched *scheduler.Scheduler
	gate  *scheduler.BalanceGate

	creds    keys.Credentials
	observer Observer

	// persistFlight collapses concurrent first-funding observations into a
	// single auto-persistence trigger per wallet address.
	persistFlight singleflight.Group

	mu          sync.Mutex
	lastCycleAt time.Time
	lastCycleErr string
}

// New builds an engine over an opened database, a ledger client, a wallet,
// and derived credentials. The clock is injected for tests.
func New(
	cfg *config.Config,
	database *db.DB,
	lc ledger.Client,
	wc wallet.Client,
	creds keys.Credentials,
	observer Observer,
	clk clock.Clock,
	logger zerolog.Logger,
) *Engine {
	if observer == nil {
		observer = NoopObserver{}
	}

	log := logger.With().Str("component", "sync_engine").Logger()

	cs := store.NewContentStore(database.Client())
	fundState := funding.NewStateStore(database.Client())

	policy := funding.Policy{
		Cooldown:  cfg.FundingCooldown(),
		MinRetry:  cfg.FundingMinRetry(),
		BufferBps: cfg.FundingBufferBps,
	}

	up := uploader.New(lc, wc, policy, fundState, clk, uploader.Config{
		Node:                cfg.BundlerURL,
		Token:               cfg.Token,
		FundTargetAddr:      cfg.FundWalletAddr,
		GasReserveWei:       cfg.GasReserve(),
		PollInterval:        cfg.PollInterval(),
		PollTimeout:         cfg.PollTimeout(),
		PostFundPollTimeout: cfg.PostFundPollTimeout(),
		FundBlockDuration:   cfg.FundBlockDuration(),
	}, logger)

	e := &Engine{
		cfg:       cfg,
		logger:    log,
		clock:     clk,
		store:     cs,
		session:   store.NewSessionStore(database.Client()),
		dedup:     dedup.NewEngine(cs),
		fundState: fundState,
		ledger:    lc,
		wallet:    wc,
		uploader:  up,
		prober:    uploader.NewFinalityProber(clk, cfg.ProbeInitialBackoff(), cfg.ProbeMaxBackoff(), logger),
		gate:      scheduler.NewBalanceGate(clk, cfg.BalanceCheckCooldown()),
		creds:     creds,
		observer:  observer,
	}

	e.sched = scheduler.New(clk, scheduler.Intervals{
		Active:         cfg.ActiveInterval(),
		Cooling:        cfg.CoolingInterval(),
		Idle:           cfg.IdleInterval(),
		ActivityWindow: cfg.ActivityWindow(),
		CoolingWindow:  cfg.CoolingWindow(),
	}, e.runCycle, logger)

	return e
}

// Start begins the scheduling loop.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info().Msg("starting sync engine")
	e.sched.Start(ctx)
}

// Stop stops the scheduler. A cycle already in flight finishes.
func (e *Engine) Stop() {
	e.sched.Stop()
	e.logger.Info().Msg("sync engine stopped")
}

// SyncNow forces an immediate cycle with an unthrottled balance check.
func (e *Engine) SyncNow() {
	e.sched.SyncNow()
}

// Status returns a snapshot for the status API.
func (e *Engine) Status() Status {
	snap := e.sched.Snapshot()

	depth, err := e.store.CountOps()
	if err != nil {
		depth = -1
	}
	active, err := e.store.GetAllActive()
	activeCount := len(active)
	if err != nil {
		activeCount = -1
	}

	e.mu.Lock()
	lastAt := e.lastCycleAt
	lastErr := e.lastCycleErr
	e.mu.Unlock()

	return Status{
		Phase:        snap.Phase,
		IsSyncing:    snap.IsSyncing,
		QueueDepth:   depth,
		ActiveCount:  activeCount,
		LastCycleAt:  lastAt,
		LastCycleErr: lastErr,
	}
}

// ClearSession removes every session record, funding history, and fund
// block atomically. Called on logout.
func (e *Engine) ClearSession() error {
	return e.session.ClearSession()
}

// accountConfirmed reports whether the account record has been persisted.
func (e *Engine) accountConfirmed() bool {
	val, err := e.session.Get(constant.SessionKeyAccount)
	return err == nil && len(val) > 0
}

// persistAccount writes the account record once the wallet is first
// observed funded. Guarded by singleflight keyed on the wallet address so
// concurrent cycles cannot double-trigger it.
func (e *Engine) persistAccount(balanceWei string) error {
	addr := e.wallet.Address()
	_, err, _ := e.persistFlight.Do(addr, func() (any, error) {
		if e.accountConfirmed() {
			return nil, nil
		}
		record, err := json.Marshal(map[string]any{
			"address":     addr,
			"funded":      true,
			"balance_wei": balanceWei,
			"at":          e.clock.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode account record: %w", err)
		}
		if err := e.session.Set(constant.SessionKeyAccount, record); err != nil {
			return nil, err
		}
		e.logger.Info().Str("address", addr).Msg("account persisted on first funding")
		return nil, nil
	})
	return err
}

// newLocalID generates a placeholder identity for entries that could not be
// published yet.
func newLocalID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process cannot do anything useful.
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return "local-" + hex.EncodeToString(buf)
}
