package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wdbm/blocktogether/internal/twitter"
	"github.com/wdbm/blocktogether/internal/types/account"
	"github.com/wdbm/blocktogether/internal/types/action"
	"github.com/wdbm/blocktogether/internal/types/relationship"
)

const (
	// DefaultPassInterval is how often a processing pass starts. Passes are
	// fired on the tick without waiting for the previous one, so a slow pass
	// can overlap the next. Known limitation, not corrected here.
	DefaultPassInterval = 70 * time.Second

	// MaxSourcesPerPass bounds how many distinct source accounts one pass
	// will touch.
	MaxSourcesPerPass = 300

	// MaxBatchSize is the hard cap of one bulk relationship lookup. One
	// lookup for the whole batch is what keeps us inside the platform's
	// strict quota on relationship checks.
	MaxBatchSize = 100
)

var (
	enginePassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_passes_total",
			Help: "Total number of processing passes started",
		},
	)
	engineActionsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_actions_resolved_total",
			Help: "Actions resolved to a terminal status, by outcome",
		},
		[]string{"status"},
	)
	engineLookupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_lookup_failures_total",
			Help: "Bulk relationship lookups that failed or broke the batch cap",
		},
	)
	engineBlockWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_block_write_failures_total",
			Help: "Block-create calls that failed (action stays pending)",
		},
	)
)

// InitEngineMetrics registers the engine metrics. Call this from main.go
func InitEngineMetrics() {
	prometheus.MustRegister(enginePassesTotal)
	prometheus.MustRegister(engineActionsResolved)
	prometheus.MustRegister(engineLookupFailures)
	prometheus.MustRegister(engineBlockWriteFailures)
}

// ActionStore is what the engine needs from the durable action store.
type ActionStore interface {
	PendingSources(ctx context.Context, limit int) ([]action.Action, error)
	PendingForAccount(ctx context.Context, sourceUID string, limit int) ([]*action.Action, error)
	SaveStatus(ctx context.Context, a *action.Action) error
}

// AccountStore loads source accounts with their suppression sets.
type AccountStore interface {
	AccountWithSuppressions(ctx context.Context, uid string) (*account.Account, error)
}

// RelationshipClient is the external platform surface the engine calls.
type RelationshipClient interface {
	LookupRelationships(ctx context.Context, creds account.Credentials, sinkUIDs []string) ([]relationship.Relationship, error)
	CreateBlock(ctx context.Context, creds account.Credentials, sinkUID string) (*relationship.Relationship, error)
}

// PushNotificationProvider delivers batch-complete summaries to the
// account owner's devices. Optional.
type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []account.DeviceToken, title, body string, data map[string]any) error
}

// BlockEngine is the action processing engine: every pass it picks source
// accounts with pending block actions, validates each account's batch with
// a single bulk relationship lookup, classifies every action into an
// outcome and executes approved blocks one at a time per account.
//
// Accounts are processed concurrently within a pass (they share nothing
// but the store); actions within one account are strictly sequential so
// the unthrottled block-create endpoint never sees a burst.
//
// A failed block write leaves the action pending with no backoff and no
// retry ceiling. Inherited behavior, kept until there is a product
// decision on capping retries.
type BlockEngine struct {
	actions      ActionStore
	accounts     AccountStore
	platform     RelationshipClient
	pushProvider PushNotificationProvider
	interval     time.Duration
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

func NewBlockEngine(actions ActionStore, accounts AccountStore, platform RelationshipClient) *BlockEngine {
	return &BlockEngine{
		actions:  actions,
		accounts: accounts,
		platform: platform,
		interval: DefaultPassInterval,
		stopChan: make(chan struct{}),
	}
}

// Allow injecting the real FCM provider from main.go
func (e *BlockEngine) SetPushProvider(provider PushNotificationProvider) {
	e.pushProvider = provider
}

func (e *BlockEngine) SetInterval(interval time.Duration) {
	e.interval = interval
}

// Start runs a pass immediately, then one per interval.
func (e *BlockEngine) Start() {
	e.wg.Add(1)
	go e.run()
	log.Printf("Block engine started, pass interval %s", e.interval)
}

func (e *BlockEngine) run() {
	defer e.wg.Done()

	e.spawnPass()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.spawnPass()
		case <-e.stopChan:
			return
		}
	}
}

func (e *BlockEngine) spawnPass() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.RunPass(context.Background())
	}()
}

// RunPass executes one full selection/validation/execution cycle and
// waits for every account batch in it to drain.
func (e *BlockEngine) RunPass(ctx context.Context) {
	enginePassesTotal.Inc()

	reps, err := e.actions.PendingSources(ctx, MaxSourcesPerPass)
	if err != nil {
		log.Printf("Engine: failed to select pending sources: %v", err)
		return
	}
	if len(reps) == 0 {
		return
	}

	var batchWg sync.WaitGroup
	for _, rep := range reps {
		batchWg.Add(1)
		go func(sourceUID string) {
			defer batchWg.Done()
			e.processAccount(ctx, sourceUID)
		}(rep.SourceUID)
	}
	batchWg.Wait()
}

func (e *BlockEngine) processAccount(ctx context.Context, sourceUID string) {
	acct, err := e.accounts.AccountWithSuppressions(ctx, sourceUID)
	if err != nil {
		log.Printf("Engine: skipping source %s: %v", sourceUID, err)
		return
	}

	batch, err := e.actions.PendingForAccount(ctx, sourceUID, MaxBatchSize)
	if err != nil {
		log.Printf("Engine: failed to load batch for %s: %v", sourceUID, err)
		return
	}
	if len(batch) == 0 {
		return
	}

	sinkUIDs := make([]string, 0, len(batch))
	for _, a := range batch {
		sinkUIDs = append(sinkUIDs, a.SinkUID)
	}

	rels, err := e.lookupRelationships(ctx, acct, sinkUIDs)
	if err != nil {
		// Already logged. The whole batch stays pending and is retried on
		// a later pass, no partial classification.
		return
	}

	e.executeBatch(ctx, acct, batch, rels)
}

// lookupRelationships validates one account's batch with a single bulk
// lookup and returns the result keyed by sink uid. Calling it with more
// than MaxBatchSize uids is a programming error: it is logged and no
// external call is made.
func (e *BlockEngine) lookupRelationships(ctx context.Context, acct *account.Account, sinkUIDs []string) (map[string]relationship.Relationship, error) {
	if len(sinkUIDs) > MaxBatchSize {
		engineLookupFailures.Inc()
		log.Printf("Engine: lookup for %s called with %d uids, cap is %d", acct.UID, len(sinkUIDs), MaxBatchSize)
		return nil, fmt.Errorf("lookup batch of %d exceeds cap of %d", len(sinkUIDs), MaxBatchSize)
	}

	rels, err := e.platform.LookupRelationships(ctx, acct.Credentials, sinkUIDs)
	if err != nil {
		engineLookupFailures.Inc()
		var apiErr *twitter.APIError
		if errors.As(err, &apiErr) {
			log.Printf("Engine: lookup failed for %s: status %d: %s", acct.UID, apiErr.StatusCode, apiErr.Payload)
		} else {
			log.Printf("Engine: lookup failed for %s: %v", acct.UID, err)
		}
		return nil, err
	}

	relMap := make(map[string]relationship.Relationship, len(rels))
	for _, r := range rels {
		relMap[r.UID] = r
	}
	return relMap, nil
}

// executeBatch drains one account's batch strictly in order, one action at
// a time. A block write is only ever issued after the previous action
// fully resolved.
func (e *BlockEngine) executeBatch(ctx context.Context, acct *account.Account, batch []*action.Action, rels map[string]relationship.Relationship) {
	doneCount := 0

	for _, act := range batch {
		status, needsWrite := classify(act, rels, acct)

		if needsWrite {
			blocked, err := e.platform.CreateBlock(ctx, acct.Credentials, act.SinkUID)
			if err != nil {
				engineBlockWriteFailures.Inc()
				var apiErr *twitter.APIError
				if errors.As(err, &apiErr) {
					log.Printf("Engine: block %s -> %s failed: status %d: %s", act.SourceUID, act.SinkUID, apiErr.StatusCode, apiErr.Payload)
				} else {
					log.Printf("Engine: block %s -> %s failed: %v", act.SourceUID, act.SinkUID, err)
				}
				// Row untouched: stays pending, retried next pass.
				continue
			}
			log.Printf("Engine: %s blocked %s (@%s)", acct.UID, blocked.UID, blocked.ScreenName)
			status = action.StatusDone
			doneCount++
		}

		e.finishAction(ctx, act, status)
	}

	if doneCount > 0 {
		e.notifyBatchComplete(ctx, acct, doneCount)
	}
}

// classify decides the outcome for one action. First match wins, exactly
// one outcome per action. The second return says whether a block write is
// still required.
func classify(act *action.Action, rels map[string]relationship.Relationship, acct *account.Account) (action.ActionStatus, bool) {
	rel, ok := rels[act.SinkUID]
	switch {
	case !ok:
		return action.StatusDeferredTargetSuspended, false
	case rel.Has(relationship.ConnectionBlocking):
		return action.StatusCancelledDuplicate, false
	case rel.Has(relationship.ConnectionFollowing):
		return action.StatusCancelledFollowing, false
	case acct.Suppressed(act.SinkUID):
		return action.StatusCancelledUnblocked, false
	case act.SourceUID == act.SinkUID:
		return action.StatusCancelledSelf, false
	default:
		return "", true
	}
}

// finishAction persists the decided outcome. Persistence failure is logged
// and never keeps the executor from advancing to the next action.
func (e *BlockEngine) finishAction(ctx context.Context, act *action.Action, status action.ActionStatus) {
	act.Status = status
	engineActionsResolved.WithLabelValues(string(status)).Inc()

	if err := e.actions.SaveStatus(ctx, act); err != nil {
		log.Printf("Engine: failed to save action %s status %s: %v", act.ID, status, err)
	}
}

func (e *BlockEngine) notifyBatchComplete(ctx context.Context, acct *account.Account, doneCount int) {
	if e.pushProvider == nil || len(acct.DeviceTokens) == 0 {
		return
	}

	title := "Block queue processed"
	body := fmt.Sprintf("%d accounts blocked for @%s", doneCount, acct.ScreenName)
	err := e.pushProvider.SendPush(ctx, acct.DeviceTokens, title, body, map[string]any{"doneCount": doneCount})
	if err != nil {
		log.Printf("Engine: push for %s failed: %v", acct.UID, err)
	}
}

// Stop the engine gracefully. In-flight passes run to completion.
func (e *BlockEngine) Stop() {
	log.Println("Stopping block engine...")
	close(e.stopChan)
	e.wg.Wait()
	log.Println("Block engine stopped")
}
