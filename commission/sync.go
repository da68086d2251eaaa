/*
sync.go - Persisting results as commission records

UPSERT SEMANTICS:
  Each result is written keyed by (tenant, policy), replacing any earlier
  record. Record IDs are derived from that key, so syncing the same batch
  twice leaves exactly the same rows.

CONCURRENCY:
  Writes for the same policy are serialized through a striped lock keyed by
  (tenant, policy); writes for different policies run in parallel. A cancelled context stops new
  writes; everything not yet written is reported as skipped.

FAILURES:
  Reported per record (SyncReport.Failures). The caller retries only
  SyncReport.FailedIDs(), never the whole batch.
*/
package commission

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// recordNamespace seeds deterministic record IDs.
var recordNamespace = uuid.MustParse("6f1c1e7a-35a2-4c1b-9a55-2b7f0c4e8d21")

// RecordID is the stable record ID for a tenant's policy.
func RecordID(tenant TenantID, policy PolicyID) string {
	return uuid.NewSHA1(recordNamespace, []byte(string(tenant)+"/"+string(policy))).String()
}

// SyncFailure is one record that could not be written.
type SyncFailure struct {
	PolicyID PolicyID `json:"policy_id"`
	Err      error    `json:"-"`
	Message  string   `json:"error"`
}

// SyncReport is the outcome of one Sync call.
type SyncReport struct {
	Persisted int           `json:"persisted"`
	Failures  []SyncFailure `json:"failures,omitempty"`

	// Skipped are results not written: error-status results, and everything
	// left over after the context was cancelled.
	Skipped []PolicyID `json:"skipped,omitempty"`
}

// FailedIDs lists the policies worth retrying.
func (r SyncReport) FailedIDs() []PolicyID {
	ids := make([]PolicyID, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.PolicyID)
	}
	return ids
}

// OK reports whether every attempted write succeeded.
func (r SyncReport) OK() bool { return len(r.Failures) == 0 }

// Sync upserts each result into store. Error-status results are skipped so a
// transient lookup failure never overwrites a good record.
func (e *Engine) Sync(ctx context.Context, store RecordStore, results []Result) SyncReport {
	var (
		mu     sync.Mutex
		report SyncReport
	)
	syncedAt := e.opts.Clock()

	g := new(errgroup.Group)
	g.SetLimit(max(e.opts.Workers, 1))

	for _, r := range results {
		if r.Status == StatusError {
			mu.Lock()
			report.Skipped = append(report.Skipped, r.PolicyID)
			mu.Unlock()
			continue
		}
		if ctx.Err() != nil {
			mu.Lock()
			report.Skipped = append(report.Skipped, r.PolicyID)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				report.Skipped = append(report.Skipped, r.PolicyID)
				mu.Unlock()
				return nil
			}
			err := e.upsert(ctx, store, Record{
				ID:       RecordID(r.TenantID, r.PolicyID),
				Result:   r,
				SyncedAt: syncedAt,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				perr := &PersistenceError{PolicyID: r.PolicyID, Cause: err}
				report.Failures = append(report.Failures, SyncFailure{PolicyID: r.PolicyID, Err: perr, Message: perr.Error()})
				e.opts.Logger.Warn("commission record sync failed",
					zap.String("policy_id", string(r.PolicyID)),
					zap.Error(err),
				)
				return nil
			}
			report.Persisted++
			return nil
		})
	}
	_ = g.Wait()

	e.opts.Logger.Info("commission sync complete",
		zap.Int("persisted", report.Persisted),
		zap.Int("failed", len(report.Failures)),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report
}

func (e *Engine) upsert(ctx context.Context, store RecordStore, rec Record) error {
	lock := e.recordLock(rec.Result.TenantID, rec.Result.PolicyID)
	lock.Lock()
	defer lock.Unlock()
	return store.UpsertRecord(ctx, rec)
}

// recordLock returns the stripe guarding (tenant, policy).
func (e *Engine) recordLock(tenant TenantID, policy PolicyID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(tenant))
	h.Write([]byte{'/'})
	h.Write([]byte(policy))
	return &e.recordLocks[h.Sum32()%recordLockStripes]
}
