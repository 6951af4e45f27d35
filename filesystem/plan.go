package filesystem

import (
	"context"
	"slices"
	"strings"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/internal/util"
	"github.com/google/uuid"
)

// Plan operations
const (
	PlanMove   = "move"
	PlanDelete = "delete"
)

// Step copies Src to Dst, both user paths
type Step struct {
	Src string
	Dst string
}

// Plan is a multi-key operation in two phases: every copy, then every delete.
// The delete phase only runs when all copies succeeded, so a failed move never
// loses data.
type Plan struct {
	ID      string
	Op      string
	User    webdrive.UserID
	Copies  []Step
	Deletes []string
}

func newPlan(op string, user webdrive.UserID) *Plan {
	return &Plan{ID: uuid.NewString(), Op: op, User: user}
}

// Report collects the outcome of every step a plan attempted
type Report struct {
	PlanID   string
	Outcomes []webdrive.Outcome
	// DeletesSkipped is set when a copy failed and the delete phase never ran
	DeletesSkipped bool
}

// Failed returns the outcomes that carry an error
func (r *Report) Failed() []webdrive.Outcome {
	var failed []webdrive.Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// err returns a *webdrive.PartialError when any step failed
func (r *Report) err(op string) error {
	failed := r.Failed()
	if len(failed) == 0 && !r.DeletesSkipped {
		return nil
	}
	return &webdrive.PartialError{PlanID: r.PlanID, Op: op, Failed: failed, Total: len(r.Outcomes)}
}

// execute runs plan against the store and reports every attempted step
func (fs *FileSystem) execute(ctx context.Context, plan *Plan) *Report {
	logger := util.GetLogger("FileSystem.execute")
	report := &Report{PlanID: plan.ID}

	copyFailed := false
	for _, step := range plan.Copies {
		out := webdrive.Outcome{Key: step.Src, Dst: step.Dst}
		if err := fs.store.Copy(ctx, fs.cfg.Bucket, fs.key(plan.User, step.Src), fs.key(plan.User, step.Dst)); err != nil {
			out.Err = webdrive.StorageError(webdrive.OpCopy, step.Src, err)
			copyFailed = true
			logger.Warn().Err(err).Str("plan", plan.ID).Str("src", step.Src).Str("dst", step.Dst).Msg("Copy step failed")
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	if copyFailed && len(plan.Deletes) > 0 {
		report.DeletesSkipped = true
		logger.Warn().Str("plan", plan.ID).Int("deletes", len(plan.Deletes)).Msg("Skipping delete phase after failed copies")
		return report
	}

	for batch := range slices.Chunk(plan.Deletes, fs.cfg.DeleteBatchSize) {
		report.Outcomes = append(report.Outcomes, fs.deleteBatch(ctx, plan, batch)...)
	}

	logger.Debug().
		Str("plan", plan.ID).
		Str("op", plan.Op).
		Int("copies", len(plan.Copies)).
		Int("deletes", len(plan.Deletes)).
		Int("failed", len(report.Failed())).
		Msg("Plan executed")
	return report
}

func (fs *FileSystem) deleteBatch(ctx context.Context, plan *Plan, batch []string) []webdrive.Outcome {
	keys := make([]string, len(batch))
	byKey := make(map[string]string, len(batch))
	for i, p := range batch {
		keys[i] = fs.key(plan.User, p)
		byKey[keys[i]] = p
	}

	outcomes := make([]webdrive.Outcome, 0, len(batch))
	results, err := fs.store.DeleteMany(ctx, fs.cfg.Bucket, keys)
	if err != nil {
		for _, p := range batch {
			outcomes = append(outcomes, webdrive.Outcome{Key: p, Err: webdrive.StorageError(webdrive.OpDelete, p, err)})
		}
		return outcomes
	}
	for _, r := range results {
		p, ok := byKey[r.Key]
		if !ok {
			p = fs.tr.ToUserPath(plan.User, r.Key)
		}
		out := webdrive.Outcome{Key: p}
		if r.Err != nil {
			out.Err = webdrive.StorageError(webdrive.OpDelete, p, r.Err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// RetryFailed re-applies the subset of plan that report shows as failed or
// skipped: failed copies are retried, then every delete that has not
// succeeded yet. The returned report covers only the retried steps.
func (fs *FileSystem) RetryFailed(ctx context.Context, plan *Plan, report *Report) (*Report, error) {
	logger := util.GetLogger("FileSystem.RetryFailed")

	deleted := map[string]bool{}
	failedCopies := map[string]bool{}
	for _, o := range report.Outcomes {
		switch {
		case o.Dst != "" && o.Err != nil:
			failedCopies[o.Key] = true
		case o.Dst == "" && o.Err == nil:
			deleted[o.Key] = true
		}
	}

	retry := &Plan{ID: plan.ID, Op: plan.Op, User: plan.User}
	for _, step := range plan.Copies {
		if failedCopies[step.Src] {
			retry.Copies = append(retry.Copies, step)
		}
	}
	for _, p := range plan.Deletes {
		if !deleted[p] {
			retry.Deletes = append(retry.Deletes, p)
		}
	}

	logger.Info().
		Str("plan", plan.ID).
		Int("copies", len(retry.Copies)).
		Int("deletes", len(retry.Deletes)).
		Msg("Retrying failed steps")
	next := fs.execute(ctx, retry)
	return next, next.err(plan.Op)
}

// subtree lists every user path at or below dir
func (fs *FileSystem) subtree(ctx context.Context, user webdrive.UserID, dir string) ([]string, error) {
	var out []string
	for info, err := range fs.store.List(ctx, fs.cfg.Bucket, fs.key(user, dir), true) {
		if err != nil {
			return nil, webdrive.StorageError(webdrive.OpList, dir, err)
		}
		p := fs.tr.ToUserPath(user, info.Key)
		if strings.HasPrefix(p, dir) {
			out = append(out, p)
		}
	}
	return out, nil
}
