// Package runner is the facade hosts (CLI, HTTP server) use to drive blog
// runs: start, resume at a review gate, retry a stuck run, and inspect state.
package runner

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.jetify.com/typeid"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/store"
)

var (
	// ErrRunNotFound is returned for an unknown run ID.
	ErrRunNotFound = eris.New("runner: run not found")
	// ErrRunBusy is returned when another start, resume or retry holds the run.
	ErrRunBusy = eris.New("runner: run is busy")
	// ErrNotInterrupted is returned when resuming a run that is not paused
	// at a review gate.
	ErrNotInterrupted = eris.New("runner: run is not waiting for review")
	// ErrWrongGate is returned when review input targets a gate other than
	// the one the run is paused at.
	ErrWrongGate = eris.New("runner: run is paused at a different gate")
	// ErrNoSources is returned by Start when no source content is given.
	ErrNoSources = eris.New("runner: at least one source is required")
)

// Runner executes blog runs over a checkpoint store. Runs are independent;
// operations on one run ID are serialized by an in-process lock.
type Runner struct {
	store   store.Store
	engine  *pipeline.Engine
	locks   *runLocks
	newID   func() (string, error)
	onStart func(runID string)
	bgCtx   context.Context
}

// Option configures a Runner.
type Option func(*Runner)

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(r *Runner) { r.newID = fn }
}

// WithStartHook registers fn to be called once per new run.
func WithStartHook(fn func(runID string)) Option {
	return func(r *Runner) { r.onStart = fn }
}

// WithBackgroundContext sets the parent context of runs started by
// StartAsync. Cancelling it stops those runs between nodes.
func WithBackgroundContext(ctx context.Context) Option {
	return func(r *Runner) { r.bgCtx = ctx }
}

// New creates a Runner.
func New(st store.Store, engine *pipeline.Engine, opts ...Option) *Runner {
	r := &Runner{
		store:   st,
		engine:  engine,
		locks:   newRunLocks(),
		newID:   NewRunID,
		onStart: func(string) {},
		bgCtx:   context.Background(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewRunID returns a fresh, sortable run identifier such as
// "run_01h455vb4pex5vsknk084sn02q".
func NewRunID() (string, error) {
	tid, err := typeid.WithPrefix("run")
	if err != nil {
		return "", eris.Wrap(err, "runner: generate run id")
	}
	return tid.String(), nil
}

// Start creates a run and executes it until the first review pause, the end
// of the graph, or a node failure. The run ID is returned whenever the run
// was created, even if a node failed.
func (r *Runner) Start(ctx context.Context, sources []model.SourceContent, cfg model.BlogConfig) (string, error) {
	cp, err := r.create(ctx, sources, cfg)
	if err != nil {
		return "", err
	}
	defer r.locks.unlock(cp.RunID)
	return cp.RunID, r.engine.Run(ctx, cp, false)
}

// StartAsync creates a run and executes it in the background. The returned
// channel receives the execution result once and is then closed.
func (r *Runner) StartAsync(ctx context.Context, sources []model.SourceContent, cfg model.BlogConfig) (string, <-chan error, error) {
	cp, err := r.create(ctx, sources, cfg)
	if err != nil {
		return "", nil, err
	}
	return cp.RunID, r.background(cp, false), nil
}

// background runs cp under the background context. The lock the caller
// holds is released before the result is sent.
func (r *Runner) background(cp *model.Checkpoint, enterGate bool) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := r.engine.Run(r.bgCtx, cp, enterGate)
		r.locks.unlock(cp.RunID)
		if err != nil {
			zap.L().Error("runner: background run failed", zap.String("run_id", cp.RunID), zap.Error(err))
		}
		done <- err
	}()
	return done
}

// create seeds and saves a new run. On success the run's lock is held.
func (r *Runner) create(ctx context.Context, sources []model.SourceContent, cfg model.BlogConfig) (*model.Checkpoint, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "runner: invalid blog config")
	}
	runID, err := r.newID()
	if err != nil {
		return nil, err
	}
	if !r.locks.tryLock(runID) {
		return nil, eris.Wrapf(ErrRunBusy, "run %s", runID)
	}

	cp := &model.Checkpoint{
		RunID: runID,
		State: model.PipelineState{
			Sources:      sources,
			BlogConfig:   &cfg,
			RewriteCount: model.Ptr(0),
			CurrentStep:  model.Ptr("started"),
		},
		PendingNodes: []string{r.engine.Graph().Entry()},
	}
	if err := r.store.SaveCheckpoint(ctx, cp); err != nil {
		r.locks.unlock(runID)
		return nil, eris.Wrap(err, "runner: save initial checkpoint")
	}
	zap.L().Info("runner: run started",
		zap.String("run_id", runID),
		zap.Int("sources", len(sources)),
		zap.String("output_language", string(cfg.OutputLanguage)),
	)
	r.onStart(runID)
	return cp, nil
}

// Resume merges reviewer input into a run paused at a review gate and
// continues to the next pause or the end of the graph.
func (r *Runner) Resume(ctx context.Context, runID string, input *model.PipelineState) error {
	cp, err := r.prepareResume(ctx, runID, "", input)
	if err != nil {
		return err
	}
	defer r.locks.unlock(runID)
	return r.engine.Run(ctx, cp, true)
}

// ResumeOutline applies an outline review. The run must be paused at
// outline_review.
func (r *Runner) ResumeOutline(ctx context.Context, runID string, review model.OutlineReview) error {
	if err := review.Validate(); err != nil {
		return err
	}
	cp, err := r.prepareResume(ctx, runID, pipeline.NodeOutlineReview, review.State())
	if err != nil {
		return err
	}
	defer r.locks.unlock(runID)
	return r.engine.Run(ctx, cp, true)
}

// ResumePublish applies a publish review. The run must be paused at
// publish_review.
func (r *Runner) ResumePublish(ctx context.Context, runID string, review model.PublishReview) error {
	if err := review.Validate(); err != nil {
		return err
	}
	cp, err := r.prepareResume(ctx, runID, pipeline.NodePublishReview, review.State())
	if err != nil {
		return err
	}
	defer r.locks.unlock(runID)
	return r.engine.Run(ctx, cp, true)
}

// ResumeOutlineAsync is ResumeOutline with execution in the background.
// Input and gate errors are returned before anything runs.
func (r *Runner) ResumeOutlineAsync(ctx context.Context, runID string, review model.OutlineReview) (<-chan error, error) {
	if err := review.Validate(); err != nil {
		return nil, err
	}
	cp, err := r.prepareResume(ctx, runID, pipeline.NodeOutlineReview, review.State())
	if err != nil {
		return nil, err
	}
	return r.background(cp, true), nil
}

// ResumePublishAsync is ResumePublish with execution in the background.
func (r *Runner) ResumePublishAsync(ctx context.Context, runID string, review model.PublishReview) (<-chan error, error) {
	if err := review.Validate(); err != nil {
		return nil, err
	}
	cp, err := r.prepareResume(ctx, runID, pipeline.NodePublishReview, review.State())
	if err != nil {
		return nil, err
	}
	return r.background(cp, true), nil
}

// prepareResume locks the run, checks it is paused at gate (any gate when
// empty) and merges input. On success the lock is held.
func (r *Runner) prepareResume(ctx context.Context, runID, gate string, input *model.PipelineState) (*model.Checkpoint, error) {
	if !r.locks.tryLock(runID) {
		return nil, eris.Wrapf(ErrRunBusy, "run %s", runID)
	}
	cp, err := r.checkPaused(ctx, runID, gate)
	if err != nil {
		r.locks.unlock(runID)
		return nil, err
	}
	cp.State.Merge(input)
	zap.L().Info("runner: resuming run", zap.String("run_id", runID), zap.String("gate", cp.NextNode()))
	return cp, nil
}

func (r *Runner) checkPaused(ctx context.Context, runID, gate string) (*model.Checkpoint, error) {
	cp, err := r.load(ctx, runID)
	if err != nil {
		return nil, err
	}
	next := cp.NextNode()
	if !r.engine.Graph().IsGate(next) {
		return nil, eris.Wrapf(ErrNotInterrupted, "run %s pending %q", runID, next)
	}
	if gate != "" && gate != next {
		return nil, eris.Wrapf(ErrWrongGate, "run %s is paused at %s", runID, next)
	}
	return cp, nil
}

// Retry re-executes a run from its last checkpoint without new input. A
// stuck run re-runs the node that failed; a paused or finished run is left
// as it is.
func (r *Runner) Retry(ctx context.Context, runID string) error {
	cp, err := r.prepareRetry(ctx, runID)
	if err != nil {
		return err
	}
	defer r.locks.unlock(runID)
	return r.engine.Run(ctx, cp, false)
}

// RetryAsync is Retry with execution in the background.
func (r *Runner) RetryAsync(ctx context.Context, runID string) (<-chan error, error) {
	cp, err := r.prepareRetry(ctx, runID)
	if err != nil {
		return nil, err
	}
	return r.background(cp, false), nil
}

func (r *Runner) prepareRetry(ctx context.Context, runID string) (*model.Checkpoint, error) {
	if !r.locks.tryLock(runID) {
		return nil, eris.Wrapf(ErrRunBusy, "run %s", runID)
	}
	cp, err := r.load(ctx, runID)
	if err != nil {
		r.locks.unlock(runID)
		return nil, err
	}
	zap.L().Info("runner: retrying run",
		zap.String("run_id", runID),
		zap.String("node", cp.NextNode()),
		zap.String("last_error", cp.LastError),
	)
	return cp, nil
}

// GetState returns the full state of a run.
func (r *Runner) GetState(ctx context.Context, runID string) (*model.PipelineState, error) {
	cp, err := r.load(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &cp.State, nil
}

// GetCheckpoint returns the stored checkpoint of a run.
func (r *Runner) GetCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error) {
	return r.load(ctx, runID)
}

// Delete removes a run. A run that is executing cannot be deleted.
func (r *Runner) Delete(ctx context.Context, runID string) error {
	if !r.locks.tryLock(runID) {
		return eris.Wrapf(ErrRunBusy, "run %s", runID)
	}
	defer r.locks.unlock(runID)

	if err := r.store.DeleteCheckpoint(ctx, runID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return eris.Wrapf(ErrRunNotFound, "run %s", runID)
		}
		return eris.Wrap(err, "runner: delete run")
	}
	zap.L().Info("runner: run deleted", zap.String("run_id", runID))
	return nil
}

func (r *Runner) load(ctx context.Context, runID string) (*model.Checkpoint, error) {
	cp, err := r.store.LoadCheckpoint(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrRunNotFound, "run %s", runID)
		}
		return nil, eris.Wrap(err, "runner: load run")
	}
	return cp, nil
}
