// Package pipeline runs the full metric pipeline for a site: supplementation,
// chart series, composite scoring and data quality assessment.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/planetaryhealth/phi/pkg/aggregate"
	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/planetaryhealth/phi/pkg/normalize"
	"github.com/planetaryhealth/phi/pkg/quality"
	"github.com/planetaryhealth/phi/pkg/series"
	"github.com/planetaryhealth/phi/pkg/supplement"
	"github.com/sourcegraph/conc/pool"
)

// ErrUnknownProfile is returned when an input names a weight profile the
// runner does not know.
var ErrUnknownProfile = errors.New("unknown weight profile")

// Report is the outcome of one pipeline run.
type Report struct {
	RunID       string                `json:"run_id"`
	InputDigest string                `json:"input_digest"`
	GeneratedAt time.Time             `json:"generated_at"`
	Site        Site                  `json:"site,omitzero"`
	Profile     string                `json:"profile,omitempty"`
	Pillars     models.Pillars        `json:"pillars"`
	Filled      []supplement.Fill     `json:"filled"`
	Series      []series.PillarSeries `json:"series"`
	Composite   *aggregate.Composite  `json:"composite,omitempty"`
	Quality     quality.Assessment    `json:"quality"`
}

// Runner evaluates inputs. It is safe for concurrent use.
type Runner struct {
	supplementer *supplement.Engine
	normalizer   *normalize.Normalizer
	assessor     *quality.Assessor
	profiles     map[string]aggregate.Weights
	profile      string
	supplement   bool
	workers      int
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithSupplementer sets the supplementation engine.
func WithSupplementer(e *supplement.Engine) Option {
	return func(r *Runner) {
		if e != nil {
			r.supplementer = e
		}
	}
}

// WithSupplementation turns supplementation on or off.
func WithSupplementation(enabled bool) Option {
	return func(r *Runner) {
		r.supplement = enabled
	}
}

// WithNormalizer sets the normalizer used for series.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(r *Runner) {
		if n != nil {
			r.normalizer = n
		}
	}
}

// WithAssessor sets the data quality assessor.
func WithAssessor(a *quality.Assessor) Option {
	return func(r *Runner) {
		if a != nil {
			r.assessor = a
		}
	}
}

// WithProfiles adds named weight profiles. The built-in default profile can
// be overridden.
func WithProfiles(profiles map[string]aggregate.Weights) Option {
	return func(r *Runner) {
		for name, w := range profiles {
			r.profiles[name] = w.Clone()
		}
	}
}

// WithDefaultProfile sets the profile used when an input names none.
func WithDefaultProfile(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.profile = name
		}
	}
}

// WithWorkers bounds batch concurrency. Values <= 0 use NumCPU.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the time source for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Runner with supplementation enabled and the default
// equal-weight profile.
func New(opts ...Option) *Runner {
	r := &Runner{
		normalizer: normalize.Default(),
		assessor:   quality.New(),
		profiles:   map[string]aggregate.Weights{aggregate.DefaultProfile: aggregate.DefaultWeights()},
		profile:    aggregate.DefaultProfile,
		supplement: true,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.supplementer == nil {
		r.supplementer = supplement.New(supplement.WithLogger(r.logger))
	}
	if r.workers <= 0 {
		r.workers = runtime.NumCPU()
	}
	return r
}

// Profiles returns the known profile names, sorted.
func (r *Runner) Profiles() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Weights resolves the weights for an input: inline weights win, then the
// named profile, then the runner's default profile.
func (r *Runner) Weights(in Input) (string, aggregate.Weights, error) {
	if len(in.Weights) > 0 {
		w, err := aggregate.ParseWeights(in.Weights)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return "inline", w, nil
	}
	name := in.Profile
	if name == "" {
		name = r.profile
	}
	w, ok := r.profiles[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return name, w.Clone(), nil
}

// Run evaluates one input.
func (r *Runner) Run(ctx context.Context, in Input) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores, err := in.scores()
	if err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:       uuid.NewString(),
		InputDigest: in.Digest(),
		GeneratedAt: r.now().UTC(),
		Site:        in.Site,
	}

	if len(scores) > 0 {
		profile, weights, err := r.Weights(in)
		if err != nil {
			return nil, err
		}
		c := aggregate.Compute(scores, weights)
		rep.Profile = profile
		rep.Composite = &c
		if !weights.Normalized() {
			r.logger.Warn("weights do not sum to 1", "profile", profile, "sum", weights.Sum())
		}
	}

	if r.supplement {
		res := r.supplementer.Supplement(in.Pillars, in.External)
		rep.Pillars, rep.Filled = res.Pillars, res.Filled
	} else {
		rep.Pillars, rep.Filled = in.Pillars.Clone(), []supplement.Fill{}
		if rep.Pillars == nil {
			rep.Pillars = models.Pillars{}
		}
	}

	rep.Series = series.BuildPillarsWith(r.normalizer, rep.Pillars)
	rep.Quality = r.assessor.Assess(rep.Pillars)

	r.logger.Debug("pipeline run complete",
		"run_id", rep.RunID,
		"site", in.Site.Name,
		"metrics", rep.Pillars.MetricCount(),
		"filled", len(rep.Filled),
		"dqs", rep.Quality.DQS)

	return rep, nil
}

// BatchResult is the outcome of one batch item.
type BatchResult struct {
	Index  int     `json:"index"`
	Report *Report `json:"report,omitempty"`
	Err    error   `json:"-"`
}

// ErrorText returns the item's error text, or "".
func (b BatchResult) ErrorText() string {
	if b.Err == nil {
		return ""
	}
	return b.Err.Error()
}

// RunBatch evaluates inputs concurrently with at most the configured number
// of workers. Results are returned in input order. A failing item records
// its error and does not stop the others; items not started before ctx is
// cancelled record the context error. onDone, if set, is called with each
// finished item and must be safe for concurrent use.
func (r *Runner) RunBatch(ctx context.Context, inputs []Input, onDone func(BatchResult)) []BatchResult {
	results := make([]BatchResult, len(inputs))
	if len(inputs) == 0 {
		return results
	}

	p := pool.New().WithMaxGoroutines(r.workers)
	for i, in := range inputs {
		p.Go(func() {
			rep, err := r.Run(ctx, in)
			res := BatchResult{Index: i, Report: rep, Err: err}
			results[i] = res
			if err != nil {
				r.logger.Warn("batch item failed", "index", i, "error", err)
			}
			if onDone != nil {
				onDone(res)
			}
		})
	}
	p.Wait()

	return results
}
