// Package dispatch executes the (run × prompt × model) cross-product of
// provider calls under a fixed concurrency ceiling. One failing task never
// aborts the batch: every submitted task yields exactly one outcome, errors
// included, and outcomes come back in input order regardless of completion
// order.
package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridianlabs/visibility-cli/internal/model"
)

// Task is one ephemeral unit of work: a prompt bound to a model configuration
// and a run index. Indices are carried through to the outcome so downstream
// aggregation never depends on completion order.
type Task struct {
	Prompt      string
	RunIndex    int
	PromptIndex int
	Model       model.ModelConfig
}

// Outcome pairs a task with its settled result. Err is set for failed tasks;
// Answer holds the zero value in that case.
type Outcome struct {
	Task   Task
	Answer model.RawAnswer
	Err    error
}

// InvokeFunc performs one provider call for a task.
type InvokeFunc func(ctx context.Context, task Task) (model.RawAnswer, error)

// ProgressFunc observes task settlement. Called once per settled task with
// the running done count and the batch total; it must not block.
type ProgressFunc func(done, total int)

// Dispatcher fans tasks out with bounded concurrency.
type Dispatcher struct {
	limit    int
	progress ProgressFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithProgress registers a settlement observer.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Dispatcher) {
		d.progress = fn
	}
}

// New creates a Dispatcher with at most limit tasks in flight.
func New(limit int, opts ...Option) *Dispatcher {
	if limit < 1 {
		limit = 1
	}
	d := &Dispatcher{limit: limit}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run executes all tasks and returns one outcome per task, in task order.
// Individual failures are captured on the outcome; Run itself only fails with
// the context's error when ctx is canceled before all tasks settle.
func (d *Dispatcher) Run(ctx context.Context, tasks []Task, invoke InvokeFunc) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	var progressMu sync.Mutex
	done := 0

	g := new(errgroup.Group)
	g.SetLimit(d.limit)

	for i, task := range tasks {
		g.Go(func() error {
			answer, err := invoke(ctx, task)
			if err != nil {
				zap.L().Warn("dispatch: task failed",
					zap.String("provider", task.Model.Provider),
					zap.String("model", task.Model.ModelID),
					zap.Int("run", task.RunIndex),
					zap.Int("prompt", task.PromptIndex),
					zap.Error(err),
				)
			}
			outcomes[i] = Outcome{Task: task, Answer: answer, Err: err}

			if d.progress != nil {
				progressMu.Lock()
				done++
				d.progress(done, len(tasks))
				progressMu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// Expand builds the full task list for a prompt set: runs × prompts × models,
// in that nesting order. Visibility audits use runs > 1; sentiment audits
// pass runs = 1.
func Expand(prompts []string, models []model.ModelConfig, runs int) []Task {
	if runs < 1 {
		runs = 1
	}
	tasks := make([]Task, 0, runs*len(prompts)*len(models))
	for run := 0; run < runs; run++ {
		for pi, prompt := range prompts {
			for _, mc := range models {
				tasks = append(tasks, Task{
					Prompt:      prompt,
					RunIndex:    run,
					PromptIndex: pi,
					Model:       mc,
				})
			}
		}
	}
	return tasks
}
