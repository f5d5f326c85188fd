package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/petasbytes/relay-agent/internal/conversation"
	"github.com/petasbytes/relay-agent/internal/mcpclient"
	"github.com/petasbytes/relay-agent/internal/metrics"
	"github.com/petasbytes/relay-agent/internal/provider"
	"github.com/petasbytes/relay-agent/internal/telemetry"
	"github.com/petasbytes/relay-agent/internal/windowing"
	"github.com/petasbytes/relay-agent/tools"
)

const (
	DefaultMaxIterations = 5
	// maxConcurrentTools bounds one parallel batch.
	maxConcurrentTools = 8
)

var (
	errToolNotFound = errors.New("tool not found")
	errToolPanicked = errors.New("tool panicked")
)

// RemoteTools is the transport side of dispatch.
type RemoteTools interface {
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
}

type Runner struct {
	Model provider.Model
	// Local handlers take precedence over Remote for the same name.
	Local  *tools.Registry
	Remote RemoteTools
	// Catalogue is sent to the model on every call.
	Catalogue []tools.Descriptor
	System    string

	MaxIterations int
	// TokenBudget caps the window sent to the model; zero disables trimming.
	TokenBudget int
	Parallel    bool
}

// New returns a Runner whose catalogue is the local tools followed by remote.
func New(model provider.Model, local *tools.Registry, remote RemoteTools, remoteTools []tools.Descriptor) *Runner {
	r := &Runner{
		Model:         model,
		Local:         local,
		Remote:        remote,
		Catalogue:     tools.Catalogue(local.Descriptors(), remoteTools),
		MaxIterations: DefaultMaxIterations,
		Parallel:      true,
	}
	return r
}

// Result of one Run. Turns holds only what the loop appended.
type Result struct {
	Text       string
	Turns      []conversation.Turn
	Iterations int
	Forced     bool
}

// Run loops until the model answers without invocations or the iteration cap
// forces a tools-disabled final call. Model errors and cancellation are
// returned; tool failures become error results. On error the returned Result
// still holds the complete rounds appended so far.
func (r *Runner) Run(ctx context.Context, turns []conversation.Turn) (*Result, error) {
	ctx = r.withTurnID(ctx)
	limit := r.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}

	conv := append([]conversation.Turn(nil), turns...)
	base := len(conv)
	res := &Result{}

	for res.Iterations < limit {
		resp, results, err := r.RunOneStep(ctx, conv)
		if err != nil {
			res.Turns = conv[base:]
			return res, err
		}
		if len(results) == 0 {
			if t := resp.Turn(); len(t.Blocks) > 0 {
				conv = append(conv, t)
			}
			res.Text = resp.Text()
			res.Turns = conv[base:]
			r.done(ctx, res)
			return res, nil
		}
		conv = append(conv, resp.Turn(), resultTurn(results))
		res.Iterations++
	}

	metrics.ForcedFinals.Inc()
	log.Warnf("runner: iteration cap %d reached, forcing final answer", limit)
	telemetry.EmitContext(ctx, "loop_forced_final", map[string]any{"iterations": res.Iterations})

	resp, err := r.ask(ctx, conv, true)
	if err != nil {
		res.Turns = conv[base:]
		return res, err
	}
	// Only text survives: an invocation here would have no results.
	res.Text = resp.Text()
	res.Forced = true
	if res.Text != "" {
		conv = append(conv, conversation.Assistant(conversation.TextBlock(res.Text)))
	}
	res.Turns = conv[base:]
	r.done(ctx, res)
	return res, nil
}

// RunOneStep makes one model call and executes the invocations it returns.
// results is ordered like resp.Invocations() and empty when there are none.
func (r *Runner) RunOneStep(ctx context.Context, turns []conversation.Turn) (*provider.Response, []conversation.Result, error) {
	ctx = r.withTurnID(ctx)
	resp, err := r.ask(ctx, turns, false)
	if err != nil {
		return nil, nil, err
	}
	invs := resp.Invocations()
	if len(invs) == 0 {
		return resp, nil, nil
	}
	results, err := r.execute(ctx, invs)
	if err != nil {
		return nil, nil, err
	}
	return resp, results, nil
}

func (r *Runner) ask(ctx context.Context, turns []conversation.Turn, disableTools bool) (*provider.Response, error) {
	window := turns
	if r.TokenBudget > 0 {
		var stats windowing.Stats
		window, stats = windowing.PrepareWindow(turns, r.TokenBudget, windowing.HeuristicCounter{})
		metrics.EvictedTurns.Add(float64(stats.DroppedTurns))
		telemetry.EmitContext(ctx, "window_prepared", map[string]any{
			"budget":          stats.Budget,
			"total_estimated": stats.Total,
			"included_groups": stats.IncludedGroups,
			"skipped_groups":  stats.SkippedGroups,
			"dropped_turns":   stats.DroppedTurns,
			"reanchored":      stats.ReanchoredGroups,
			"over_budget":     stats.OverBudget,
		})
	}
	return r.Model.Complete(ctx, provider.Request{
		Turns:        window,
		Tools:        r.Catalogue,
		System:       r.System,
		DisableTools: disableTools,
	})
}

// execute runs one batch. Results keep invocation order whether or not the
// batch ran concurrently; a cancelled batch yields no results at all.
func (r *Runner) execute(ctx context.Context, invs []conversation.Invocation) ([]conversation.Result, error) {
	results := make([]conversation.Result, len(invs))
	if !r.Parallel || len(invs) == 1 {
		for i, inv := range invs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = r.dispatch(ctx, inv)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(maxConcurrentTools)
		for i, inv := range invs {
			g.Go(func() error {
				results[i] = r.dispatch(ctx, inv)
				return nil
			})
		}
		_ = g.Wait()
	}
	if err := ctx.Err(); err != nil {
		log.Warnf("runner: dropping batch of %d tool results: %v", len(invs), err)
		return nil, err
	}
	return results, nil
}

func (r *Runner) dispatch(ctx context.Context, inv conversation.Invocation) conversation.Result {
	start := time.Now()
	var (
		out    any
		err    error
		source string
	)
	switch {
	case r.hasLocal(inv.Name):
		source = "local"
		out, err = safeCall(inv.Name, func() (any, error) { return r.Local.Invoke(ctx, inv.Name, inv.Arguments) })
	case r.Remote != nil:
		source = "remote"
		out, err = safeCall(inv.Name, func() (any, error) { return r.Remote.CallTool(ctx, inv.Name, inv.Arguments) })
	default:
		source = "missing"
		err = errToolNotFound
	}

	res := conversation.Result{InvocationID: inv.ID}
	if err == nil {
		res.Payload, err = encodePayload(out)
	}
	var toolErr *mcpclient.ToolError
	if errors.As(err, &toolErr) && len(toolErr.Data) > 0 {
		err = fmt.Errorf("%w: %s", err, toolErr.Data)
	}
	inSize := 0
	if b, mErr := json.Marshal(inv.Arguments); mErr == nil {
		inSize = len(b)
	}
	fields := map[string]any{
		"tool_name":   inv.Name,
		"source":      source,
		"duration_ms": time.Since(start).Milliseconds(),
		"input_size":  inSize,
		"output_size": len(res.Payload),
		"error":       nil,
	}

	if err != nil {
		res.Payload = ""
		res.Error = err.Error()
		if res.Error == "" {
			res.Error = "tool failed"
		}
		fields["output_size"] = 0
		// Raw errors may echo arguments; telemetry gets a generic marker.
		fields["error"] = "tool error"
		if errors.Is(err, errToolNotFound) {
			fields["error"] = errToolNotFound.Error()
		}
		metrics.ToolCalls.WithLabelValues(source, "error").Inc()
		log.Warnf("runner: tool %s (%s) failed: %v", inv.Name, source, err)
	} else {
		metrics.ToolCalls.WithLabelValues(source, "ok").Inc()
		log.Debugf("runner: tool %s (%s) ok in %s", inv.Name, source, time.Since(start))
	}
	telemetry.EmitContext(ctx, "tool_exec", fields)
	return res
}

// safeCall runs one handler, turning a panic into an error for that call.
func safeCall(name string, fn func() (any, error)) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("runner: tool %s panicked: %v", name, p)
			log.Tracef("Stacktrace: %s", debug.Stack())
			metrics.ToolPanics.Inc()
			out, err = nil, fmt.Errorf("%w: %v", errToolPanicked, p)
		}
	}()
	return fn()
}

func (r *Runner) hasLocal(name string) bool {
	_, ok := r.Local.Lookup(name)
	return ok
}

func (r *Runner) done(ctx context.Context, res *Result) {
	metrics.LoopIterations.Observe(float64(res.Iterations))
	telemetry.EmitContext(ctx, "loop_done", map[string]any{
		"iterations": res.Iterations,
		"forced":     res.Forced,
		"turns":      len(res.Turns),
	})
}

func (r *Runner) withTurnID(ctx context.Context) context.Context {
	if _, ok := telemetry.TurnIDFromContext(ctx); ok {
		return ctx
	}
	return telemetry.WithTurnID(ctx, uuid.NewString())
}

func resultTurn(results []conversation.Result) conversation.Turn {
	blocks := make([]conversation.Block, len(results))
	for i, res := range results {
		blocks[i] = conversation.ResultBlock(res)
	}
	return conversation.User(blocks...)
}

// encodePayload renders a tool's return value as result text: strings
// verbatim, everything else as JSON.
func encodePayload(v any) (string, error) {
	switch p := v.(type) {
	case string:
		return p, nil
	case json.RawMessage:
		return string(p), nil
	case []byte:
		return string(p), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
