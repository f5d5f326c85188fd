// Package agent answers one user message per call: it reloads the
// conversation, connects a fresh tool-provider client, runs the tool loop and
// stores what the loop produced.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/petasbytes/relay-agent/internal/config"
	"github.com/petasbytes/relay-agent/internal/history"
	"github.com/petasbytes/relay-agent/internal/mcpclient"
	"github.com/petasbytes/relay-agent/internal/provider"
	"github.com/petasbytes/relay-agent/internal/runner"
	"github.com/petasbytes/relay-agent/internal/telemetry"
	"github.com/petasbytes/relay-agent/memory"
	"github.com/petasbytes/relay-agent/tools"
)

type Options struct {
	// Endpoint of the tool provider, already resolved. Empty means the agent
	// runs with local tools only.
	Endpoint        string
	ProfileID       string
	ProtocolVersion string
	ConnectRetries  int
	RetryDelay      time.Duration
	RequestTimeout  time.Duration

	System        string
	MaxIterations int
	TokenBudget   int
	Parallel      bool
	HistoryLimit  int
}

// OptionsFromConfig resolves the configured endpoint and copies the rest.
func OptionsFromConfig(c *config.Config) (Options, error) {
	opts := Options{
		ProfileID:       c.ProfileID,
		ProtocolVersion: c.ProtocolVersion,
		ConnectRetries:  c.ConnectRetries,
		RetryDelay:      c.RetryDelay,
		RequestTimeout:  c.RequestTimeout,
		System:          c.SystemPrompt,
		MaxIterations:   c.MaxIterations,
		TokenBudget:     c.TokenBudget,
		Parallel:        c.ParallelTools,
		HistoryLimit:    c.HistoryLimit,
	}
	if c.MCPServerURL != "" {
		endpoint, err := mcpclient.ResolveEndpoint(c.MCPServerURL)
		if err != nil {
			return Options{}, fmt.Errorf("agent: %w", err)
		}
		opts.Endpoint = endpoint
	}
	return opts, nil
}

type Service struct {
	store memory.Store
	model provider.Model
	local *tools.Registry
	opts  Options
}

func New(store memory.Store, model provider.Model, local *tools.Registry, opts Options) *Service {
	return &Service{store: store, model: model, local: local, opts: opts}
}

// Reply records text as the next user message of conversation key and
// returns the loop's answer. The turns the loop appended are stored even when
// the model fails part way.
func (s *Service) Reply(ctx context.Context, key, text string) (*runner.Result, error) {
	ctx = telemetry.WithConversation(ctx, key)
	ctx = telemetry.WithTurnID(ctx, uuid.NewString())

	incoming := memory.Row{ConversationKey: key, Direction: memory.Incoming, Content: text}
	if err := s.store.Append(ctx, incoming); err != nil {
		return nil, fmt.Errorf("agent: store message: %w", err)
	}
	rows, err := s.store.GetRows(ctx, key, s.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("agent: load history: %w", err)
	}
	turns := history.BuildTurns(rows)

	remote, descs, closeRemote, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer closeRemote()

	r := runner.New(s.model, s.local, remote, descs)
	r.System = s.opts.System
	r.TokenBudget = s.opts.TokenBudget
	r.Parallel = s.opts.Parallel
	if s.opts.MaxIterations > 0 {
		r.MaxIterations = s.opts.MaxIterations
	}

	res, runErr := r.Run(ctx, turns)
	if res != nil && len(res.Turns) > 0 {
		// A cancelled ctx must not stop the completed rounds from landing.
		if err := s.store.Append(context.WithoutCancel(ctx), history.Flatten(key, res.Turns)...); err != nil {
			return res, errors.Join(runErr, fmt.Errorf("agent: store reply: %w", err))
		}
	}
	if runErr != nil {
		return res, fmt.Errorf("agent: %w", runErr)
	}
	return res, nil
}

// connect opens a client for this reply. A provider that cannot be reached
// or rejects the handshake leaves the agent with local tools only; only
// cancellation is returned as an error.
func (s *Service) connect(ctx context.Context) (runner.RemoteTools, []tools.Descriptor, func(), error) {
	noop := func() {}
	if s.opts.Endpoint == "" {
		return nil, nil, noop, nil
	}

	c := mcpclient.New(mcpclient.Options{
		Endpoint:        s.opts.Endpoint,
		ProfileID:       s.opts.ProfileID,
		ProtocolVersion: s.opts.ProtocolVersion,
		Timeout:         s.opts.RequestTimeout,
	})
	closeClient := func() { _ = c.Close() }

	sess, err := c.Connect(ctx, s.opts.ConnectRetries, s.opts.RetryDelay)
	if err != nil {
		closeClient()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, noop, fmt.Errorf("agent: connect: %w", ctxErr)
		}
		var ce *mcpclient.ConnectionError
		if errors.As(err, &ce) {
			log.Warnf("agent: tool provider unreachable, continuing without remote tools: %v", err)
		} else {
			log.Errorf("agent: tool provider rejected handshake, continuing without remote tools: %v", err)
		}
		telemetry.EmitContext(ctx, "connect_attempt", map[string]any{"connected": false, "tools": 0})
		return nil, nil, noop, nil
	}

	descs := c.Tools()
	telemetry.EmitContext(ctx, "connect_attempt", map[string]any{
		"connected": true,
		"session":   sess.ID != "",
		"tools":     len(descs),
	})
	return c, descs, closeClient, nil
}
