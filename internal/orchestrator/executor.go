package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/experience"
	"github.com/fyrsmithlabs/agentd/internal/logging"
	"github.com/fyrsmithlabs/agentd/internal/vault"
	"github.com/fyrsmithlabs/agentd/pkg/providers"
)

const tracerName = "github.com/fyrsmithlabs/agentd/internal/orchestrator"

// Executor runs tasks through the plan/execute/reflect state machine and
// persists one experience per call.
type Executor struct {
	store   experience.Store
	creds   CredentialSource
	cfg     Config
	planner *Planner
	policy  SuccessPolicy
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewExecutor creates an executor over the given store and credential
// source. A nil logger falls back to a no-op logger.
func NewExecutor(store experience.Store, creds CredentialSource, cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		store:   store,
		creds:   creds,
		cfg:     cfg,
		planner: NewPlanner(),
		policy:  DefaultSuccessPolicy,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// SetSuccessPolicy replaces the default success heuristic. A nil policy is
// ignored.
func (e *Executor) SetSuccessPolicy(policy SuccessPolicy) {
	if policy != nil {
		e.policy = policy
	}
}

// Execute runs one task end to end and returns the persisted experience.
//
// Structural failures (missing credential, failed remote call) abort the
// phase sequence, persist a failure experience, and return both the record
// and the error. A store write failure on the success path returns the
// store error alone.
func (e *Executor) Execute(ctx context.Context, req TaskRequest) (*experience.Experience, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, experience.ErrEmptyTask
	}
	mode := e.cfg.mode(req)
	if !mode.Valid() {
		return nil, experience.ErrInvalidMode
	}
	model := e.cfg.model(req)

	stream := experience.NewThoughtStream(uuid.New().String())
	ctx = logging.WithTaskID(ctx, stream.TaskID)

	ctx, span := e.tracer.Start(ctx, "orchestrator.execute_task", trace.WithAttributes(
		attribute.String("task.id", stream.TaskID),
		attribute.String("task.mode", string(mode)),
		attribute.String("task.model", model),
	))
	defer span.End()

	e.logger.Info("task started",
		zap.String("task_id", stream.TaskID),
		zap.String("mode", string(mode)),
		zap.String("model", model))

	stream.Append(e.planner.Plan(req.Description))

	output, execPhase, err := e.executePhase(ctx, req, mode, model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return e.persistFailure(ctx, stream, req, mode, model, err)
	}
	stream.Append(execPhase)

	stream.Append(e.reflect(ctx, req.Description, output))
	stream.Finalize()

	exp := &experience.Experience{
		ID:              uuid.New().String(),
		TaskDescription: req.Description,
		Input:           req.Input,
		Output:          output,
		Mode:            mode,
		Model:           model,
		Reasoning:       *stream,
		Success:         e.policy(output),
		Timestamp:       time.Now(),
	}
	if storeErr := e.store.Store(ctx, exp); storeErr != nil {
		span.RecordError(storeErr)
		span.SetStatus(codes.Error, storeErr.Error())
		return nil, storeErr
	}

	e.logger.Info("task persisted",
		zap.String("task_id", stream.TaskID),
		zap.String("experience_id", exp.ID),
		zap.Bool("success", exp.Success))
	return exp, nil
}

// executePhase runs the mode-specific strategy. The returned error is
// non-nil only for structural failures that abort the execution; internal
// errors degrade into the phase content instead.
func (e *Executor) executePhase(ctx context.Context, req TaskRequest, mode experience.Mode, model string) (string, experience.ReasoningPhase, error) {
	details := map[string]any{
		"mode":  string(mode),
		"model": model,
	}

	var output string
	if mode == experience.ModeOffline {
		output = fmt.Sprintf("Processed with local resources: %s", req.Description)
	} else {
		provider := e.cfg.Provider
		details["provider"] = provider

		key, ok := e.creds.Get(provider)
		if !ok {
			err := fmt.Errorf("%w: provider %q", vault.ErrMissingCredential, provider)
			return "", experience.ReasoningPhase{}, err
		}

		result, err := e.completeRemote(ctx, provider, key, req, model)
		if err != nil {
			var remote *providers.RemoteCallError
			if errors.As(err, &remote) {
				return "", experience.ReasoningPhase{}, err
			}
			// Non-structural failure, e.g. a misconfigured provider
			// name. Narrate it instead of aborting.
			output = fmt.Sprintf("execution error: %v", err)
		} else {
			output = result
		}
	}

	phase := experience.ReasoningPhase{
		Type:      experience.PhaseExecute,
		Timestamp: time.Now(),
		Content:   output,
		Details:   details,
	}
	return output, phase, nil
}

func (e *Executor) completeRemote(ctx context.Context, provider, key string, req TaskRequest, model string) (string, error) {
	client, err := providers.New(provider, key, e.cfg.providerOptions(provider))
	if err != nil {
		return "", err
	}

	prompt := req.Description
	if req.Input != "" {
		prompt = req.Description + "\n\n" + req.Input
	}
	return client.Complete(ctx, providers.CompletionRequest{
		Model:  model,
		Prompt: prompt,
	})
}

// persistFailure finalizes the trace, records a failure experience, and
// re-signals the original error. The record is returned alongside the error
// so the caller sees both the failure and the fact that it was stored.
func (e *Executor) persistFailure(ctx context.Context, stream *experience.ThoughtStream, req TaskRequest, mode experience.Mode, model string, cause error) (*experience.Experience, error) {
	stream.Finalize()

	msg := cause.Error()
	exp := &experience.Experience{
		ID:              uuid.New().String(),
		TaskDescription: req.Description,
		Input:           req.Input,
		Output:          msg,
		Mode:            mode,
		Model:           model,
		Reasoning:       *stream,
		Success:         false,
		ErrorMessage:    msg,
		Timestamp:       time.Now(),
	}
	if storeErr := e.store.Store(ctx, exp); storeErr != nil {
		e.logger.Warn("failed to persist failure experience",
			zap.String("task_id", stream.TaskID),
			zap.Error(storeErr))
	}

	e.logger.Warn("task failed",
		zap.String("task_id", stream.TaskID),
		zap.String("mode", string(mode)),
		zap.Error(cause))
	return exp, cause
}
