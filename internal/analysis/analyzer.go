package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/contract-analyzer/internal/guardrail"
	"github.com/jonathan/contract-analyzer/internal/llm"
	"github.com/jonathan/contract-analyzer/internal/schemas"
	"github.com/jonathan/contract-analyzer/internal/types"
	"github.com/jonathan/contract-analyzer/internal/usage"
	"go.uber.org/zap"
)

const (
	// DefaultTemperature matches the sampling temperature the analyzer has always used
	DefaultTemperature float32 = 0.5
	// DefaultModel is used when neither the request nor the options name one
	DefaultModel = "gpt-4o-mini"
)

// TokenizerFunc returns the local tokenizer for a model
type TokenizerFunc func(model string) (usage.Tokenizer, error)

// Analyzer runs the extraction state machine. It holds no per-run state and
// is safe for concurrent use; each Run is independent.
type Analyzer struct {
	client         llm.Client
	prices         *usage.PriceTable
	guard          guardrail.Guard
	policy         RetryPolicy
	tokenizer      TokenizerFunc
	logger         *zap.Logger
	temperature    float32
	defaultModel   string
	attemptTimeout time.Duration
	sleep          SleepFunc
	observer       Observer
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithGuard screens every request before the model is invoked.
func WithGuard(g guardrail.Guard) Option {
	return func(a *Analyzer) { a.guard = g }
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(a *Analyzer) { a.policy = p.normalized() }
}

// WithTokenizerFunc replaces the tiktoken-based fallback tokenizer.
func WithTokenizerFunc(f TokenizerFunc) Option {
	return func(a *Analyzer) { a.tokenizer = f }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(a *Analyzer) { a.temperature = t }
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) Option {
	return func(a *Analyzer) { a.defaultModel = model }
}

// WithAttemptTimeout bounds each model invocation. Zero means no bound beyond the caller's context.
func WithAttemptTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.attemptTimeout = d }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(s SleepFunc) Option {
	return func(a *Analyzer) { a.sleep = s }
}

// WithObserver receives every state transition.
func WithObserver(o Observer) Option {
	return func(a *Analyzer) { a.observer = o }
}

// New creates an Analyzer.
func New(client llm.Client, prices *usage.PriceTable, opts ...Option) *Analyzer {
	a := &Analyzer{
		client:       client,
		prices:       prices,
		policy:       DefaultRetryPolicy(),
		logger:       zap.NewNop(),
		temperature:  DefaultTemperature,
		defaultModel: DefaultModel,
		sleep:        sleepContext,
	}
	a.tokenizer = func(model string) (usage.Tokenizer, error) {
		return usage.TokenizerForModel(a.prices, model)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// With returns a copy of the analyzer with extra options applied, e.g. a per-request observer.
func (a *Analyzer) With(opts ...Option) *Analyzer {
	clone := *a
	for _, opt := range opts {
		opt(&clone)
	}
	return &clone
}

// Policy returns the retry policy in effect.
func (a *Analyzer) Policy() RetryPolicy {
	return a.policy
}

// Prices returns the price table used for cost estimation.
func (a *Analyzer) Prices() *usage.PriceTable {
	return a.prices
}

// run holds the mutable state of one Run
type run struct {
	a         *Analyzer
	log       *zap.Logger
	outcome   *Outcome
	state     State
	attempt   int
	latency   time.Duration
	requestID string
}

// Run analyzes one contract. It never returns nil and never panics on provider
// misbehaviour; every failure is reported through the outcome.
//
// Order of checks: request validation, price lookup, guardrail, then up to
// MaxRetries+1 strictly sequential model invocations.
func (a *Analyzer) Run(ctx context.Context, req *types.AnalysisRequest) *Outcome {
	start := time.Now()
	requestID := uuid.NewString()
	r := &run{
		a:         a,
		log:       a.logger.With(zap.String("request_id", requestID)),
		outcome:   &Outcome{RequestID: requestID},
		state:     StateIdle,
		requestID: requestID,
	}
	defer func() {
		r.outcome.ProcessingTimeMs = time.Since(start).Milliseconds()
	}()

	if req == nil {
		return r.fail(KindInvalidRequest, "request body is required", nil)
	}
	normalized := *req
	normalized.ApplyDefaults(a.defaultModel)
	r.outcome.Model = normalized.ModelID
	r.log = r.log.With(zap.String("model", normalized.ModelID))

	if err := normalized.Validate(); err != nil {
		return r.fail(KindInvalidRequest, err.Error(), err)
	}
	if _, ok := a.prices.Lookup(normalized.ModelID); !ok {
		err := &usage.UnknownModelError{Model: normalized.ModelID}
		return r.fail(KindCostEstimationError, err.Error(), err)
	}

	if a.guard != nil {
		verdict, err := a.guard.Check(ctx, &normalized)
		switch {
		case err != nil && ctx.Err() != nil:
			return r.fail(KindCanceled, "request canceled before analysis started", ctx.Err())
		case err != nil:
			return r.block(&guardrail.Verdict{Blocked: true, Reason: fmt.Sprintf("guardrail unavailable: %v", err)})
		case verdict != nil && verdict.Blocked:
			return r.block(verdict)
		}
	}

	r.log.Info("analysis started",
		zap.Int("contract_chars", len(normalized.ContractText)),
		zap.String("contract_type", string(normalized.ContractType)),
		zap.Int("max_retries", a.policy.MaxRetries))

	prompt := BuildPrompt(&normalized)
	return r.loop(ctx, normalized.ContractText, llm.Request{
		Model:       normalized.ModelID,
		System:      prompt.System,
		Prompt:      prompt.User,
		SchemaName:  schemas.AnalysisSchemaName,
		Schema:      schemas.AnalysisSchema(),
		Temperature: a.temperature,
	})
}

// loop drives Invoking → Validating → RetryWait until a terminal state
func (r *run) loop(ctx context.Context, contractText string, llmReq llm.Request) *Outcome {
	policy := r.a.policy
	delays := policy.newBackOff()

	var last *Failure
	var lastRateLimit *llm.RateLimitError
	for r.attempt = 0; r.attempt <= policy.MaxRetries; r.attempt++ {
		if r.attempt > 0 {
			delay := delays.NextBackOff()
			if lastRateLimit != nil && lastRateLimit.RetryAfter > delay {
				delay = lastRateLimit.RetryAfter
			}
			r.outcome.Attempts[len(r.outcome.Attempts)-1].Backoff = delay
			r.transition(StateRetryWait, fmt.Sprintf("waiting %s before retry: %s", delay, last.Message))
			if err := r.a.sleep(ctx, delay); err != nil {
				return r.fail(KindCanceled, "request canceled during retry backoff", err)
			}
		}

		r.transition(StateInvoking, "")
		resp, elapsed, err := r.invoke(ctx, llmReq)
		r.latency += elapsed
		record := AttemptRecord{Attempt: r.attempt + 1, LatencyMs: elapsed.Milliseconds()}

		if ctx.Err() != nil {
			r.outcome.Attempts = append(r.outcome.Attempts, record)
			return r.fail(KindCanceled, "request canceled during model invocation", ctx.Err())
		}

		lastRateLimit = nil
		if err != nil {
			last = classifyProviderError(err)
			record.Kind, record.Message = last.Kind, last.Message
			r.outcome.Attempts = append(r.outcome.Attempts, record)
			r.log.Warn("model invocation failed",
				zap.Int("attempt", r.attempt+1),
				zap.String("kind", string(last.Kind)),
				zap.Error(err))

			errors.As(err, &lastRateLimit)
			if !llm.IsRetryable(err) {
				return r.failWith(last)
			}
			continue
		}

		r.transition(StateValidating, "")
		result, verr := schemas.ValidateAnalysis([]byte(llm.CleanJSONBlock(resp.Text)))
		if verr == nil {
			r.outcome.Attempts = append(r.outcome.Attempts, record)
			return r.succeed(contractText, resp, result)
		}

		last = &Failure{Kind: KindValidationFailure, Message: validationMessage(verr), Cause: verr}
		record.Kind, record.Message = last.Kind, last.Message
		r.outcome.Attempts = append(r.outcome.Attempts, record)
		r.log.Warn("model output failed validation",
			zap.Int("attempt", r.attempt+1),
			zap.Int("response_chars", len(resp.Text)),
			zap.String("violations", last.Message))

		var loadErr *schemas.SchemaLoadError
		if errors.As(verr, &loadErr) {
			return r.failWith(last)
		}
	}

	// the last attempt's failure is the one reported
	return r.failWith(last)
}

// invoke runs one model call in its own goroutine so that a cancelled caller
// returns immediately. The result channel is buffered; an abandoned call can
// always deliver and exit.
func (r *run) invoke(ctx context.Context, req llm.Request) (*llm.Response, time.Duration, error) {
	type result struct {
		resp *llm.Response
		err  error
	}

	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if r.a.attemptTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.a.attemptTimeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: &llm.ProviderError{Message: fmt.Sprintf("provider client panicked: %v", p)}}
			}
		}()
		resp, err := r.a.client.Generate(callCtx, req)
		done <- result{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		elapsed := time.Since(start)
		if res.err == nil && res.resp == nil {
			return nil, elapsed, &llm.ProviderError{Retryable: true, Message: "provider returned no response"}
		}
		if res.err != nil && ctx.Err() == nil && errors.Is(res.err, context.DeadlineExceeded) {
			return nil, elapsed, &llm.ProviderError{Retryable: true, Message: "model invocation timed out", Cause: res.err}
		}
		return res.resp, elapsed, res.err
	case <-ctx.Done():
		return nil, time.Since(start), ctx.Err()
	}
}

// succeed computes usage and cost for a validated result. Without provider usage,
// input tokens are counted over the contract text alone.
func (r *run) succeed(contractText string, resp *llm.Response, result *types.AnalysisResult) *Outcome {
	model := r.outcome.Model

	var tok usage.Tokenizer
	if !resp.Usage.Reported() {
		var err error
		tok, err = r.a.tokenizer(model)
		if err != nil {
			return r.fail(KindCostEstimationError, "provider reported no usage and no local tokenizer is available", err)
		}
	}

	tokens, err := usage.EstimateUsage(resp.Usage, contractText, result, tok)
	if err != nil {
		return r.fail(KindCostEstimationError, err.Error(), err)
	}
	cost, err := r.a.prices.EstimateCost(tokens, model)
	if err != nil {
		return r.fail(KindCostEstimationError, err.Error(), err)
	}

	r.outcome.Status = StatusSuccess
	r.outcome.Result = result
	r.outcome.Usage = types.UsageMetrics{
		Tokens:           tokens,
		EstimatedCostUSD: cost,
		LatencyMs:        r.latency.Milliseconds(),
		RetryCount:       r.retryCount(),
	}
	r.transition(StateSuccess, "")
	r.log.Info("analysis succeeded",
		zap.Int("clauses", len(result.Clauses)),
		zap.Float64("risk_score", result.OverallRiskScore),
		zap.Int("total_tokens", tokens.Total),
		zap.Bool("provider_usage", resp.Usage.Reported()),
		zap.Float64("cost_usd", cost),
		zap.Int("retries", r.outcome.Usage.RetryCount))
	return r.outcome
}

// fail ends the run with a new failure
func (r *run) fail(kind ErrorKind, message string, cause error) *Outcome {
	return r.failWith(&Failure{Kind: kind, Message: message, Cause: cause})
}

// failWith ends the run, keeping latency and retry count as partial metrics
func (r *run) failWith(f *Failure) *Outcome {
	r.outcome.Status = StatusFailure
	r.outcome.Failure = f
	r.outcome.Result = nil
	r.outcome.Usage = types.UsageMetrics{
		LatencyMs:  r.latency.Milliseconds(),
		RetryCount: r.retryCount(),
	}
	r.transition(StateFailed, f.Message)
	r.log.Info("analysis failed",
		zap.String("kind", string(f.Kind)),
		zap.String("reason", f.Message),
		zap.Int("attempts", len(r.outcome.Attempts)))
	return r.outcome
}

// block ends the run without invoking the model
func (r *run) block(v *guardrail.Verdict) *Outcome {
	r.outcome.Status = StatusBlocked
	r.outcome.Failure = &Failure{Kind: KindContentBlocked, Message: v.Reason}
	r.log.Info("analysis blocked by guardrail", zap.String("rule", v.Rule))
	if r.a.observer != nil {
		r.a.observer(Event{RequestID: r.requestID, State: StateFailed, Message: v.Reason, At: time.Now()})
	}
	return r.outcome
}

// retryCount is the number of invocations beyond the first
func (r *run) retryCount() int {
	if n := len(r.outcome.Attempts); n > 1 {
		return n - 1
	}
	return 0
}

// transition moves the state machine and notifies the observer
func (r *run) transition(to State, message string) {
	r.log.Debug("state transition",
		zap.Stringer("from", r.state),
		zap.Stringer("to", to),
		zap.Int("attempt", r.attempt+1))
	r.state = to
	if r.a.observer != nil {
		r.a.observer(Event{
			RequestID: r.requestID,
			Attempt:   r.attempt + 1,
			State:     to,
			Message:   message,
			At:        time.Now(),
		})
	}
}

// classifyProviderError maps a client error to a failure kind
func classifyProviderError(err error) *Failure {
	var rateErr *llm.RateLimitError
	if errors.As(err, &rateErr) {
		return &Failure{Kind: KindRateLimited, Message: rateErr.Error(), Cause: err}
	}
	return &Failure{Kind: KindProviderError, Message: err.Error(), Cause: err}
}

// validationMessage flattens a validation error for reporting
func validationMessage(err error) string {
	var verr *schemas.ValidationError
	if errors.As(err, &verr) {
		return "model output failed schema validation: " + verr.Summary()
	}
	return err.Error()
}
