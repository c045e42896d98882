package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/agentcoreio/agentcore/capability"
	"github.com/agentcoreio/agentcore/mediator"
	"github.com/agentcoreio/agentcore/reflection"
)

// Deps bundles the shared, possibly-nil dependencies every agent variant is
// constructed with. Memory, reflector, and communicator are all optional:
// an agent built with a zero Deps still executes, it simply skips memory
// enrichment, runs its ExecuteImpl directly, and returns an error from
// delegate/request-help/broadcast.
type Deps struct {
	Generator    Generator
	ToolCaller   ToolCaller
	Memory       MemoryStore
	Communicator Communicator
	Logger       Logger
}

func (d Deps) logger() Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return nullLogger{}
}

// Base implements the public contract every agent variant shares: execute
// (with memory-backed model recommendation and the reflection loop),
// delegate-to, request-help, broadcast, and on-broadcast. It satisfies
// mediator.Handler directly, so a variant embedding *Base needs only to
// supply an ExecuteImpl.
type Base struct {
	descriptor *capability.Descriptor
	taskType   string // learning-store bucket; "" if this agent isn't tracked

	memory    MemoryStore
	reflector Reflector
	med       Communicator
	logger    Logger

	impl ExecuteImpl
}

// NewBase constructs the shared agent contract. impl is the variant's
// task-specific execution function; descriptor carries the agent's static
// configuration (name, capabilities, reflection policy).
func NewBase(descriptor *capability.Descriptor, deps Deps, impl ExecuteImpl) *Base {
	rc := reflection.Config{
		Enabled:             descriptor.Reflection.Enabled,
		MaxRetries:          descriptor.Reflection.MaxRetries,
		MinQualityThreshold: descriptor.Reflection.MinQualityThresh,
	}
	var reflector Reflector
	if deps.Generator != nil {
		reflector = reflection.New(deps.Generator, deps.Memory, deps.logger(), descriptor.Name, rc)
	}

	return &Base{
		descriptor: descriptor,
		taskType:   taskTypeByAgent[descriptor.Name],
		memory:     deps.Memory,
		reflector:  reflector,
		med:        deps.Communicator,
		logger:     deps.logger(),
		impl:       impl,
	}
}

// Name satisfies mediator.Handler.
func (b *Base) Name() string { return b.descriptor.Name }

// Capabilities satisfies mediator.Handler.
func (b *Base) Capabilities() []capability.Capability { return b.descriptor.Capabilities }

// Execute runs a task with memory-backed model recommendation and, unless
// disabled or already inside a correction round, the reflection loop.
// Signature matches mediator.Handler.Execute exactly, which is why it takes
// no context.Context: handlers are invoked synchronously from the
// mediator's own per-message goroutine, which itself is context-bound.
func (b *Base) Execute(task string, taskContext map[string]any) (result map[string]any, err error) {
	ctx := context.Background()
	start := time.Now()

	tc := taskContext
	if tc == nil {
		tc = map[string]any{}
	}

	if _, has := tc["preferred_model"]; !has && b.memory != nil && b.taskType != "" {
		if rec, ok := b.memory.GetBestModelForTaskType(ctx, b.taskType); ok && rec.Model != "" {
			tc["_memory_recommended_model"] = rec.Model
			b.logger.Debug("memory recommends model", "agent", b.Name(), "model", rec.Model)
		}
	}

	correcting, _ := tc["_correction_mode"].(bool)
	skip, _ := tc["_skip_reflection"].(bool)
	useReflection := b.reflector != nil && b.descriptor.Reflection.Enabled && !correcting && !skip

	if useReflection {
		result, err = b.reflector.ExecuteWithReflection(ctx, task, tc, reflection.ExecuteFn(b.impl))
	} else {
		result, err = b.impl(ctx, task, tc)
	}

	duration := time.Since(start)
	if err != nil {
		b.recordFailure(ctx, task, err, duration, tc)
		return nil, err
	}
	if result == nil {
		result = map[string]any{}
	}
	result["_execution_time"] = duration.Seconds()

	b.recordSuccess(ctx, task, result, duration, tc)
	return result, nil
}

func (b *Base) recordSuccess(ctx context.Context, task string, result map[string]any, duration time.Duration, tc map[string]any) {
	if b.memory == nil {
		return
	}
	if succ, has := result["success"]; has {
		if ok, isBool := succ.(bool); isBool && !ok {
			return
		}
	}
	// A variant that attaches syntax_validated (CodeWriter) is telling us its
	// own "success" is unconditional; only a validated solution is worth
	// learning from, mirroring the source's validity-gated save_solution call.
	if valid, has := result["syntax_validated"]; has {
		if ok, isBool := valid.(bool); isBool && !ok {
			return
		}
	}
	solution := extractSolution(result)
	if len(solution) <= 50 {
		return
	}
	if len(solution) > 2000 {
		solution = solution[:2000]
	}
	modelUsed, _ := tc["preferred_model"].(string)
	if modelUsed == "" {
		modelUsed = b.descriptor.DefaultModel
	}
	truncatedTask := task
	if len(truncatedTask) > 500 {
		truncatedTask = truncatedTask[:500]
	}
	meta := map[string]any{"duration": duration.Seconds()}
	if refl, ok := result["_reflection"]; ok {
		meta["reflection"] = refl
	}
	b.memory.SaveSolution(ctx, truncatedTask, solution, b.Name(), b.taskType, modelUsed, meta)
}

func (b *Base) recordFailure(ctx context.Context, task string, execErr error, duration time.Duration, tc map[string]any) {
	if b.memory == nil {
		return
	}
	truncatedTask := task
	if len(truncatedTask) > 500 {
		truncatedTask = truncatedTask[:500]
	}
	errMsg := execErr.Error()
	if len(errMsg) > 500 {
		errMsg = errMsg[:500]
	}
	b.memory.SaveFailedTask(ctx, truncatedTask, b.Name(), errMsg)
}

// extractSolution picks the representative text field out of a result, in
// the same preference order the source's execute() uses to decide what's
// worth saving to memory.
func extractSolution(result map[string]any) string {
	for _, key := range []string{"code", "final_answer", "analysis", "report"} {
		if s, ok := result[key].(string); ok && s != "" {
			return s
		}
	}
	if r, ok := result["result"]; ok {
		s := fmt.Sprintf("%v", r)
		if len(s) > 1000 {
			s = s[:1000]
		}
		return s
	}
	return ""
}

// DelegateTo hands a subtask to another registered agent and waits (bounded
// by timeout) for its result.
func (b *Base) DelegateTo(ctx context.Context, agentType, subtask string, taskContext map[string]any, timeout time.Duration) (map[string]any, error) {
	if b.med == nil {
		return nil, fmt.Errorf("agent %s: communicator not available for delegation", b.Name())
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	b.logger.Info("delegating subtask", "agent", b.Name(), "to", agentType)
	res := b.med.DelegateSubtask(ctx, b.Name(), agentType, subtask, taskContext, mediator.PriorityNormal, timeout)
	if res.Success {
		b.logger.Info("delegation succeeded", "agent", b.Name(), "to", agentType, "took", res.ExecutionTime)
	} else {
		b.logger.Warn("delegation failed", "agent", b.Name(), "to", agentType, "error", res.Error)
	}
	return delegationResultToMap(res), nil
}

// RequestHelp asks whichever registered agent advertises capability c to
// perform task.
func (b *Base) RequestHelp(ctx context.Context, c capability.Capability, task string, taskContext map[string]any) (map[string]any, error) {
	if b.med == nil {
		return nil, fmt.Errorf("agent %s: communicator not available for help request", b.Name())
	}
	b.logger.Info("requesting help", "agent", b.Name(), "capability", c)
	res := b.med.RequestHelp(ctx, b.Name(), c, task, taskContext)
	return delegationResultToMap(res), nil
}

// Broadcast sends content to every registered agent and collects responses.
func (b *Base) Broadcast(ctx context.Context, content map[string]any) (map[string]any, error) {
	if b.med == nil {
		return nil, fmt.Errorf("agent %s: communicator not available for broadcast", b.Name())
	}
	responses := b.med.BroadcastToAll(ctx, b.Name(), content)
	out := make(map[string]any, len(responses))
	for agent, resp := range responses {
		out[agent] = map[string]any{"success": resp.Success, "payload": resp.Payload, "error": resp.Error}
	}
	return out, nil
}

// OnBroadcast is the default mediator.Handler broadcast handler: a bare
// acknowledgement. Variants that care about broadcast content override it.
func (b *Base) OnBroadcast(content map[string]any) (map[string]any, error) {
	return map[string]any{
		"agent":        b.Name(),
		"acknowledged": true,
		"message":      fmt.Sprintf("broadcast received by %s", b.Name()),
	}, nil
}

func delegationResultToMap(res *mediator.DelegationResult) map[string]any {
	out := map[string]any{
		"success":        res.Success,
		"delegated_to":   res.DelegatedTo,
		"execution_time": res.ExecutionTime.Seconds(),
	}
	if res.Error != "" {
		out["error"] = res.Error
	}
	for k, v := range res.Payload {
		out[k] = v
	}
	return out
}
