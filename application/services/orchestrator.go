package services

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trails/application/ports"
	"trails/domain/core/aggregates"
	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
	pkgerrors "trails/pkg/errors"
)

// Orchestrator runs the dispatch cycle: vision pre-flight, context assembly,
// concurrent fan-out across the targeted models, and result application with
// per-dispatch status reduction.
//
// Each canvas carries a cancellation scope. Unloading or deleting the canvas
// cancels its scope and bumps a generation counter; results from the old
// generation are dropped instead of applied.
type Orchestrator struct {
	graph     *GraphService
	assembler *ContextAssembler
	catalog   ports.ModelCatalog
	provider  ports.CompletionProvider
	limiter   *rate.Limiter
	logger    *zap.Logger

	mu     sync.Mutex
	scopes map[string]*canvasScope
}

type canvasScope struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
}

// NewOrchestrator creates the dispatch orchestrator
func NewOrchestrator(graph *GraphService, assembler *ContextAssembler, catalog ports.ModelCatalog, provider ports.CompletionProvider, dispatchesPerSecond float64, logger *zap.Logger) *Orchestrator {
	limit := rate.Limit(dispatchesPerSecond)
	if dispatchesPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Orchestrator{
		graph:     graph,
		assembler: assembler,
		catalog:   catalog,
		provider:  provider,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		scopes:    make(map[string]*canvasScope),
	}
}

// scope returns the live cancellation scope for a canvas, creating one on
// first use.
func (o *Orchestrator) scope(canvasID valueobjects.CanvasID) *canvasScope {
	o.mu.Lock()
	defer o.mu.Unlock()

	sc, ok := o.scopes[canvasID.String()]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		sc = &canvasScope{ctx: ctx, cancel: cancel}
		o.scopes[canvasID.String()] = sc
	}
	return sc
}

// CancelCanvas cancels every in-flight dispatch for the canvas and bumps the
// generation so late results are dropped. The next submission opens a fresh
// scope.
func (o *Orchestrator) CancelCanvas(canvasID valueobjects.CanvasID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sc, ok := o.scopes[canvasID.String()]
	if !ok {
		return
	}
	generation := sc.generation + 1
	sc.cancel()
	ctx, cancel := context.WithCancel(context.Background())
	o.scopes[canvasID.String()] = &canvasScope{ctx: ctx, cancel: cancel, generation: generation}
}

// stillCurrent reports whether results from the given generation may still
// be applied to the canvas.
func (o *Orchestrator) stillCurrent(canvasID valueobjects.CanvasID, generation uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	sc, ok := o.scopes[canvasID.String()]
	return ok && sc.generation == generation
}

// SubmitParams selects the prompt and the models to fan out across. Empty
// ModelIDs falls back to the model recorded on the prompt node.
type SubmitParams struct {
	PromptID valueobjects.NodeID
	ModelIDs []string
}

// SubmitResult reports the outcome of one dispatch cycle
type SubmitResult struct {
	Mode      string                  `json:"mode"`
	Responses []entities.NodeSnapshot `json:"responses"`
	Failed    []DispatchFailure       `json:"failed,omitempty"`
}

// DispatchFailure records one model call that settled with an error
type DispatchFailure struct {
	ModelID string `json:"modelId"`
	Error   string `json:"error"`
}

// Submit runs the full dispatch cycle for a prompt node and blocks until
// every model call settles. With several models the council setting decides
// between council mode (one synthesized response) and parallel mode (one
// response node per model).
func (o *Orchestrator) Submit(ctx context.Context, canvasID valueobjects.CanvasID, params SubmitParams) (SubmitResult, error) {
	prompt, position, err := o.readPrompt(canvasID, params.PromptID)
	if err != nil {
		return SubmitResult{}, err
	}

	models, err := o.resolveModels(prompt, params.ModelIDs)
	if err != nil {
		return SubmitResult{}, err
	}

	// Vision pre-flight short-circuits the whole submission before any
	// dispatch: either every targeted model accepts the images or none run.
	if prompt.HasImages() {
		var unsupported []string
		for _, m := range models {
			if !o.catalog.SupportsVision(m.ID) {
				unsupported = append(unsupported, m.Name)
			}
		}
		if len(unsupported) > 0 {
			return SubmitResult{}, pkgerrors.NewVisionUnsupportedError(unsupported)
		}
	}

	sc := o.scope(canvasID)
	generation := sc.generation

	if err := o.graph.Mutate(ctx, canvasID, func(canvas *aggregates.Canvas) error {
		return canvas.SetNodeStatus(params.PromptID, entities.StatusLoading)
	}); err != nil {
		return SubmitResult{}, err
	}

	messages, err := o.assembler.BuildContext(canvasID, params.PromptID)
	if err != nil {
		o.settlePrompt(canvasID, generation, params.PromptID, entities.StatusError)
		return SubmitResult{}, err
	}

	credentials := o.graph.APIKeys()
	o.graph.rememberModel(models[0].ID)

	council := o.graph.Settings().LLMCouncil && len(models) > 1
	if council {
		return o.runCouncil(sc.ctx, canvasID, generation, params.PromptID, position, models, messages, credentials)
	}
	return o.runParallel(sc.ctx, canvasID, generation, params.PromptID, position, models, messages, credentials)
}

func (o *Orchestrator) readPrompt(canvasID valueobjects.CanvasID, promptID valueobjects.NodeID) (entities.PromptContent, valueobjects.Position, error) {
	var prompt entities.PromptContent
	var position valueobjects.Position
	err := o.graph.Read(canvasID, func(canvas *aggregates.Canvas) error {
		node, err := canvas.Node(promptID)
		if err != nil {
			return err
		}
		p, ok := node.Prompt()
		if !ok {
			return pkgerrors.NewValidationError("only prompt nodes can be submitted")
		}
		prompt = p
		position = node.Position()
		return nil
	})
	return prompt, position, err
}

func (o *Orchestrator) resolveModels(prompt entities.PromptContent, modelIDs []string) ([]ports.ModelInfo, error) {
	if len(modelIDs) == 0 {
		if prompt.ModelID == "" {
			return nil, pkgerrors.NewValidationError("no model selected for submission")
		}
		modelIDs = []string{prompt.ModelID}
	}

	models := make([]ports.ModelInfo, 0, len(modelIDs))
	seen := make(map[string]struct{}, len(modelIDs))
	for _, id := range modelIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		info, ok := o.catalog.Lookup(id)
		if !ok {
			return nil, pkgerrors.NewUnknownModelError(id)
		}
		models = append(models, info)
	}
	return models, nil
}

type dispatchOutcome struct {
	index   int
	model   ports.ModelInfo
	content string
	err     error
}

// fanOut runs one provider call per model and streams outcomes on the
// returned channel. The rate limiter paces call starts across the whole
// process, not per canvas.
func (o *Orchestrator) fanOut(ctx context.Context, models []ports.ModelInfo, messages []ports.Message, credentials map[string]string) <-chan dispatchOutcome {
	outcomes := make(chan dispatchOutcome, len(models))
	var wg sync.WaitGroup
	for i, model := range models {
		wg.Add(1)
		go func(index int, model ports.ModelInfo) {
			defer wg.Done()
			if err := o.limiter.Wait(ctx); err != nil {
				outcomes <- dispatchOutcome{index: index, model: model, err: err}
				return
			}
			content, err := o.provider.Complete(ctx, ports.CompletionRequest{
				ModelID:     model.ID,
				Messages:    messages,
				Credentials: credentials,
			})
			outcomes <- dispatchOutcome{index: index, model: model, content: content, err: err}
		}(i, model)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()
	return outcomes
}

// runParallel applies each result as it settles: one response node per
// successful model, spread horizontally below the prompt. The prompt's final
// status reduces over the dispatch outcomes: complete only when every call
// succeeded, error as soon as any failed.
func (o *Orchestrator) runParallel(ctx context.Context, canvasID valueobjects.CanvasID, generation uint64, promptID valueobjects.NodeID, promptPosition valueobjects.Position, models []ports.ModelInfo, messages []ports.Message, credentials map[string]string) (SubmitResult, error) {
	result := SubmitResult{Mode: "parallel"}
	n := len(models)

	for outcome := range o.fanOut(ctx, models, messages, credentials) {
		if !o.stillCurrent(canvasID, generation) {
			continue
		}
		if outcome.err != nil {
			o.logger.Warn("model dispatch failed",
				zap.String("model_id", outcome.model.ID),
				zap.Error(outcome.err))
			result.Failed = append(result.Failed, DispatchFailure{ModelID: outcome.model.ID, Error: outcome.err.Error()})
			continue
		}

		pos := responsePosition(promptPosition, outcome.index, n)
		var snap entities.NodeSnapshot
		err := o.graph.Mutate(context.Background(), canvasID, func(canvas *aggregates.Canvas) error {
			node, err := canvas.AddResponseNode(promptID, outcome.content, outcome.model.ID, pos)
			if err != nil {
				return err
			}
			snap = node.Snapshot()
			return nil
		})
		if err != nil {
			result.Failed = append(result.Failed, DispatchFailure{ModelID: outcome.model.ID, Error: err.Error()})
			continue
		}
		result.Responses = append(result.Responses, snap)
	}

	status := entities.StatusComplete
	if len(result.Failed) > 0 {
		status = entities.StatusError
	}
	o.settlePrompt(canvasID, generation, promptID, status)
	return result, nil
}

// runCouncil waits for every model to settle, then synthesizes the successes
// into one response node with a section per model. All failures is an error;
// partial failure degrades to a council of the survivors. The node is
// attributed to the first dispatched model; the id is display-only there.
func (o *Orchestrator) runCouncil(ctx context.Context, canvasID valueobjects.CanvasID, generation uint64, promptID valueobjects.NodeID, promptPosition valueobjects.Position, models []ports.ModelInfo, messages []ports.Message, credentials map[string]string) (SubmitResult, error) {
	result := SubmitResult{Mode: "council"}

	settled := make([]dispatchOutcome, 0, len(models))
	for outcome := range o.fanOut(ctx, models, messages, credentials) {
		settled = append(settled, outcome)
	}

	if !o.stillCurrent(canvasID, generation) {
		return result, nil
	}

	// Restore dispatch order; settle order depends on provider latency.
	ordered := make([]dispatchOutcome, len(models))
	for _, outcome := range settled {
		ordered[outcome.index] = outcome
	}

	var sections []string
	for _, outcome := range ordered {
		if outcome.err != nil {
			o.logger.Warn("council dispatch failed",
				zap.String("model_id", outcome.model.ID),
				zap.Error(outcome.err))
			result.Failed = append(result.Failed, DispatchFailure{ModelID: outcome.model.ID, Error: outcome.err.Error()})
			continue
		}
		sections = append(sections, "### "+outcome.model.Name+"\n\n"+outcome.content)
	}

	if len(sections) == 0 {
		o.settlePrompt(canvasID, generation, promptID, entities.StatusError)
		return result, pkgerrors.NewAllModelsFailedError(len(models))
	}

	pos := promptPosition.Offset(0, aggregates.ResponseOffsetY)
	var snap entities.NodeSnapshot
	err := o.graph.Mutate(context.Background(), canvasID, func(canvas *aggregates.Canvas) error {
		node, err := canvas.AddResponseNode(promptID, strings.Join(sections, "\n\n---\n\n"), models[0].ID, pos)
		if err != nil {
			return err
		}
		snap = node.Snapshot()
		return nil
	})
	if err != nil {
		o.settlePrompt(canvasID, generation, promptID, entities.StatusError)
		return result, err
	}
	result.Responses = append(result.Responses, snap)

	status := entities.StatusComplete
	if len(result.Failed) > 0 {
		status = entities.StatusError
	}
	o.settlePrompt(canvasID, generation, promptID, status)
	return result, nil
}

// settlePrompt applies the reduced final status to the prompt node unless
// the canvas scope moved on.
func (o *Orchestrator) settlePrompt(canvasID valueobjects.CanvasID, generation uint64, promptID valueobjects.NodeID, status entities.NodeStatus) {
	if !o.stillCurrent(canvasID, generation) {
		return
	}
	err := o.graph.Mutate(context.Background(), canvasID, func(canvas *aggregates.Canvas) error {
		return canvas.SetNodeStatus(promptID, status)
	})
	if err != nil {
		o.logger.Warn("settling prompt status failed",
			zap.String("node_id", promptID.String()),
			zap.Error(err))
	}
}

// Resubmit re-runs a prompt's dispatch. An existing response child for a
// model is updated in place; models without one get a fresh response node.
func (o *Orchestrator) Resubmit(ctx context.Context, canvasID valueobjects.CanvasID, params SubmitParams) (SubmitResult, error) {
	prompt, position, err := o.readPrompt(canvasID, params.PromptID)
	if err != nil {
		return SubmitResult{}, err
	}
	models, err := o.resolveModels(prompt, params.ModelIDs)
	if err != nil {
		return SubmitResult{}, err
	}
	if prompt.HasImages() {
		var unsupported []string
		for _, m := range models {
			if !o.catalog.SupportsVision(m.ID) {
				unsupported = append(unsupported, m.Name)
			}
		}
		if len(unsupported) > 0 {
			return SubmitResult{}, pkgerrors.NewVisionUnsupportedError(unsupported)
		}
	}

	// Map each model to its existing response child, if any.
	existing := make(map[string]valueobjects.NodeID, len(models))
	err = o.graph.Read(canvasID, func(canvas *aggregates.Canvas) error {
		for _, childID := range canvas.ChildrenOf(params.PromptID) {
			child, err := canvas.Node(childID)
			if err != nil {
				continue
			}
			if resp, ok := child.Response(); ok {
				if _, taken := existing[resp.ModelID]; !taken {
					existing[resp.ModelID] = childID
				}
			}
		}
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}

	sc := o.scope(canvasID)
	generation := sc.generation

	if err := o.graph.Mutate(ctx, canvasID, func(canvas *aggregates.Canvas) error {
		if err := canvas.SetNodeStatus(params.PromptID, entities.StatusLoading); err != nil {
			return err
		}
		for _, m := range models {
			if respID, ok := existing[m.ID]; ok {
				if err := canvas.SetNodeStatus(respID, entities.StatusLoading); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		return SubmitResult{}, err
	}

	messages, err := o.assembler.BuildContext(canvasID, params.PromptID)
	if err != nil {
		o.settlePrompt(canvasID, generation, params.PromptID, entities.StatusError)
		return SubmitResult{}, err
	}
	credentials := o.graph.APIKeys()

	result := SubmitResult{Mode: "resubmit"}
	n := len(models)
	for outcome := range o.fanOut(sc.ctx, models, messages, credentials) {
		if !o.stillCurrent(canvasID, generation) {
			continue
		}

		respID, update := existing[outcome.model.ID]
		if outcome.err != nil {
			result.Failed = append(result.Failed, DispatchFailure{ModelID: outcome.model.ID, Error: outcome.err.Error()})
			if update {
				o.graph.Mutate(context.Background(), canvasID, func(canvas *aggregates.Canvas) error {
					return canvas.SetNodeStatus(respID, entities.StatusError)
				})
			}
			continue
		}

		var snap entities.NodeSnapshot
		applyErr := o.graph.Mutate(context.Background(), canvasID, func(canvas *aggregates.Canvas) error {
			if update {
				if err := canvas.UpdateNodeContent(respID, outcome.content); err != nil {
					return err
				}
				if err := canvas.SetNodeStatus(respID, entities.StatusComplete); err != nil {
					return err
				}
				node, err := canvas.Node(respID)
				if err != nil {
					return err
				}
				snap = node.Snapshot()
				return nil
			}
			pos := responsePosition(position, outcome.index, n)
			node, err := canvas.AddResponseNode(params.PromptID, outcome.content, outcome.model.ID, pos)
			if err != nil {
				return err
			}
			snap = node.Snapshot()
			return nil
		})
		if applyErr != nil {
			result.Failed = append(result.Failed, DispatchFailure{ModelID: outcome.model.ID, Error: applyErr.Error()})
			continue
		}
		result.Responses = append(result.Responses, snap)
	}

	status := entities.StatusComplete
	if len(result.Failed) > 0 {
		status = entities.StatusError
	}
	o.settlePrompt(canvasID, generation, params.PromptID, status)
	return result, nil
}

func responsePosition(base valueobjects.Position, index, total int) valueobjects.Position {
	return base.Offset(
		(float64(index)-float64(total-1)/2)*aggregates.ParallelSpreadX,
		aggregates.ResponseOffsetY,
	)
}
