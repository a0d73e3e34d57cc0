package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"trails/domain/core/aggregates"
	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
)

const (
	autoTitleWords   = 4
	autoTitleMaxLen  = 30
	autoTitleEllipse = "..."
)

// Lifecycle is the coarse-grained workspace facade: it composes the graph
// store and the orchestrator for the operations that touch both, and owns
// auto-titling and canvas teardown.
type Lifecycle struct {
	graph        *GraphService
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewLifecycle creates the lifecycle service
func NewLifecycle(graph *GraphService, orchestrator *Orchestrator, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{graph: graph, orchestrator: orchestrator, logger: logger}
}

// AutoTitle derives a canvas title from prompt text: the first few words,
// with an ellipsis appended when the source text runs past the cutoff.
func AutoTitle(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return ""
	}
	if len(words) > autoTitleWords {
		words = words[:autoTitleWords]
	}
	title := strings.Join(words, " ")
	if len(content) > autoTitleMaxLen {
		title += autoTitleEllipse
	}
	return title
}

// SubmitPrompt places a prompt node and runs its dispatch cycle in one
// operation. The first prompt on a still-default-named canvas retitles it
// from the prompt text.
func (l *Lifecycle) SubmitPrompt(ctx context.Context, canvasID valueobjects.CanvasID, params AddPromptParams, modelIDs []string) (entities.NodeSnapshot, SubmitResult, error) {
	l.maybeRetitle(ctx, canvasID, params.Content)

	prompt, err := l.graph.AddPromptNode(ctx, canvasID, params)
	if err != nil {
		return entities.NodeSnapshot{}, SubmitResult{}, err
	}

	promptID, _ := valueobjects.NewNodeIDFromString(prompt.ID)
	result, err := l.orchestrator.Submit(ctx, canvasID, SubmitParams{PromptID: promptID, ModelIDs: modelIDs})
	if err != nil {
		return prompt, SubmitResult{}, err
	}
	return prompt, result, nil
}

func (l *Lifecycle) maybeRetitle(ctx context.Context, canvasID valueobjects.CanvasID, content string) {
	title := AutoTitle(content)
	if title == "" {
		return
	}

	snap, err := l.graph.CanvasSnapshot(canvasID)
	if err != nil || snap.Name != DefaultCanvasName || len(snap.Nodes) > 0 {
		return
	}
	if err := l.graph.RenameCanvas(ctx, canvasID, title); err != nil {
		l.logger.Warn("auto-title failed",
			zap.String("canvas_id", canvasID.String()),
			zap.Error(err))
	}
}

// DeleteCanvas cancels the canvas's in-flight dispatches before removing it
// from the catalog, so late results never resurrect deleted state.
func (l *Lifecycle) DeleteCanvas(ctx context.Context, canvasID valueobjects.CanvasID) error {
	l.orchestrator.CancelCanvas(canvasID)
	return l.graph.DeleteCanvas(ctx, canvasID)
}

// CancelCanvas drops the canvas's in-flight dispatches without touching its
// topology. Nodes stuck in loading settle to error so the cycle can restart.
func (l *Lifecycle) CancelCanvas(ctx context.Context, canvasID valueobjects.CanvasID) error {
	l.orchestrator.CancelCanvas(canvasID)
	return l.graph.Mutate(ctx, canvasID, func(canvas *aggregates.Canvas) error {
		for _, node := range canvas.Nodes() {
			if node.Status() == entities.StatusLoading {
				if err := canvas.SetNodeStatus(node.ID(), entities.StatusError); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
