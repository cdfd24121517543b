package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/TalentPipe/internal/genai"
	"github.com/BTreeMap/TalentPipe/internal/mail"
	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/BTreeMap/TalentPipe/internal/store"
)

// Agent identifiers surfaced in turn results.
const (
	agentAnalyzer     = "analyzer"
	agentGeneral      = "user_msg_general_agent"
	agentTaskAssigner = "task_assigner"
	agentErrorHandler = "error_handler"
)

// Terminal responses for turns that no handler serves.
const (
	unclassifiedResponse    = "I wasn't able to classify your request. Could you rephrase it?"
	unroutedTaskResponse    = "I understood this as an HR email request, but I don't have a workflow for it yet. Could you rephrase it?"
	processingErrorResponse = "I apologize, but I encountered an error processing your request. Please try again."
)

// Orchestrator drives a complete conversation turn: memory extraction,
// two-stage classification, handler dispatch, and history persistence. It
// guarantees a response on every turn regardless of collaborator failures.
type Orchestrator struct {
	states    StateManager
	memory    *MemoryExtractor
	router    *Router
	general   *GeneralHandler
	inbox     *InboxSummaryHandler
	jobEmails *JobEmailSummaryHandler
	screening *ScreeningPipeline
	campaign  *CampaignWorkflow
}

// OrchestratorOption configures the orchestrator's collaborators.
type OrchestratorOption func(*orchestratorConfig)

type orchestratorConfig struct {
	routerOpts   []RouterOption
	campaignOpts []CampaignOption
}

// WithRouterOptions forwards options to the classification router.
func WithRouterOptions(opts ...RouterOption) OrchestratorOption {
	return func(c *orchestratorConfig) { c.routerOpts = append(c.routerOpts, opts...) }
}

// WithCampaignOptions forwards options to the campaign workflow.
func WithCampaignOptions(opts ...CampaignOption) OrchestratorOption {
	return func(c *orchestratorConfig) { c.campaignOpts = append(c.campaignOpts, opts...) }
}

// NewOrchestrator wires the turn pipeline from its collaborators.
func NewOrchestrator(oracle genai.ClientInterface, st store.Store, sender mail.Sender, opts ...OrchestratorOption) *Orchestrator {
	var cfg orchestratorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Orchestrator{
		states:    NewStoreBasedStateManager(st),
		memory:    NewMemoryExtractor(oracle),
		router:    NewRouter(oracle, cfg.routerOpts...),
		general:   NewGeneralHandler(oracle),
		inbox:     NewInboxSummaryHandler(oracle, st),
		jobEmails: NewJobEmailSummaryHandler(oracle, st),
		screening: NewScreeningPipeline(oracle, st),
		campaign:  NewCampaignWorkflow(oracle, st, sender, cfg.campaignOpts...),
	}
}

// ProcessTurn handles one inbound message and always returns a result. The
// memory-augmented path is attempted first; if it fails, the turn reruns
// without memory; if that also fails, a deterministic error result is
// returned.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, message string) *models.TurnResult {
	history, err := o.states.GetHistory(ctx, sessionID)
	if err != nil {
		slog.Warn("Orchestrator.ProcessTurn: history unavailable, continuing without memory", "error", err, "sessionID", sessionID)
		history = nil
	}

	result, err := o.processWithMemory(ctx, sessionID, message, history)
	if err != nil {
		slog.Warn("Orchestrator.ProcessTurn: memory path failed, retrying without memory", "error", err, "sessionID", sessionID)
		result, err = o.processTurn(ctx, sessionID, message, emptyMemoryContext(), false)
	}
	if err != nil {
		slog.Error("Orchestrator.ProcessTurn: all processing paths failed", "error", err, "sessionID", sessionID)
		result = &models.TurnResult{
			SessionID:          sessionID,
			AIResponse:         processingErrorResponse,
			Classification:     "error",
			TaskClassification: "error_handling",
			CurrentAgent:       agentErrorHandler,
		}
	}

	now := time.Now()
	if err := o.states.AppendTurns(ctx, sessionID,
		models.Turn{Role: models.RoleUser, Content: message, Timestamp: now},
		models.Turn{Role: models.RoleAssistant, Content: result.AIResponse, Timestamp: now},
	); err != nil {
		slog.Warn("Orchestrator.ProcessTurn: failed to persist turn history", "error", err, "sessionID", sessionID)
	}
	return result
}

func (o *Orchestrator) processWithMemory(ctx context.Context, sessionID, message string, history []models.Turn) (*models.TurnResult, error) {
	memCtx := o.memory.Extract(ctx, history, message)
	return o.processTurn(ctx, sessionID, message, memCtx, len(history) >= 2)
}

func (o *Orchestrator) processTurn(ctx context.Context, sessionID, message string, memCtx models.MemoryContext, hasMemory bool) (*models.TurnResult, error) {
	cls := o.router.Classify(ctx, message, memCtx)
	result := &models.TurnResult{
		SessionID:          sessionID,
		Classification:     string(cls.Intent),
		TaskClassification: string(cls.Task),
		HasMemory:          hasMemory,
	}

	switch cls.Intent {
	case models.IntentGeneral:
		result.CurrentAgent = agentGeneral
		result.AIResponse = o.general.Handle(ctx, message, memCtx)
	case models.IntentTask:
		if err := o.dispatchTask(ctx, sessionID, message, cls.Task, result); err != nil {
			return nil, err
		}
	default:
		// Out-of-vocabulary intent terminates the turn without a handler.
		result.CurrentAgent = agentAnalyzer
		result.AIResponse = unclassifiedResponse
	}
	return result, nil
}

// dispatchTask routes a task-intent turn to its workflow. Store-level
// failures propagate so the caller can fall back.
func (o *Orchestrator) dispatchTask(ctx context.Context, sessionID, message string, task models.Task, result *models.TurnResult) error {
	result.CurrentAgent = string(task)

	switch task {
	case models.TaskFetchSummarize:
		resp, err := o.inbox.Handle(ctx, sessionID)
		if err != nil {
			return err
		}
		result.AIResponse = resp

	case models.TaskJobEmailSummary:
		resp, err := o.jobEmails.Handle(ctx, sessionID)
		if err != nil {
			return err
		}
		result.AIResponse = resp

	case models.TaskScreening:
		summary, err := o.screening.Run(ctx, sessionID, message)
		if err != nil {
			return err
		}
		result.AIResponse = formatScreeningResponse(summary)

	case models.TaskCampaign:
		campaign, err := o.campaign.Run(ctx, sessionID, message)
		if err != nil {
			return err
		}
		result.AIResponse = formatCampaignResponse(campaign)
		o.recordCampaignRun(ctx, sessionID, campaign)

	default:
		// In-vocabulary "other" and out-of-vocabulary tokens both terminate.
		result.CurrentAgent = agentTaskAssigner
		result.AIResponse = unroutedTaskResponse
	}
	return nil
}

// recordCampaignRun stores the latest campaign result in session state for
// later inspection. Best effort only.
func (o *Orchestrator) recordCampaignRun(ctx context.Context, sessionID string, campaign *models.CampaignResult) {
	encoded, err := json.Marshal(campaign)
	if err != nil {
		return
	}
	if err := o.states.SetStateData(ctx, sessionID, models.DataKeyLastCampaignRun, string(encoded)); err != nil {
		slog.Warn("Orchestrator.recordCampaignRun: failed to store campaign result", "error", err, "sessionID", sessionID)
	}
}

func formatScreeningResponse(summary *models.ScreeningSummary) string {
	var b strings.Builder
	b.WriteString(summary.FinalSummary)
	if len(summary.Items) > 0 {
		b.WriteString("\n\nVerdicts:")
		for _, item := range summary.Items {
			fmt.Fprintf(&b, "\n- %s (%s): %s, %s", item.CandidateName, item.CandidateEmail, item.Status, item.Reason)
		}
	}
	return b.String()
}

func formatCampaignResponse(campaign *models.CampaignResult) string {
	var b strings.Builder
	b.WriteString(campaign.Message)
	if len(campaign.NextTasks) > 0 {
		b.WriteString("\n\nNext steps:")
		for _, task := range campaign.NextTasks {
			fmt.Fprintf(&b, "\n- %s", task)
		}
	}
	return b.String()
}
