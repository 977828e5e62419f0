// Package services – ModerationService
//
// This file implements ModerationService, which produces an epistemic
// analysis of a debate message through the configured LLM client. Verdicts
// are persisted once per message; a provider outage degrades gracefully to
// an unstored pass verdict so the debate never blocks on the model.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/llm"
	"github.com/tbourn/go-debate-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const moderationSystemPrompt = `You are an epistemic moderator, expert in logic, argumentation, and critical thinking. Your job is to analyze messages in a debate and detect problems in the reasoning.

DEBATE CONTEXT:
- Topic: {topic}
- Agreed definitions: {definitions}

YOU MUST ANALYZE EACH MESSAGE LOOKING FOR:

1. **LOGICAL FALLACIES**: Ad hominem, straw man, false dichotomy, slippery slope, appeal to authority, appeal to emotion, hasty generalization, begging the question (circularity), false cause (post hoc), non sequitur, tu quoque, false dilemma, argument from ignorance, false consensus, poisoning the well, guilt by association.

2. **AMBIGUITIES**: Polysemy (a word with multiple meanings), amphiboly (ambiguous grammatical structure), definition shift (using a word with different meanings within the same argument), vagueness (imprecise terms that need operationalization).

3. **LOGICAL ERRORS**: Non sequitur, hasty generalization, correlation-causation confusion, affirming the consequent, denying the antecedent, invalid syllogisms.

4. **COGNITIVE BIASES**: Confirmation bias, anchoring, availability, halo effect, Dunning-Kruger, hindsight bias, survivorship bias.

RULES:
- Be fair and apply the principle of charity: interpret the argument in its strongest possible form.
- If two readings are possible, choose the more reasonable one.
- Acknowledge when an argument is sound.
- Give constructive suggestions for improvement.
- Be specific: quote the exact part of the message where you detect the problem.
- A message may have 0 problems (it is perfectly valid) or several.

If the message is a greeting, a statement of intent, a genuine question, or contains no logical arguments, return passed: true, severity: "none", issues: [], and a friendly summary.`

// degradedSummary is stored on nothing; it is the summary of the throwaway
// verdict returned when the model cannot be reached.
const degradedSummary = "Analysis could not be performed at this time."

// verdict mirrors the JSON shape the model is constrained to produce.
type verdict struct {
	Passed   bool           `json:"passed"`
	Severity string         `json:"severity" jsonschema:"enum=none,enum=low,enum=medium,enum=high"`
	Issues   []domain.Issue `json:"issues"`
	Summary  string         `json:"summary"`
}

// verdictSchema is reflected once; the schema never changes at runtime.
var verdictSchema = llm.GenerateSchema[verdict]()

// ModerationService analyzes messages on demand and caches the verdicts.
type ModerationService struct {
	DB *gorm.DB
	// AI is the model client. A nil client means every analysis degrades.
	AI llm.Client

	// Timeout bounds a single model call; 0 means no extra deadline.
	Timeout time.Duration
	// MaxTokens caps the model's reply length.
	MaxTokens int
	// Temperature overrides the model default when non-nil.
	Temperature *float64
}

// NewModerationService constructs a ModerationService with the provider
// settings the analysis contract assumes.
func NewModerationService(db *gorm.DB, ai llm.Client) *ModerationService {
	return &ModerationService{
		DB:          db,
		AI:          ai,
		Timeout:     20 * time.Second,
		MaxTokens:   1000,
		Temperature: llm.Temp(0.3),
	}
}

// Analyze returns the moderation verdict for a message, producing and
// persisting it on first request. Repeat calls return the stored verdict.
// When the model is unreachable the returned verdict passes with no issues
// and is NOT stored, so a later request gets a fresh attempt; callers can
// distinguish that case with Analysis.Persisted().
func (s *ModerationService) Analyze(ctx context.Context, userID, debateID, messageID string) (*domain.Analysis, error) {
	tr := otel.Tracer("services/ModerationService")
	ctx, span := tr.Start(ctx, "Analyze",
		trace.WithAttributes(
			attribute.String("debate.id", debateID),
			attribute.String("message.id", messageID),
		),
	)
	defer span.End()

	d, err := repo.GetDebate(ctx, s.DB, debateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}
	if !d.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}

	msg, err := repo.GetMessage(s.DB.WithContext(ctx), messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.DebateID != debateID {
		return nil, ErrMessageNotFound
	}

	if a, err := repo.GetAnalysisByMessage(s.DB.WithContext(ctx), messageID); err == nil {
		return a, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	defs, err := repo.ListDefinitions(ctx, s.DB, debateID)
	if err != nil {
		return nil, err
	}

	v, degraded := s.moderate(ctx, d.Topic, defs, msg.Content)
	analysis := &domain.Analysis{
		MessageID: messageID,
		Passed:    v.Passed,
		Severity:  v.Severity,
		Issues:    v.Issues,
		Summary:   v.Summary,
	}
	if analysis.Issues == nil {
		analysis.Issues = domain.IssueList{}
	}
	if degraded {
		// Leave ID empty: the verdict is a placeholder, not a record.
		return analysis, nil
	}

	if err := repo.CreateAnalysis(s.DB.WithContext(ctx), analysis); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// A concurrent request analyzed the message first; hand back
			// its verdict so both callers agree.
			return repo.GetAnalysisByMessage(s.DB.WithContext(ctx), messageID)
		}
		return nil, err
	}
	return analysis, nil
}

// moderate runs the model call and normalizes its output. Any failure,
// including a nil client, yields the degraded pass verdict.
func (s *ModerationService) moderate(ctx context.Context, topic string, defs []domain.Definition, content string) (verdict, bool) {
	degraded := verdict{
		Passed:   true,
		Severity: domain.SeverityNone,
		Issues:   []domain.Issue{},
		Summary:  degradedSummary,
	}
	if s.AI == nil {
		return degraded, true
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	system := strings.Replace(moderationSystemPrompt, "{topic}", topic, 1)
	system = strings.Replace(system, "{definitions}", renderDefinitions(defs), 1)

	var v verdict
	_, err := s.AI.Chat(ctx, llm.Request{
		SystemPrompt: system,
		UserPrompt:   fmt.Sprintf("Analyze the following debate message:\n\n%q", content),
		SchemaName:   "debate_message_analysis",
		Schema:       verdictSchema,
		MaxTokens:    s.MaxTokens,
		Temperature:  s.Temperature,
	}, &v)
	if err != nil {
		// Outage-class failures are expected churn; anything else points at
		// our own request and deserves a louder log line. Both degrade.
		if llm.IsDegraded(err) {
			log.Ctx(ctx).Warn().Err(err).Msg("moderation provider unavailable, returning degraded verdict")
		} else {
			log.Ctx(ctx).Error().Err(err).Msg("moderation request rejected, returning degraded verdict")
		}
		return degraded, true
	}

	if !domain.ValidSeverity(v.Severity) {
		v.Severity = domain.SeverityNone
	}
	if v.Summary == "" {
		v.Summary = "Analysis completed."
	}
	if v.Issues == nil {
		v.Issues = []domain.Issue{}
	}
	return v, false
}

// renderDefinitions formats the register for prompt interpolation.
func renderDefinitions(defs []domain.Definition) string {
	if len(defs) == 0 {
		return "No agreed definitions yet."
	}
	lines := make([]string, 0, len(defs))
	for _, d := range defs {
		lines = append(lines, fmt.Sprintf("- %q: %s (%s)", d.Term, d.Definition, d.Status))
	}
	return strings.Join(lines, "\n")
}
