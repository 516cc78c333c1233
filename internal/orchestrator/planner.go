package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/agentd/internal/experience"
)

// Task type categories produced by the plan phase.
const (
	TaskTypeQuestion      = "question"
	TaskTypeAnalysis      = "analysis"
	TaskTypeGeneration    = "generation"
	TaskTypeSummarization = "summarization"
	TaskTypeGeneral       = "general"
)

// Complexity buckets, by description length.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// taskTypeRule pairs trigger keywords with a category. Rules are evaluated
// in order; the first rule with a matching keyword wins.
type taskTypeRule struct {
	keywords []string
	taskType string
}

// buildTaskTypeRules returns the ordered classification rules. More specific
// categories are listed before generation, which has broad trigger words.
func buildTaskTypeRules() []taskTypeRule {
	return []taskTypeRule{
		{
			keywords: []string{"summarize", "summary", "tl;dr", "condense"},
			taskType: TaskTypeSummarization,
		},
		{
			keywords: []string{"analyze", "analysis", "compare", "evaluate", "review"},
			taskType: TaskTypeAnalysis,
		},
		{
			keywords: []string{"what", "how", "why", "when", "where", "who", "?"},
			taskType: TaskTypeQuestion,
		},
		{
			keywords: []string{"write", "create", "generate", "compose", "draft"},
			taskType: TaskTypeGeneration,
		},
	}
}

// Planner produces the plan phase for a task. Pure and deterministic given
// the task text.
type Planner struct {
	rules []taskTypeRule
}

// NewPlanner creates a planner with the built-in classification rules.
func NewPlanner() *Planner {
	return &Planner{rules: buildTaskTypeRules()}
}

// Plan classifies the task and returns a plan phase enumerating the
// intended steps. It never fails: any internal error would surface as
// phase content, not an abort.
func (p *Planner) Plan(description string) experience.ReasoningPhase {
	taskType := p.classify(description)
	complexity := classifyComplexity(description)
	tools := requiredTools(description)

	content := fmt.Sprintf(
		"Plan for %s task (complexity: %s):\n"+
			"1. Parse the request and identify the goal\n"+
			"2. Select the execution strategy for the current mode\n"+
			"3. Produce the result\n"+
			"4. Reflect on the outcome against past experiences",
		taskType, complexity)

	return experience.ReasoningPhase{
		Type:      experience.PhasePlan,
		Timestamp: time.Now(),
		Content:   content,
		Details: map[string]any{
			"taskType":      taskType,
			"complexity":    complexity,
			"requiredTools": tools,
		},
	}
}

func (p *Planner) classify(description string) string {
	lower := strings.ToLower(description)
	for _, rule := range p.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.taskType
			}
		}
	}
	return TaskTypeGeneral
}

// classifyComplexity buckets the task by description length.
func classifyComplexity(description string) string {
	switch n := len(description); {
	case n < 50:
		return ComplexityLow
	case n < 200:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}

// requiredTools derives keyword-triggered tool hints.
func requiredTools(description string) []string {
	lower := strings.ToLower(description)
	tools := []string{}
	if strings.Contains(lower, "file") {
		tools = append(tools, "file_system")
	}
	if strings.Contains(lower, "copy") || strings.Contains(lower, "clipboard") {
		tools = append(tools, "clipboard")
	}
	return tools
}
