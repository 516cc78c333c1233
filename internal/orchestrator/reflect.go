package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/agentd/internal/experience"
)

// reflect compares the finished task against past experiences and returns a
// reflect phase. Store reads already degrade to empty on failure, so this
// phase cannot abort the execution.
func (e *Executor) reflect(ctx context.Context, description, output string) experience.ReasoningPhase {
	past := e.store.GetAll(ctx)

	var matches, successful int
	lowerDesc := strings.ToLower(description)
	for _, rec := range past {
		recDesc := strings.ToLower(rec.TaskDescription)
		if strings.Contains(recDesc, lowerDesc) || strings.Contains(lowerDesc, recDesc) {
			matches++
			if rec.Success {
				successful++
			}
		}
	}

	var successRate float64
	if matches > 0 {
		successRate = float64(successful) / float64(matches)
	}

	improvements := []string{"Task completed successfully, no changes needed"}
	if strings.Contains(output, "error") {
		improvements = []string{
			"Review the error output and adjust the task description",
			"Verify provider credentials and connectivity before retrying",
		}
	}

	content := fmt.Sprintf(
		"Reflection: found %d similar past experience(s) with a %.0f%% success rate.",
		matches, successRate*100)

	return experience.ReasoningPhase{
		Type:      experience.PhaseReflect,
		Timestamp: time.Now(),
		Content:   content,
		Details: map[string]any{
			"similarExperiences": matches,
			"successRate":        successRate,
			"improvements":       improvements,
		},
	}
}
