package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentd/internal/experience"
)

func TestPlannerClassification(t *testing.T) {
	tests := []struct {
		name        string
		description string
		wantType    string
	}{
		{"question word", "What is the capital of France", TaskTypeQuestion},
		{"question mark", "Is the build green?", TaskTypeQuestion},
		{"analysis", "Analyze last month's sales figures", TaskTypeAnalysis},
		{"generation", "Write a birthday message for a colleague", TaskTypeGeneration},
		{"summarization", "Summarize the quarterly report", TaskTypeSummarization},
		{"summarization beats question word", "How to summarize the report", TaskTypeSummarization},
		{"fallback", "ping", TaskTypeGeneral},
		{"case insensitive", "SUMMARIZE this document", TaskTypeSummarization},
	}

	p := NewPlanner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phase := p.Plan(tt.description)
			assert.Equal(t, experience.PhasePlan, phase.Type)
			assert.Equal(t, tt.wantType, phase.Details["taskType"])
		})
	}
}

func TestPlannerComplexityBuckets(t *testing.T) {
	p := NewPlanner()

	tests := []struct {
		description string
		want        string
	}{
		{"short task", ComplexityLow},
		{strings.Repeat("a", 49), ComplexityLow},
		{strings.Repeat("a", 50), ComplexityMedium},
		{strings.Repeat("a", 199), ComplexityMedium},
		{strings.Repeat("a", 200), ComplexityHigh},
	}
	for _, tt := range tests {
		phase := p.Plan(tt.description)
		assert.Equal(t, tt.want, phase.Details["complexity"], "length %d", len(tt.description))
	}
}

func TestPlannerRequiredTools(t *testing.T) {
	p := NewPlanner()

	phase := p.Plan("Copy the file listing to my notes")
	tools, ok := phase.Details["requiredTools"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"file_system", "clipboard"}, tools)

	phase = p.Plan("Answer a trivia question")
	tools, ok = phase.Details["requiredTools"].([]string)
	require.True(t, ok)
	assert.Empty(t, tools)
}

func TestPlannerDeterministic(t *testing.T) {
	p := NewPlanner()
	a := p.Plan("Summarize the quarterly report")
	b := p.Plan("Summarize the quarterly report")
	assert.Equal(t, a.Content, b.Content)
	assert.Equal(t, a.Details, b.Details)
}
