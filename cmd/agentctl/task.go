package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	taskInput  string
	taskMode   string
	taskModel  string
	taskAsJSON bool
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Run tasks on the agentd server",
}

var taskRunCmd = &cobra.Command{
	Use:   "run <description>",
	Short: "Execute a task and print the result",
	Long: `Execute one task through the plan/execute/reflect pipeline.

Examples:
  # Run a task with the server's configured mode
  agentctl task run "Summarize the quarterly report"

  # Force cloud execution with a specific model
  agentctl task run --mode cloud --model gpt-4o "Translate this to French"

  # Raw JSON output
  agentctl task run --json "What is the capital of France?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	taskRunCmd.Flags().StringVar(&taskInput, "input", "", "supporting input text for the task")
	taskRunCmd.Flags().StringVar(&taskMode, "mode", "", "execution mode override (offline or cloud)")
	taskRunCmd.Flags().StringVar(&taskModel, "model", "", "model label override")
	taskRunCmd.Flags().BoolVar(&taskAsJSON, "json", false, "print the raw experience as JSON")
	taskCmd.AddCommand(taskRunCmd)
}

// TaskRequest matches internal/orchestrator TaskRequest.
type TaskRequest struct {
	Description string `json:"description"`
	Input       string `json:"input,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Model       string `json:"model,omitempty"`
}

// Phase matches internal/experience ReasoningPhase.
type Phase struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Content   string         `json:"content"`
	Details   map[string]any `json:"details,omitempty"`
}

// Experience matches internal/experience Experience.
type Experience struct {
	ID              string `json:"id"`
	TaskDescription string `json:"task_description"`
	Input           string `json:"input"`
	Output          string `json:"output"`
	Mode            string `json:"mode"`
	Model           string `json:"model"`
	Reasoning       struct {
		Phases []Phase `json:"phases"`
	} `json:"reasoning"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// TaskResponse matches internal/http TaskResponse.
type TaskResponse struct {
	Experience *Experience `json:"experience,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func runTask(cmd *cobra.Command, args []string) error {
	req := TaskRequest{
		Description: strings.Join(args, " "),
		Input:       taskInput,
		Mode:        taskMode,
		Model:       taskModel,
	}

	var resp TaskResponse
	if err := doJSON(http.MethodPost, "/api/v1/tasks", req, &resp); err != nil {
		return err
	}

	if taskAsJSON {
		return printJSON(resp)
	}

	exp := resp.Experience
	if exp == nil {
		return fmt.Errorf("server returned no experience: %s", resp.Error)
	}

	for _, phase := range exp.Reasoning.Phases {
		fmt.Printf("[%s] %s\n\n", phase.Type, phase.Content)
	}
	fmt.Printf("Result: %s\n", exp.Output)
	fmt.Printf("Success: %v  Mode: %s  Model: %s  ID: %s\n",
		exp.Success, exp.Mode, exp.Model, exp.ID)
	return nil
}
