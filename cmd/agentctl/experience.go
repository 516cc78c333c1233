package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	expFilterModel string
	expFilterMode  string
	expAsJSON      bool
)

var experienceCmd = &cobra.Command{
	Use:     "experience",
	Aliases: []string{"exp"},
	Short:   "Query and manage stored experiences",
}

var expListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored experiences",
	Long: `List stored experiences, optionally filtered by model or mode.

Examples:
  agentctl experience list
  agentctl experience list --mode cloud
  agentctl experience list --model gpt-4o --json`,
	RunE: runExpList,
}

var expSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search experiences by substring",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpSearch,
}

var expShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one experience in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpShow,
}

var expStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate experience statistics",
	RunE:  runExpStats,
}

var expExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export all experiences as JSON (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExpExport,
}

var expRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete one experience",
	Args:  cobra.ExactArgs(1),
	RunE:  runExpRm,
}

var expClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all experiences",
	RunE:  runExpClear,
}

func init() {
	expListCmd.Flags().StringVar(&expFilterModel, "model", "", "filter by exact model label")
	expListCmd.Flags().StringVar(&expFilterMode, "mode", "", "filter by mode (offline or cloud)")
	expListCmd.Flags().BoolVar(&expAsJSON, "json", false, "print raw JSON")
	expSearchCmd.Flags().BoolVar(&expAsJSON, "json", false, "print raw JSON")

	experienceCmd.AddCommand(expListCmd)
	experienceCmd.AddCommand(expSearchCmd)
	experienceCmd.AddCommand(expShowCmd)
	experienceCmd.AddCommand(expStatsCmd)
	experienceCmd.AddCommand(expExportCmd)
	experienceCmd.AddCommand(expRmCmd)
	experienceCmd.AddCommand(expClearCmd)
}

// StatsResponse matches internal/http StatsResponse.
type StatsResponse struct {
	Stats struct {
		TotalExperiences int       `json:"total_experiences"`
		TotalMemorySize  int64     `json:"total_memory_size"`
		LastCleanup      time.Time `json:"last_cleanup"`
	} `json:"stats"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

func runExpList(cmd *cobra.Command, args []string) error {
	path := "/api/v1/experiences"
	switch {
	case expFilterModel != "":
		path += "?model=" + url.QueryEscape(expFilterModel)
	case expFilterMode != "":
		path += "?mode=" + url.QueryEscape(expFilterMode)
	}

	var list []Experience
	if err := doJSON(http.MethodGet, path, nil, &list); err != nil {
		return err
	}
	if expAsJSON {
		return printJSON(list)
	}
	printExperienceTable(list)
	return nil
}

func runExpSearch(cmd *cobra.Command, args []string) error {
	path := "/api/v1/experiences/search?q=" + url.QueryEscape(args[0])
	var list []Experience
	if err := doJSON(http.MethodGet, path, nil, &list); err != nil {
		return err
	}
	if expAsJSON {
		return printJSON(list)
	}
	printExperienceTable(list)
	return nil
}

func runExpShow(cmd *cobra.Command, args []string) error {
	var exp Experience
	if err := doJSON(http.MethodGet, "/api/v1/experiences/"+url.PathEscape(args[0]), nil, &exp); err != nil {
		return err
	}
	return printJSON(exp)
}

func runExpStats(cmd *cobra.Command, args []string) error {
	var stats StatsResponse
	if err := doJSON(http.MethodGet, "/api/v1/experiences/stats", nil, &stats); err != nil {
		return err
	}

	fmt.Printf("Experiences:  %d\n", stats.Stats.TotalExperiences)
	fmt.Printf("Stored bytes: %d\n", stats.Stats.TotalMemorySize)
	fmt.Printf("Successful:   %d\n", stats.Successful)
	fmt.Printf("Failed:       %d\n", stats.Failed)
	fmt.Printf("Success rate: %.1f%%\n", stats.SuccessRate)
	if !stats.Stats.LastCleanup.IsZero() {
		fmt.Printf("Last cleanup: %s\n", stats.Stats.LastCleanup.Format(time.RFC3339))
	}
	return nil
}

func runExpExport(cmd *cobra.Command, args []string) error {
	var records []Experience
	if err := doJSON(http.MethodGet, "/api/v1/experiences/export", nil, &records); err != nil {
		return err
	}

	if len(args) == 0 {
		return printJSON(records)
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[0], err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d experience(s) to %s\n", len(records), args[0])
	return nil
}

func runExpRm(cmd *cobra.Command, args []string) error {
	if err := doJSON(http.MethodDelete, "/api/v1/experiences/"+url.PathEscape(args[0]), nil, nil); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runExpClear(cmd *cobra.Command, args []string) error {
	if err := doJSON(http.MethodDelete, "/api/v1/experiences", nil, nil); err != nil {
		return err
	}
	fmt.Println("All experiences deleted")
	return nil
}

func printExperienceTable(list []Experience) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tMODE\tMODEL\tOK\tTASK")
	for _, exp := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n",
			shortID(exp.ID),
			exp.Timestamp.Format("2006-01-02 15:04"),
			exp.Mode,
			exp.Model,
			exp.Success,
			truncate(exp.TaskDescription, 48))
	}
	_ = w.Flush()
	if len(list) == 0 {
		fmt.Println("(no experiences)")
	}
}

// shortID abbreviates a UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
