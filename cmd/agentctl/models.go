package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage downloaded model files",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded models",
	RunE:  runModelsList,
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download <url> <name>",
	Short: "Download a model file to the server",
	Long: `Download a model file to the agentd server's asset directory.
The server rejects downloads below its configured minimum size.

Examples:
  agentctl models download https://example.com/tiny.gguf tiny.gguf`,
	Args: cobra.ExactArgs(2),
	RunE: runModelsDownload,
}

var modelsActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Mark a model as the active one for local execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsActivate,
}

var modelsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a downloaded model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsRm,
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDownloadCmd)
	modelsCmd.AddCommand(modelsActivateCmd)
	modelsCmd.AddCommand(modelsRmCmd)
}

// AssetRecord matches internal/assets AssetRecord.
type AssetRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Digest    string    `json:"digest"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func runModelsList(cmd *cobra.Command, args []string) error {
	var list []AssetRecord
	if err := doJSON(http.MethodGet, "/api/v1/models", nil, &list); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tACTIVE\tDOWNLOADED")
	for _, rec := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
			shortID(rec.ID),
			rec.Name,
			formatBytes(rec.SizeBytes),
			rec.Active,
			rec.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
	if len(list) == 0 {
		fmt.Println("(no models downloaded)")
	}
	return nil
}

func runModelsDownload(cmd *cobra.Command, args []string) error {
	body := map[string]string{"url": args[0], "name": args[1]}

	fmt.Fprintf(os.Stderr, "Downloading %s...\n", args[1])
	var rec AssetRecord
	if err := doJSON(http.MethodPost, "/api/v1/models", body, &rec); err != nil {
		return err
	}

	fmt.Printf("Downloaded %s (%s)\n", rec.Name, formatBytes(rec.SizeBytes))
	fmt.Printf("ID:     %s\n", rec.ID)
	fmt.Printf("SHA256: %s\n", rec.Digest)
	return nil
}

func runModelsActivate(cmd *cobra.Command, args []string) error {
	path := "/api/v1/models/" + url.PathEscape(args[0]) + "/activate"
	if err := doJSON(http.MethodPost, path, nil, nil); err != nil {
		return err
	}
	fmt.Printf("Activated %s\n", args[0])
	return nil
}

func runModelsRm(cmd *cobra.Command, args []string) error {
	if err := doJSON(http.MethodDelete, "/api/v1/models/"+url.PathEscape(args[0]), nil, nil); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

// formatBytes renders a size with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
