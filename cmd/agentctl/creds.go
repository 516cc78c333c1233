package main

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage provider credentials",
	Long: `Manage API credentials for remote completion providers
(openai, anthropic, gemini). Secrets are stored by the agentd server and
never echoed back.`,
}

var credsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers with stored credentials",
	RunE:  runCredsList,
}

var credsSetCmd = &cobra.Command{
	Use:   "set <provider> [secret]",
	Short: "Store a credential for a provider",
	Long: `Store a credential for a provider. When the secret argument is
omitted it is read from stdin, which keeps it out of shell history.

Examples:
  agentctl creds set openai sk-...
  echo "$OPENAI_API_KEY" | agentctl creds set openai`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCredsSet,
}

var credsRmCmd = &cobra.Command{
	Use:   "rm <provider>",
	Short: "Delete a stored credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredsRm,
}

var credsVerifyCmd = &cobra.Command{
	Use:   "verify <provider>",
	Short: "Verify a stored credential against the provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredsVerify,
}

func init() {
	credsCmd.AddCommand(credsListCmd)
	credsCmd.AddCommand(credsSetCmd)
	credsCmd.AddCommand(credsRmCmd)
	credsCmd.AddCommand(credsVerifyCmd)
}

// CredentialsResponse matches internal/http CredentialsResponse.
type CredentialsResponse struct {
	Providers []string `json:"providers"`
}

// VerifyResponse matches internal/http VerifyResponse.
type VerifyResponse struct {
	Provider string `json:"provider"`
	Valid    bool   `json:"valid"`
}

func runCredsList(cmd *cobra.Command, args []string) error {
	var resp CredentialsResponse
	if err := doJSON(http.MethodGet, "/api/v1/credentials", nil, &resp); err != nil {
		return err
	}
	if len(resp.Providers) == 0 {
		fmt.Println("(no credentials stored)")
		return nil
	}
	for _, p := range resp.Providers {
		fmt.Println(p)
	}
	return nil
}

func runCredsSet(cmd *cobra.Command, args []string) error {
	provider := args[0]

	var secret string
	if len(args) == 2 {
		secret = args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read secret from stdin: %w", err)
		}
		secret = strings.TrimSpace(line)
	}
	if secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}

	body := map[string]string{"secret": secret}
	if err := doJSON(http.MethodPut, "/api/v1/credentials/"+url.PathEscape(provider), body, nil); err != nil {
		return err
	}
	fmt.Printf("Credential stored for %s\n", provider)
	return nil
}

func runCredsRm(cmd *cobra.Command, args []string) error {
	if err := doJSON(http.MethodDelete, "/api/v1/credentials/"+url.PathEscape(args[0]), nil, nil); err != nil {
		return err
	}
	fmt.Printf("Credential deleted for %s\n", args[0])
	return nil
}

func runCredsVerify(cmd *cobra.Command, args []string) error {
	var resp VerifyResponse
	path := "/api/v1/credentials/" + url.PathEscape(args[0]) + "/verify"
	if err := doJSON(http.MethodPost, path, nil, &resp); err != nil {
		return err
	}
	if resp.Valid {
		fmt.Printf("%s: credential is valid\n", resp.Provider)
		return nil
	}
	fmt.Printf("%s: credential was rejected by the provider\n", resp.Provider)
	os.Exit(1)
	return nil
}
