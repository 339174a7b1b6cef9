package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/spf13/cobra"
)

// ErrKeyRejected is returned by login when the server refuses the key.
var ErrKeyRejected = errors.New("the server rejected the API key")

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the server address and API key",
		Long: `Store, remove and inspect the credentials used to reach regassistd.

Servers started without REGASSIST_API_KEYS accept requests without a key;
login then only needs --url.`,
	}

	cmd.AddCommand(authLoginCmd())
	cmd.AddCommand(authLogoutCmd())
	cmd.AddCommand(authStatusCmd())

	return cmd
}

func authLoginCmd() *cobra.Command {
	var (
		apiKey     string
		apiURL     string
		noKey      bool
		skipVerify bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check and store the server URL and API key",
		Long: `Checks the key against the server and stores it with the URL in the
client settings. Without --api-key or --no-key the key is read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" && !noKey {
				key, err := promptKey(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
				apiKey = key
			}
			return runAuthLogin(commandContext(cmd), loginOptions{
				apiKey:     apiKey,
				apiURL:     apiURL,
				skipVerify: skipVerify,
				timeout:    defaultTimeout,
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (rga_...)")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "Server URL")
	cmd.Flags().BoolVar(&noKey, "no-key", false, "The server does not require a key")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "Store the credentials without contacting the server")

	return cmd
}

func promptKey(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "API key (empty if the server has none): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

type loginOptions struct {
	apiKey     string
	apiURL     string
	skipVerify bool
	timeout    time.Duration
}

func runAuthLogin(ctx context.Context, opts loginOptions, w io.Writer) error {
	settings, err := LoadSettings()
	if err != nil {
		return err
	}
	if err := settings.Set(KeyAPIKey, opts.apiKey); err != nil {
		return err
	}
	if err := settings.Set(KeyAPIURL, opts.apiURL); err != nil {
		return err
	}

	if !opts.skipVerify {
		api := NewAPIClientWithConfig(settings.APIKey, settings.APIURL, opts.timeout)
		if err := verifyCredentials(ctx, api); err != nil {
			return err
		}
	}

	if err := SaveSettings(settings); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	if settings.APIKey == "" {
		fmt.Fprintf(w, "Using %s without an API key\n", settings.APIURL)
	} else {
		fmt.Fprintf(w, "Logged in to %s\n", settings.APIURL)
	}
	return nil
}

// verifyCredentials sends a blank search. It passes authentication but is
// rejected before retrieval, so a 400 EMPTY_QUERY proves the key is accepted
// without spending an embedding call.
func verifyCredentials(ctx context.Context, api *APIClient) error {
	_, err := api.Post(ctx, "/search", SearchRequest{Query: ""})
	var apiErr *APIError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr) && apiErr.Code == domain.ErrCodeEmptyQuery:
		return nil
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		return ErrKeyRejected
	default:
		return fmt.Errorf("could not verify credentials against %s: %w", api.baseURL, err)
	}
}

func authLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API key",
		Long:  "Removes the stored API key. Other settings, including the server URL, are kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout(cmd.OutOrStdout())
		},
	}
}

func runAuthLogout(w io.Writer) error {
	settings, err := LoadSettings()
	if err != nil {
		return err
	}
	if settings.APIKey == "" {
		fmt.Fprintln(w, "No stored API key")
		return nil
	}

	settings.APIKey = ""
	if err := SaveSettings(settings); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	fmt.Fprintln(w, "API key removed")
	return nil
}

func authStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the effective credentials and the server state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := Resolve(cmd)
			if err != nil {
				return err
			}
			api := NewAPIClientWithConfig(r.APIKey, r.APIURL, r.Timeout)
			return runAuthStatus(commandContext(cmd), api, r, cmd.OutOrStdout())
		},
	}
}

// AuthStatus is the JSON form of auth status.
type AuthStatus struct {
	APIURL       string       `json:"api_url"`
	URLSource    ValueSource  `json:"api_url_source"`
	APIKey       string       `json:"api_key,omitempty"`
	KeySource    ValueSource  `json:"api_key_source"`
	Reachable    bool         `json:"reachable"`
	Index        *ReadyStatus `json:"index,omitempty"`
	ServerStatus string       `json:"server_status"`
}

func runAuthStatus(ctx context.Context, api *APIClient, r *Resolved, w io.Writer) error {
	status := AuthStatus{
		APIURL:    r.APIURL,
		URLSource: r.Sources[KeyAPIURL],
		KeySource: r.Sources[KeyAPIKey],
	}
	if r.APIKey != "" {
		status.APIKey = maskAPIKey(r.APIKey)
	}

	ready, err := api.Ready(ctx)
	var apiErr *APIError
	switch {
	case err == nil:
		status.Reachable = true
		status.Index = ready
		status.ServerStatus = "ready"
	case errors.As(err, &apiErr):
		status.Reachable = true
		status.ServerStatus = "not ready: " + apiErr.Message
	default:
		status.ServerStatus = "unreachable"
	}

	if r.JSON {
		return writeJSON(w, status)
	}

	fmt.Fprintf(w, "Server:  %s (%s)\n", status.APIURL, status.URLSource)
	if status.APIKey == "" {
		fmt.Fprintln(w, "API key: none")
	} else {
		fmt.Fprintf(w, "API key: %s (%s)\n", status.APIKey, status.KeySource)
	}
	fmt.Fprintf(w, "Status:  %s\n", status.ServerStatus)
	if ready != nil {
		fmt.Fprintf(w, "Index:   %s, %d sections, %s\n", ready.IndexVersion, ready.Rows, ready.EmbeddingModel)
	}
	return nil
}

func maskAPIKey(key string) string {
	if len(key) < 12 {
		return "***"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
