package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/nodeflow/pkg/storage"
)

const maxCredentialSize = 1 << 20 // 1MB limit for all credential inputs

// credentialStore is replaced in tests
var credentialStore = func() storage.CredentialStore {
	return storage.NewKeyringCredentialStore(slog.Default())
}

// isOnlyWhitespace checks if a byte slice contains only Unicode whitespace characters
// without allocating strings. Returns true if empty or whitespace-only.
func isOnlyWhitespace(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if !unicode.IsSpace(r) {
			return false
		}
		i += size
	}
	return true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// NewCredentialCommand creates the credential management command
func NewCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage HTTP credentials",
		Long: `Manage credentials for HTTP nodes securely in the system keyring.
Credentials are stored in your system's native credential store (Keychain on macOS,
Credential Manager on Windows, Secret Service on Linux) and never in plain text files.

Set http.credential in config.yaml to the key whose value is sent as a bearer
token with every HTTP request a graph makes.`,
	}

	cmd.AddCommand(newCredentialAddCommand())
	cmd.AddCommand(newCredentialGetCommand())
	cmd.AddCommand(newCredentialRemoveCommand())
	cmd.AddCommand(newCredentialListCommand())

	return cmd
}

// newCredentialAddCommand creates the credential add subcommand
func newCredentialAddCommand() *cobra.Command {
	var (
		value    string
		useStdin bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "add <key>",
		Short: "Add a credential",
		Long: `Add a credential to the system keyring.

Examples:
  # Interactive prompt (recommended for local use)
  nodeflow credential add api-token

  # From stdin (recommended for automation)
  printf '%s' "$API_TOKEN" | nodeflow credential add api-token --stdin

  # From the command line (visible in shell history)
  nodeflow credential add api-token --value secret123

Note:
  - All input methods have a 1MB maximum credential size limit
  - --stdin reads until EOF; only trailing CR/LF characters are removed
  - Whitespace-only credentials are rejected`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			store := credentialStore()
			out := cmd.OutOrStdout()

			if _, err := store.Get(key); err == nil && !force {
				_, _ = fmt.Fprintf(out, "Warning: Credential '%s' already exists.\n", key)
				_, _ = fmt.Fprint(out, "Overwrite? [y/N]: ")
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					_, _ = fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			var credValue string
			switch {
			case useStdin:
				inputBytes, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxCredentialSize+1))
				defer zero(inputBytes)
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
				if len(inputBytes) > maxCredentialSize {
					return fmt.Errorf("credential value exceeds maximum size of %d bytes", maxCredentialSize)
				}
				trimmed := bytes.TrimRight(inputBytes, "\r\n")
				if len(trimmed) == 0 {
					return errors.New("credential value cannot be empty")
				}
				if isOnlyWhitespace(trimmed) {
					return errors.New("credential cannot contain only whitespace characters")
				}
				credValue = string(trimmed)

			case value != "":
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: Using --value flag exposes credential in shell history.")
				if len(value) > maxCredentialSize {
					return fmt.Errorf("credential value exceeds maximum size of %d bytes", maxCredentialSize)
				}
				if strings.TrimSpace(value) == "" {
					return errors.New("credential cannot contain only whitespace characters")
				}
				credValue = value

			default:
				_, _ = fmt.Fprintf(out, "Enter value for '%s': ", key)
				passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				_, _ = fmt.Fprintln(out)
				defer zero(passwordBytes)
				if err != nil {
					return fmt.Errorf("failed to read credential value: %w", err)
				}
				if len(passwordBytes) > maxCredentialSize {
					return fmt.Errorf("credential value exceeds maximum size of %d bytes", maxCredentialSize)
				}
				if len(passwordBytes) == 0 {
					return errors.New("credential value cannot be empty")
				}
				if isOnlyWhitespace(passwordBytes) {
					return errors.New("credential cannot contain only whitespace characters")
				}
				credValue = string(passwordBytes)
			}

			if err := store.Set(key, credValue); err != nil {
				return fmt.Errorf("failed to store credential: %w", err)
			}

			_, _ = fmt.Fprintf(out, "✓ Credential '%s' added\n", key)
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Credential value (optional - will prompt securely if omitted)")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read credential value from stdin")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing credential without asking")
	cmd.MarkFlagsMutuallyExclusive("stdin", "value")

	return cmd
}

// newCredentialGetCommand creates the credential get subcommand
func newCredentialGetCommand() *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Check a credential",
		Long: `Check that a credential is stored. The value is masked unless --show is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := credentialStore().Get(args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("credential not found: %s", args[0])
			}
			if err != nil {
				return err
			}
			if show {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), secret)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], maskSecret(secret))
			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "Print the credential value")

	return cmd
}

// newCredentialRemoveCommand creates the credential remove subcommand
func newCredentialRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <key>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a credential",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := credentialStore().Delete(args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("credential not found: %s", args[0])
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Credential '%s' removed\n", args[0])
			return nil
		},
	}
}

// newCredentialListCommand creates the credential list subcommand
func newCredentialListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credentials",
		Long: `List stored credential keys. Values are never shown.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := credentialStore().List()
			if err != nil {
				return fmt.Errorf("failed to list credentials: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				_, _ = fmt.Fprintln(out, "No credentials configured.")
				_, _ = fmt.Fprintln(out, "\nAdd a credential with: nodeflow credential add <key>")
				return nil
			}

			sort.Strings(keys)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "CREDENTIAL KEY\tSTATUS\tHTTP")
			_, _ = fmt.Fprintln(w, "──────────────\t──────\t────")
			for _, k := range keys {
				inUse := ""
				if k == settings.HTTP.Credential {
					inUse = "bearer"
				}
				_, _ = fmt.Fprintf(w, "%s\t(set)\t%s\n", k, inUse)
			}
			return w.Flush()
		},
	}
}

// maskSecret keeps at most the last four characters of long secrets
func maskSecret(s string) string {
	n := utf8.RuneCountInString(s)
	if n <= 8 {
		return strings.Repeat("*", n)
	}
	r := []rune(s)
	return strings.Repeat("*", n-4) + string(r[n-4:])
}
