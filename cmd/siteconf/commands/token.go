package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/siteconf/internal/backup"
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/guard"
)

var (
	tokenCredential bool
	tokenSubject    string
	tokenTTL        time.Duration
)

func init() {
	tokenCmd.Flags().BoolVar(&tokenCredential, "credential", false,
		"issue an administrator credential instead of an action token")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator",
		"credential subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", guard.DefaultCredentialTTL,
		"credential lifetime")
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token [action]",
	Short: "Issue tokens for the snapshot HTTP API",
	Long: `Token prints a signed token for 'siteconf serve'.

With --credential it prints a bearer credential granting administrator
access. Otherwise it prints a single-use action token for one of: ` +
		strings.Join(backup.Actions, ", ") + `.

Tokens are signed with security.secret, which must be configured.`,
	Example: `  # Credential for the Authorization header
  siteconf token --credential --subject ops --ttl 8h

  # One-shot token for an import request
  siteconf token import

  See Also: siteconf serve`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := ""
		if len(args) > 0 {
			action = args[0]
		}
		return runTokenWithWriter(cmd.OutOrStdout(), action, tokenCredential, tokenSubject, tokenTTL)
	},
}

func runTokenWithWriter(w io.Writer, action string, credential bool, subject string, ttl time.Duration) error {
	cfg := currentConfig()
	if err := requireSecret(cfg); err != nil {
		return err
	}
	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}

	var token string
	switch {
	case credential:
		if action != "" {
			return errors.NewUserError(errors.New("--credential does not take an action"), "")
		}
		token, err = signer.IssueCredential(subject, ttl, guard.CapabilityAdmin)
	case slices.Contains(backup.Actions, action):
		token, err = signer.IssueToken(action)
	default:
		return errors.NewUserError(
			errors.Newf("invalid action %q", action),
			"Valid actions: "+strings.Join(backup.Actions, ", "))
	}
	if err != nil {
		return errors.NewSystemError(err, "")
	}

	fmt.Fprintln(w, token)
	return nil
}
