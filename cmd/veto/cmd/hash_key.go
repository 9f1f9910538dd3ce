package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vetoguard/veto/internal/service"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [secret]",
	Short: "Hash a sync API key or bundle passphrase with argon2id",
	Long: `Generate an Argon2id PHC-format hash of a secret (sync.sync_api_key or a
signed-bundle private key's unlock passphrase) for storage at rest.

Example:
  veto hash-key "my-sync-api-key"

Security note: the secret appears in shell history. Prefer an environment
variable: veto hash-key "$VETO_SYNC_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := service.HashSecret(args[0])
		if err != nil {
			return fmt.Errorf("hash secret: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
