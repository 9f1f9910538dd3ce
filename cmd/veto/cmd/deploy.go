package cmd

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vetoguard/veto/internal/domain/bundle"
	"github.com/vetoguard/veto/internal/service"
)

var (
	deployRulesRoot      string
	deployKeyFile        string
	deployKeyID          string
	deployPassphraseHash string
	deployOut            string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Sign and publish a rule bundle",
	Long: `Load the rules root, canonicalize it, sign it with an Ed25519 private
key, and write the resulting signed bundle (spec §4.13). If --passphrase-hash
is set, VETO_DEPLOY_PASSPHRASE must verify against it before the key file is
read, protecting the private key at rest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := loadRuleSet(deployRulesRoot)
		if err != nil {
			return err
		}

		priv, err := loadDeployKey()
		if err != nil {
			return wrapConfigErr(err)
		}

		keyID := deployKeyID
		if keyID == "" {
			keyID = uuid.NewString()
		}

		b, err := bundle.CreateSignedBundle(rs, priv, keyID, time.Now())
		if err != nil {
			return fmt.Errorf("create signed bundle: %w", err)
		}

		out, err := json.MarshalIndent(b, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal bundle: %w", err)
		}

		if deployOut == "" || deployOut == "-" {
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}
		if err := os.WriteFile(deployOut, out, 0o600); err != nil {
			return fmt.Errorf("write bundle to %q: %w", deployOut, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote signed bundle (key %s, version %d) to %s\n", keyID, b.Version, deployOut)
		return nil
	},
}

// loadDeployKey reads and decodes the Ed25519 private key, verifying the
// operator-supplied passphrase against --passphrase-hash first when set.
func loadDeployKey() (ed25519.PrivateKey, error) {
	if deployKeyFile == "" {
		return nil, fmt.Errorf("--key is required")
	}

	if deployPassphraseHash != "" {
		passphrase := os.Getenv("VETO_DEPLOY_PASSPHRASE")
		ok, err := service.VerifySecret(passphrase, deployPassphraseHash)
		if err != nil {
			return nil, fmt.Errorf("verify deploy passphrase: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("VETO_DEPLOY_PASSPHRASE does not match --passphrase-hash")
		}
	}

	raw, err := os.ReadFile(deployKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file %q: %w", deployKeyFile, err)
	}
	key, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode key file %q: %w", deployKeyFile, err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key file %q: expected %d bytes, got %d", deployKeyFile, ed25519.PrivateKeySize, len(key))
	}
	return ed25519.PrivateKey(key), nil
}

func init() {
	deployCmd.Flags().StringVar(&deployRulesRoot, "rules", "", "rules root directory (default: ./rules)")
	deployCmd.Flags().StringVar(&deployKeyFile, "key", "", "path to a base64-encoded Ed25519 private key")
	deployCmd.Flags().StringVar(&deployKeyID, "key-id", "", "public key id to stamp the bundle with (default: a generated uuid)")
	deployCmd.Flags().StringVar(&deployPassphraseHash, "passphrase-hash", "", "argon2id hash the VETO_DEPLOY_PASSPHRASE env var must verify against")
	deployCmd.Flags().StringVar(&deployOut, "out", "", "output file path (default: stdout)")
	rootCmd.AddCommand(deployCmd)
}
