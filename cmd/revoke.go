package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	revokeJTI    string
	revokeReason string
)

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke an issued token",
	Long: `Invalidates a token immediately. Revocation is permanent; verifications
after this call fail with REVOKED. Revoking an already revoked token
succeeds.`,
	Example: `  lpr revoke --jti 01J8ZK... --reason "user requested"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		correlation, err := cli.RevokeToken(cmd.Context(), revokeJTI, revokeReason)
		if err != nil {
			log.Error().Msgf("%s failed to revoke token (correlation ID: %s)", redCross, correlation)
			log.Error().Msgf("error: %v", err)
			return BeQuietError{}
		}

		log.Info().Msgf("%s token revoked successfully", greenCheck)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(revokeCmd)

	revokeCmd.Flags().StringVar(&revokeJTI, "jti", "", "The jti of the token to revoke")
	revokeCmd.Flags().StringVar(&revokeReason, "reason", "", "Why the token is being revoked")
	_ = revokeCmd.MarkFlagRequired("jti")
}
