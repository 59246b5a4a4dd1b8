package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fingerprintAttrs []string

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Compute the device fingerprint hash for a set of attributes",
	Long: `Computes the canonical fingerprint hash from key=value attributes.
Useful for checking what hash a client-side attribute set binds to; the
server only ever sees and stores this hash.`,
	Example: `  lpr fingerprint --attr user_agent="Mozilla/5.0" --attr timezone=Europe/Berlin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fingerprint, err := parseFingerprint(fingerprintAttrs)
		if err != nil {
			return err
		}
		if fingerprint.Empty() {
			return fmt.Errorf("at least one --attr is required")
		}
		fmt.Println(fingerprint.Hash())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)

	fingerprintCmd.Flags().StringArrayVar(&fingerprintAttrs, "attr", nil, "Fingerprint attribute as key=value (repeatable)")
}
