package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/operandhq/lpr/internal/api"
	"github.com/operandhq/lpr/internal/core"
)

var (
	issueSessionID  string
	issueService    string
	issueScopes     []string
	issueOrigins    []string
	issueTTL        int64
	issuePurpose    string
	issueConsent    bool
	issueAttrs      []string
	issueRPS        float64
	issueBurst      int
	issueDevMatch   bool
	issueConcurrent bool
	issueJSON       bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a capability token for a captured session",
	Example: `  # Read-only access to the product catalog for one hour
  lpr issue --session sess_xyz \
    --scope "GET https://api.shopify.com/admin/products/*" \
    --origin https://agent.example.com \
    --ttl 3600 --purpose "price monitoring" --consent`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		scopes := make([]core.Scope, 0, len(issueScopes))
		for _, s := range issueScopes {
			scope, err := parseScope(s)
			if err != nil {
				return err
			}
			scopes = append(scopes, scope)
		}

		fingerprint, err := parseFingerprint(issueAttrs)
		if err != nil {
			return err
		}

		policy := core.DefaultPolicy()
		policy.RateLimitRPS = issueRPS
		policy.RateLimitBurst = issueBurst
		policy.RequireDeviceMatch = issueDevMatch
		policy.AllowConcurrent = issueConcurrent

		res, correlation, err := cli.IssueToken(cmd.Context(), api.IssuePayload{
			SessionID:   issueSessionID,
			Service:     issueService,
			Scopes:      scopes,
			Origins:     issueOrigins,
			TTLSeconds:  issueTTL,
			Policy:      &policy,
			Fingerprint: fingerprint,
			Purpose:     issuePurpose,
			Consent:     issueConsent,
		})
		if err != nil {
			log.Error().Msgf("%s failed to issue token (correlation ID: %s)", redCross, correlation)
			log.Error().Msgf("error: %v", err)
			return BeQuietError{}
		}

		log.Info().Msgf("%s token %s issued, expires %s", greenCheck, res.JTI, res.ExpiresAt)
		if issueJSON {
			return json.NewEncoder(os.Stdout).Encode(res)
		}
		fmt.Println(res.Token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(issueCmd)

	issueCmd.Flags().StringVar(&issueSessionID, "session", "", "Session id from 'lpr login'")
	issueCmd.Flags().StringVar(&issueService, "service", "", "Target service the session must belong to")
	issueCmd.Flags().StringArrayVar(&issueScopes, "scope", nil, `Permitted action as "METHOD PATTERN [CONSTRAINT]" (repeatable)`)
	issueCmd.Flags().StringArrayVar(&issueOrigins, "origin", nil, "Permitted request origin (repeatable)")
	issueCmd.Flags().Int64Var(&issueTTL, "ttl", 3600, "Token lifetime in seconds")
	issueCmd.Flags().StringVar(&issuePurpose, "purpose", "", "Free-text purpose, recorded in the audit trail")
	issueCmd.Flags().BoolVar(&issueConsent, "consent", false, "Confirm the user consented to this grant")
	issueCmd.Flags().StringArrayVar(&issueAttrs, "device-attr", nil, "Device fingerprint attribute as key=value (repeatable)")
	issueCmd.Flags().Float64Var(&issueRPS, "rps", 5, "Rate limit: sustained requests per second")
	issueCmd.Flags().IntVar(&issueBurst, "burst", 10, "Rate limit: burst capacity")
	issueCmd.Flags().BoolVar(&issueDevMatch, "require-device-match", true, "Reject use from other devices")
	issueCmd.Flags().BoolVar(&issueConcurrent, "allow-concurrent", true, "Permit overlapping in-flight requests")
	issueCmd.Flags().BoolVar(&issueJSON, "json", false, "Print the full issue response as JSON")
	_ = issueCmd.MarkFlagRequired("session")
	_ = issueCmd.MarkFlagRequired("scope")
	_ = issueCmd.MarkFlagRequired("origin")
}
