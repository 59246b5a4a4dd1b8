package cmd

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/operandhq/lpr/internal/api"
)

var (
	verifyToken  string
	verifyMethod string
	verifyURL    string
	verifyOrigin string
	verifyAttrs  []string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check whether a proxied request would be permitted",
	Long: `Submits a concrete request (method, url, origin, device) for verification
against a token and prints the decision. A deny prints the reason code and
exits non-zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		fingerprint, err := parseFingerprint(verifyAttrs)
		if err != nil {
			return err
		}

		res, correlation, err := cli.Verify(cmd.Context(), api.VerifyPayload{
			Token:       verifyToken,
			Method:      verifyMethod,
			URL:         verifyURL,
			Origin:      verifyOrigin,
			Fingerprint: fingerprint,
		})
		if err != nil {
			log.Error().Msgf("%s verification errored (correlation ID: %s)", redCross, correlation)
			log.Error().Msgf("error: %v", err)
			return BeQuietError{}
		}

		if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
			return err
		}
		if !res.Valid {
			log.Warn().Msgf("%s denied: %s", redCross, res.Reason)
			return BeQuietError{}
		}
		log.Info().Msgf("%s allowed", greenCheck)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyToken, "token", "", "The capability token")
	verifyCmd.Flags().StringVarP(&verifyMethod, "method", "X", "GET", "HTTP method of the proxied request")
	verifyCmd.Flags().StringVar(&verifyURL, "url", "", "Full URL of the proxied request")
	verifyCmd.Flags().StringVar(&verifyOrigin, "origin", "", "Origin the request is made from")
	verifyCmd.Flags().StringArrayVar(&verifyAttrs, "device-attr", nil, "Device fingerprint attribute as key=value (repeatable)")
	_ = verifyCmd.MarkFlagRequired("token")
	_ = verifyCmd.MarkFlagRequired("url")
	_ = verifyCmd.MarkFlagRequired("origin")
}
