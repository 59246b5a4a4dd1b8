package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/operandhq/lpr/internal/api"
)

var (
	loginService string
	loginURL     string
	loginTimeout time.Duration
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run an observed login and print the session handle",
	Long: `Starts a login capture on the server and polls until it completes.
The resulting session id is what 'lpr issue' consumes; the credential itself
never leaves the capture driver.`,
	Example: `  # Capture a login for the configured "shopify" service
  lpr login --service shopify`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		captureID, correlation, err := cli.StartLogin(cmd.Context(), api.StartLoginPayload{
			ServiceName:    loginService,
			LoginURL:       loginURL,
			TimeoutSeconds: int64(loginTimeout / time.Second),
		})
		if err != nil {
			log.Error().Msgf("%s failed to start login capture (correlation ID: %s)", redCross, correlation)
			log.Error().Msgf("error: %v", err)
			return BeQuietError{}
		}
		log.Info().Msgf("capture %s started, waiting for login...", captureID)

		deadline := time.Now().Add(loginTimeout)
		for {
			res, _, err := cli.LoginResult(cmd.Context(), captureID)
			if err != nil {
				return fmt.Errorf("polling capture: %w", err)
			}
			if res.Done {
				if !res.Success {
					log.Error().Msgf("%s login capture failed: %s", redCross, res.Error)
					return BeQuietError{}
				}
				log.Info().Msgf("%s login captured (method: %s, confidence: %.2f)",
					greenCheck, res.Method, res.Confidence)
				fmt.Println(res.SessionID)
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("login capture timed out after %s", loginTimeout)
			}
			time.Sleep(2 * time.Second)
		}
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginService, "service", "", "The target service to log in to")
	loginCmd.Flags().StringVar(&loginURL, "url", "", "Override the login page URL")
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 2*time.Minute, "How long to wait for the login")
	_ = loginCmd.MarkFlagRequired("service")
}
