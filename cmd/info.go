package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show version information of a remote LPR server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		info, _, err := cli.Info(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting server info: %w", err)
		}

		fmt.Printf("service: %s\nversion: %s\ncommit:  %s\nabout:   %s\n",
			info.Service, info.Version, info.CommitHash, info.About)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
