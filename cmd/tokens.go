package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var tokensSubject string

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list", "ls"},
	Short:   "List active tokens (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		tokens, _, err := cli.ListActiveTokens(cmd.Context(), tokensSubject)
		if err != nil {
			return fmt.Errorf("listing tokens: %w", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"JTI", "Subject", "Service", "Scopes", "Expires", "OK", "Fail"})

		for _, tok := range tokens {
			expires := time.Until(tok.ExpiresAt).Round(time.Second)
			t.AppendRow(table.Row{
				color.New(color.Bold).Sprint(truncate(tok.JTI, 30)),
				truncate(tok.Subject, 25),
				tok.Service,
				len(tok.Scopes),
				fmt.Sprintf("in %s", expires),
				tok.Usage.VerifyOK,
				tok.Usage.VerifyFail,
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&tokensSubject, "subject", "", "Only list tokens for this subject")
}
