package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/operandhq/lpr/pkg/client"
)

var auditLogJTI string

// auditLogCmd represents the audit log command
var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit ledger entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching audit ledger...")
		entries, _, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
			JTI:   auditLogJTI,
			Limit: limit,
		})
		if err != nil {
			return err
		}

		log.Info().Msgf("Retrieved %d audit entries", len(entries))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Seq", "Time", "Type", "JTI", "Reason", "Entry Hash",
		})

		for _, e := range entries {
			t.AppendRow(table.Row{
				e.SequenceNo,
				e.Event.Time.Format(time.RFC3339),
				e.Event.Type,
				truncate(e.Event.JTI, 30),
				e.Event.Reason,
				truncate(e.EntryHash, 16),
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().IntP("limit", "n", 25, "Number of audit entries to retrieve")
	auditLogCmd.Flags().StringVar(&auditLogJTI, "jti", "", "Only show entries for this jti")
}
