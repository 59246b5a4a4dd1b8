package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage background tasks (admin)",
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
