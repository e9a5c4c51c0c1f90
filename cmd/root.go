package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eraycc/g4f-azure/pkg/logutil"
	"github.com/eraycc/g4f-azure/pkg/version"
)

var rootLogLevel string

var rootCmd = &cobra.Command{
	Use:   "g4f-azure",
	Short: "OpenAI-compatible proxy for the g4f Azure upstream",
	Long:  "OpenAI-compatible proxy that manages a pool of short-lived encrypted upstream credentials and forwards chat, image, and audio requests.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "loglevel", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if rootLogLevel != "" {
			return logutil.Configure(rootLogLevel)
		}
		return nil
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "g4f-azure "+version.String())
		},
	})
}
