package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aragora",
	Short: "aragora - multi-agent debate orchestrator",
	Long: `aragora runs structured, multi-round debates between LLM-backed
agents (propose, critique, revise, vote, judge) and serves the result
over an HTTP/WebSocket event stream.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Global flags can be added here
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (accepted but not read; serve and migrate load .env from the working directory)")
}
