package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "codemind",
	Short: "Semantic code search with background repository indexing",
	Long: `Codemind indexes git repositories into a vector store and serves
semantically ranked code search over them. Indexing runs as background
jobs whose lifecycle is tracked and exposed for polling.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".codemind.yml", "config file path")
}
