package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load(".env")

	var cfgPath string
	root := &cobra.Command{
		Use:           "paperlens",
		Short:         "Upload a research paper and explore a Gemini-generated analysis of it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("PAPERLENS_CONFIG"), "path to config.json")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(cacheCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
