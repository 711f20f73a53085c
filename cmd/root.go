package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"teascan/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "teascan",
	Short: "teascan - read drink labels and receipts into record fields",
	Long: `teascan turns a photo of a drink label or receipt into structured
fields: brand, drink name, sugar level, ice level and price.

Recognition tries the configured cloud OCR provider first and falls back
to the local Tesseract engine when the cloud is unreachable or refuses
the request. Fields that cannot be read are reported as missing.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("teascan executed")

		fmt.Println("Welcome to teascan!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
