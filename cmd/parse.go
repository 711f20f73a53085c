package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"teascan/internal/config"
	"teascan/internal/logger"
	"teascan/internal/parser"
)

var parseCmd = &cobra.Command{
	Use:   "parse [text-file|-]",
	Short: "Extract record fields from OCR text",
	Long: `Run the field extractor on text that was already recognized, one OCR line
per text line. Reads standard input when no file or "-" is given.

Brands from CUSTOM_BRANDS are matched after the built-in list.`,
	Example: `  # Parse saved OCR output
  teascan parse receipt.txt

  # Parse from a pipe
  printf '喜茶\n多肉葡萄\n少糖\n少冰\n￥28\n' | teascan parse --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Bool("json", false, "Output as JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("parse")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var in io.Reader = os.Stdin
	source := "stdin"
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open text file: %w", err)
		}
		defer f.Close()
		in, source = f, args[0]
	}

	text, err := io.ReadAll(io.LimitReader(in, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read text: %w", err)
	}

	// Parsing needs no cloud credentials.
	var opts []parser.Option
	if cfg, err := config.LoadLocalOnly(); err != nil {
		log.Warn().Err(err).Msg("Could not load configuration, using built-in brands only")
	} else {
		opts = append(opts, parser.WithBrands(cfg.CustomBrands...))
	}

	info := parser.New(opts...).Parse(string(text))

	log.Info().
		Str("source", source).
		Strs("filled", info.FilledFields()).
		Msg("Text parsed")

	if jsonOutput {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printFields(info)
	return nil
}
