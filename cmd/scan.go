package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"teascan/internal/logger"
	"teascan/pkg/models"
	"teascan/pkg/services"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image-file]",
	Short: "Read brand, drink, sugar, ice and price from a label or receipt photo",
	Long: `Recognize a photographed drink label or receipt and extract its record fields.

The photo is resized and sent to the cloud OCR provider. If the provider
cannot be reached or rejects the request, the photo is binarized and read
by the local Tesseract engine instead. The recognized text is then parsed
into brand, drink name, sugar level, ice level and price.

Environment variables:
  BAIDU_API_KEY / BAIDU_SECRET_KEY - Baidu OCR client credentials
  CLOUD_OCR_PROVIDER - baidu (default), google or none
  TESSERACT_LANGUAGE - Tesseract languages, e.g. chi_sim+eng
  CUSTOM_BRANDS - Extra brand names, comma separated`,
	Example: `  # Scan a receipt
  teascan scan receipt.jpg

  # JSON output with progress on stderr
  teascan scan label.png --json --progress

  # Offline scan with the local engine only
  teascan scan label.png --local-only`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().Bool("progress", false, "Print progress to stderr")
	scanCmd.Flags().Bool("local-only", false, "Skip the cloud provider and use Tesseract only")
	scanCmd.Flags().Duration("timeout", 60*time.Second, "Recognition timeout")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	jsonOutput, _ := cmd.Flags().GetBool("json")
	showProgress, _ := cmd.Flags().GetBool("progress")
	localOnly, _ := cmd.Flags().GetBool("local-only")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	imagePath := args[0]

	log.Info().
		Str("file", imagePath).
		Bool("json", jsonOutput).
		Bool("local_only", localOnly).
		Dur("timeout", timeout).
		Msg("Starting scan")

	img, err := readImage(imagePath, log)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(localOnly, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	p, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close(log)

	start := time.Now()
	result, err := p.scanner.Scan(ctx, img, progressPrinter(showProgress))
	if err != nil {
		return handleRecognitionError(err, log)
	}

	log.Info().
		Str("provider", string(result.Provider)).
		Strs("missing", result.Missing).
		Dur("duration", time.Since(start)).
		Msg("Scan completed successfully")

	if jsonOutput {
		return outputScanJSON(result, log)
	}
	return outputScanConsole(result)
}

func outputScanJSON(result *services.ScanResult, log zerolog.Logger) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	if _, err := os.Stdout.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func outputScanConsole(result *services.ScanResult) error {
	fmt.Println(strings.Repeat("=", 40))
	printFields(result.Info)
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Provider: %s\n", result.Provider)
	if result.CloudError != "" {
		fmt.Printf("Cloud OCR unavailable, used local engine (%s)\n", result.CloudError)
	}
	if len(result.Missing) > 0 {
		fmt.Printf("Not recognized: %s\n", strings.Join(result.Missing, ", "))
	}
	fmt.Println(strings.Repeat("=", 40))
	return nil
}

// printFields prints one line per field, with "-" for missing ones.
func printFields(info models.ParsedTeaInfo) {
	str := func(v *string) string {
		if v == nil {
			return "-"
		}
		return *v
	}
	price := "-"
	if info.Price != nil {
		price = fmt.Sprintf("%.2f", *info.Price)
	}

	fmt.Printf("Brand: %s\n", str(info.Brand))
	fmt.Printf("Drink: %s\n", str(info.Name))
	fmt.Printf("Sugar: %s\n", str(info.Sugar))
	fmt.Printf("Ice:   %s\n", str(info.Ice))
	fmt.Printf("Price: %s\n", price)
}
