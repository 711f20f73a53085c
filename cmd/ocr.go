package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"teascan/internal/logger"
	"teascan/internal/recognition"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-file]",
	Short: "Print the raw text recognized in a photo",
	Long: `Run recognition with cloud-to-local fallback and print the raw text lines
without extracting fields. Useful to see what the field extractor receives.`,
	Example: `  # Print recognized lines
  teascan ocr receipt.jpg

  # Save the text for later parsing
  teascan ocr receipt.jpg -o receipt.txt && teascan parse receipt.txt

  # Include provider and state trace
  teascan ocr receipt.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Lines              []string `json:"lines"`
	Provider           string   `json:"provider"`
	CloudError         string   `json:"cloud_error,omitempty"`
	Trace              []string `json:"trace"`
	RequestID          string   `json:"request_id"`
	ProcessingDuration string   `json:"processing_duration"`
	FileName           string   `json:"file_name"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Bool("local-only", false, "Skip the cloud provider and use Tesseract only")
	ocrCmd.Flags().Duration("timeout", 60*time.Second, "Recognition timeout")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	localOnly, _ := cmd.Flags().GetBool("local-only")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	imagePath := args[0]

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
	result, err := p.orch.Recognize(ctx, img, nil)
	if err != nil {
		return handleRecognitionError(err, log)
	}

	log.Info().
		Str("provider", string(result.Provider)).
		Strs("trace", traceStrings(result.Trace)).
		Int("lines", len(result.Text.Lines)).
		Msg("OCR completed successfully")

	var outputData []byte
	if jsonOutput {
		out := OCROutput{
			Lines:              result.Text.Lines,
			Provider:           string(result.Provider),
			Trace:              traceStrings(result.Trace),
			RequestID:          result.RequestID,
			ProcessingDuration: time.Since(start).String(),
			FileName:           imagePath,
		}
		if result.CloudErr != nil {
			out.CloudError = result.CloudErr.Error()
		}
		outputData, err = json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
	} else {
		outputData = []byte(result.Text.Text())
	}
	outputData = append(outputData, '\n')

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("OCR results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func traceStrings(trace []recognition.State) []string {
	out := make([]string, len(trace))
	for i, s := range trace {
		out[i] = string(s)
	}
	return out
}
