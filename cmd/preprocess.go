package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"teascan/internal/config"
	"teascan/internal/logger"
	"teascan/pkg/models"
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess [image-file]",
	Short: "Write the cloud and local OCR variants of a photo for inspection",
	Long: `Produce the two images the recognition pipeline sends to OCR:

  transport - resized to fit TRANSPORT_MAX_WIDTH x TRANSPORT_MAX_HEIGHT and
              JPEG encoded at TRANSPORT_JPEG_QUALITY (cloud provider input)
  ocr       - upscaled by OCR_SCALE and binarized at OCR_THRESHOLD
              (local engine input)`,
	Example: `  teascan preprocess label.jpg --transport label.transport.jpg --ocr label.ocr.png`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPreprocess,
}

func init() {
	rootCmd.AddCommand(preprocessCmd)

	preprocessCmd.Flags().String("transport", "", "Output path of the transport variant (JPEG)")
	preprocessCmd.Flags().String("ocr", "", "Output path of the OCR variant (PNG)")
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("preprocess")

	transportPath, _ := cmd.Flags().GetString("transport")
	ocrPath, _ := cmd.Flags().GetString("ocr")
	if transportPath == "" && ocrPath == "" {
		return fmt.Errorf("nothing to do: pass --transport and/or --ocr")
	}

	img, err := readImage(args[0], log)
	if err != nil {
		return err
	}

	cfg, err := config.LoadLocalOnly()
	if err != nil {
		return err
	}
	pre := cfg.Preprocessor()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	type variantFunc func(context.Context, models.RawImage) (*models.PreprocessedImage, error)
	write := func(path string, variant variantFunc) error {
		if path == "" {
			return nil
		}
		out, err := variant(ctx, img)
		if err != nil {
			return handleRecognitionError(err, log)
		}
		if err := os.WriteFile(path, out.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Printf("%-9s %s (%dx%d, %d bytes)\n", out.Kind, path, out.Width, out.Height, len(out.Data))
		log.Info().
			Str("variant", string(out.Kind)).
			Str("output_file", path).
			Int("width", out.Width).
			Int("height", out.Height).
			Msg("Variant written")
		return nil
	}

	if err := write(transportPath, pre.TransportVariant); err != nil {
		return err
	}
	return write(ocrPath, pre.OcrVariant)
}
