package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"teascan/internal/logger"
	"teascan/internal/sheets"
	"teascan/pkg/services"
)

var scanBatchCmd = &cobra.Command{
	Use:   "scan-batch [folder-path]",
	Short: "Scan every photo in a folder",
	Long: `Scan all images (JPEG, PNG, WebP, GIF, BMP, TIFF) in a folder with a pool of
parallel workers. All workers share one access token, so the token endpoint
is called once per token lifetime regardless of the number of photos.

A photo is reported as a warning when it was read by the local fallback or
when some fields were not recognized.

Optional environment variables:
  BATCH_WORKERS - Number of parallel workers (default: 4)
  GOOGLE_SHEET_URL - Append results to this Google Sheet (same as --sheet)
  GOOGLE_SHEET_WORKSHEET - Worksheet name (default: Scans)`,
	Example: `  # Scan a folder of receipts
  teascan scan-batch ./receipts

  # Write all results as JSON lines
  teascan scan-batch ./receipts --jsonl results.jsonl

  # Append results to a Google Sheet
  teascan scan-batch ./receipts --sheet https://docs.google.com/spreadsheets/d/<id>/edit

  # Offline
  teascan scan-batch ./receipts --local-only --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runScanBatch,
}

// BatchResult represents the result of scanning a single photo
type BatchResult struct {
	Filename string               `json:"file"`
	Result   *services.ScanResult `json:"result,omitempty"`
	Error    error                `json:"-"`
	ErrorMsg string               `json:"error,omitempty"`
	Status   string               `json:"status"` // "success", "warning", "error"
	Index    int                  `json:"-"`      // Original order index
}

// WorkerJob represents a photo scanning job
type WorkerJob struct {
	FilePath string
	Index    int
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

func init() {
	rootCmd.AddCommand(scanBatchCmd)

	scanBatchCmd.Flags().String("jsonl", "", "Write one JSON result per line to this file")
	scanBatchCmd.Flags().String("sheet", "", "Google Sheets URL to append results to (default: GOOGLE_SHEET_URL)")
	scanBatchCmd.Flags().String("worksheet", "", "Worksheet name (default: GOOGLE_SHEET_WORKSHEET or Scans)")
	scanBatchCmd.Flags().Bool("local-only", false, "Skip the cloud provider and use Tesseract only")
	scanBatchCmd.Flags().Bool("verbose", false, "Show detailed processing information")
	scanBatchCmd.Flags().Duration("timeout", 30*time.Minute, "Timeout for the whole batch")
}

func runScanBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan-batch")

	folderPath := args[0]
	jsonlPath, _ := cmd.Flags().GetString("jsonl")
	sheetURL, _ := cmd.Flags().GetString("sheet")
	worksheet, _ := cmd.Flags().GetString("worksheet")
	localOnly, _ := cmd.Flags().GetBool("local-only")
	verbose, _ := cmd.Flags().GetBool("verbose")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}

	log.Info().
		Str("folder", folderPath).
		Bool("local_only", localOnly).
		Bool("verbose", verbose).
		Msg("Starting batch scan")

	cfg, err := loadConfig(localOnly, log)
	if err != nil {
		return err
	}

	if sheetURL == "" {
		sheetURL = cfg.GoogleSheetURL
	}
	if worksheet == "" {
		worksheet = cfg.GoogleSheetWorksheet
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	p, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close(log)

	imageFiles, err := findImageFiles(folderPath)
	if err != nil {
		return fmt.Errorf("failed to find image files: %w", err)
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("                    BATCH SCAN")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Folder: %s\n", folderPath)
	fmt.Printf("Cloud provider: %s\n", cfg.CloudOCRProvider)
	fmt.Println()

	if len(imageFiles) == 0 {
		fmt.Println("No image files found in folder.")
		return nil
	}

	numWorkers := getNumWorkers()
	fmt.Printf("Scanning %d photos with %d parallel workers...\n", len(imageFiles), numWorkers)
	fmt.Println()

	results := scanImagesInParallel(ctx, imageFiles, p.scanner, numWorkers, log, verbose)

	successCount, warningCount, errorCount := 0, 0, 0
	for _, result := range results {
		switch result.Status {
		case "success":
			successCount++
		case "warning":
			warningCount++
		case "error":
			errorCount++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("                RESULT")
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("Complete: %d\n", successCount)
	if warningCount > 0 {
		fmt.Printf("With warnings: %d\n", warningCount)
	}
	if errorCount > 0 {
		fmt.Printf("Failed: %d\n", errorCount)
	}

	if jsonlPath != "" {
		if err := writeJSONLines(jsonlPath, results); err != nil {
			log.Error().Err(err).Str("output_file", jsonlPath).Msg("Failed to write results")
			return err
		}
		fmt.Printf("Results: %s\n", jsonlPath)
	}

	if sheetURL != "" {
		fmt.Println("Writing results to Google Sheet...")
		if err := writeToSheet(ctx, sheetURL, worksheet, results); err != nil {
			log.Error().Err(err).Msg("Failed to write to Google Sheet")
			return err
		}
		fmt.Printf("Sheet: %s\n", worksheet)
		fmt.Printf("Rows added: %d\n", len(results))
		fmt.Printf("URL: %s\n", sheetURL)
	}

	log.Info().
		Int("total", len(imageFiles)).
		Int("success", successCount).
		Int("warnings", warningCount).
		Int("errors", errorCount).
		Msg("Batch scan completed")

	return nil
}

// findImageFiles finds all image files in the specified folder
func findImageFiles(folderPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(info.Name()))] {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// scanSingleImage scans one photo and classifies the outcome
func scanSingleImage(ctx context.Context, path string, scanner services.ScanService, log zerolog.Logger, verbose bool) BatchResult {
	result := BatchResult{Status: "error"}

	img, err := readImage(path, log)
	if err != nil {
		result.Error = err
		return result
	}

	scan, err := scanner.Scan(ctx, img, nil)
	if err != nil {
		result.Error = handleRecognitionError(err, log)
		return result
	}

	result.Result = scan
	result.Status = "success"
	if scan.CloudError != "" || len(scan.Missing) > 0 {
		result.Status = "warning"
	}

	if verbose {
		log.Info().
			Str("file", path).
			Str("provider", string(scan.Provider)).
			Strs("filled", scan.Filled).
			Strs("missing", scan.Missing).
			Msg("Photo scanned")
	}

	return result
}

// getNumWorkers returns the number of workers from environment or default
func getNumWorkers() int {
	if workersStr := os.Getenv("BATCH_WORKERS"); workersStr != "" {
		if workers, err := strconv.Atoi(workersStr); err == nil && workers > 0 {
			return workers
		}
	}
	return 4
}

// scanImagesInParallel scans photos using a worker pool pattern
func scanImagesInParallel(ctx context.Context, files []string, scanner services.ScanService, numWorkers int, log zerolog.Logger, verbose bool) []BatchResult {
	jobs := make(chan WorkerJob, len(files))
	results := make([]BatchResult, len(files))

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				log.Debug().
					Int("worker", workerID).
					Str("file", job.FilePath).
					Int("index", job.Index+1).
					Msg("Worker scanning photo")

				result := scanSingleImage(ctx, job.FilePath, scanner, log, verbose)
				result.Index = job.Index
				result.Filename = filepath.Base(job.FilePath)
				if result.Error != nil {
					result.ErrorMsg = result.Error.Error()
				}

				results[job.Index] = result

				mu.Lock()
				processedCount++
				fmt.Printf("[%d/%d] %s - %s", processedCount, len(files), result.Filename, getStatusEmoji(result.Status))
				switch {
				case result.Error != nil:
					fmt.Printf(" (%s)", firstLine(result.ErrorMsg))
				case result.Result != nil:
					fmt.Printf(" (%s)", summarize(result.Result))
				}
				fmt.Println()
				mu.Unlock()
			}
		}(w)
	}

	for i, file := range files {
		jobs <- WorkerJob{FilePath: file, Index: i}
	}
	close(jobs)

	wg.Wait()

	return results
}

func summarize(r *services.ScanResult) string {
	parts := []string{string(r.Provider)}
	if r.Info.Brand != nil {
		parts = append(parts, *r.Info.Brand)
	}
	if r.Info.Name != nil {
		parts = append(parts, *r.Info.Name)
	}
	if r.Info.Price != nil {
		parts = append(parts, fmt.Sprintf("¥%.2f", *r.Info.Price))
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func writeToSheet(ctx context.Context, sheetURL, worksheet string, results []BatchResult) error {
	svc, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		return fmt.Errorf("failed to create Google Sheets service: %w", err)
	}

	rows := make([]sheets.Result, len(results))
	for i, r := range results {
		rows[i] = sheets.Result{Filename: r.Filename, Scan: r.Result, Error: r.Error, Status: r.Status}
	}
	if err := svc.WriteResults(ctx, rows, worksheet); err != nil {
		return fmt.Errorf("failed to write to Google Sheet: %w", err)
	}
	return nil
}

func writeJSONLines(path string, results []BatchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}
	return nil
}

// getStatusEmoji returns an emoji for the processing status
func getStatusEmoji(status string) string {
	switch status {
	case "success":
		return "✅"
	case "warning":
		return "⚠️"
	case "error":
		return "❌"
	default:
		return "❓"
	}
}
