package services

import (
	"context"

	"teascan/pkg/models"
)

// ProgressFunc receives monotonically increasing completion percentages
// (0-100) while a scan runs. It is called on the scanning goroutine.
type ProgressFunc func(percent int)

// ScanService defines the interface for turning a photographed drink label or
// receipt into record fields
type ScanService interface {
	// Scan preprocesses, recognizes and parses img. Recognition falls back to
	// the local engine when the cloud provider fails; an error is returned
	// only when no text could be read at all.
	Scan(ctx context.Context, img models.RawImage, progress ProgressFunc) (*ScanResult, error)
}

// ScanResult is what a record form receives after a scan
type ScanResult struct {
	Info     models.ParsedTeaInfo `json:"info"`
	Text     string               `json:"text"`
	Provider models.ProviderName  `json:"provider"`
	Filled   []string             `json:"filled"`
	Missing  []string             `json:"missing"`

	// CloudError is set when the result came from the local fallback.
	CloudError string `json:"cloud_error,omitempty"`

	RequestID string `json:"request_id"`
}
