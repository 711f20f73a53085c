package recognition

import (
	"context"

	"github.com/rs/zerolog"
	"teascan/internal/logger"
	"teascan/internal/parser"
	"teascan/pkg/models"
	"teascan/pkg/services"
)

// Scanner implements services.ScanService on top of an Orchestrator and a
// field extractor.
type Scanner struct {
	orch      *Orchestrator
	extractor *parser.Extractor
	log       zerolog.Logger
}

// NewScanner creates a Scanner. A nil extractor uses parser.New().
func NewScanner(orch *Orchestrator, extractor *parser.Extractor) *Scanner {
	if extractor == nil {
		extractor = parser.New()
	}
	return &Scanner{
		orch:      orch,
		extractor: extractor,
		log:       logger.WithComponent("scanner"),
	}
}

var _ services.ScanService = (*Scanner)(nil)

// Scan implements services.ScanService. Fields the extractor could not find
// are reported in ScanResult.Missing; that is not an error.
func (s *Scanner) Scan(ctx context.Context, img models.RawImage, progress services.ProgressFunc) (*services.ScanResult, error) {
	res, err := s.orch.Recognize(ctx, img, progress)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		s.log.Info().Err(err).Str("request_id", res.RequestID).Msg("Scan cancelled before parsing")
		return nil, err
	}

	text := res.Text.Text()
	info := s.extractor.Parse(text)
	if progress != nil {
		progress(ProgressParsed)
	}

	out := &services.ScanResult{
		Info:      info,
		Text:      text,
		Provider:  res.Provider,
		Filled:    info.FilledFields(),
		Missing:   info.MissingFields(),
		RequestID: res.RequestID,
	}
	if res.CloudErr != nil {
		out.CloudError = res.CloudErr.Error()
	}

	s.log.Info().
		Str("request_id", res.RequestID).
		Str("provider", string(res.Provider)).
		Strs("filled", out.Filled).
		Strs("missing", out.Missing).
		Msg("Scan completed")

	if progress != nil {
		progress(ProgressDone)
	}
	return out, nil
}
