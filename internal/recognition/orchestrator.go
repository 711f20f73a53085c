// Package recognition runs one photo through preprocessing and OCR with
// graceful degradation: the cloud provider is tried first with the
// transport variant, and any provider failure falls back to the local engine
// with the binarized OCR variant. A caller only sees an error when both fail.
package recognition

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"teascan/internal/logger"
	"teascan/internal/ocr"
	"teascan/pkg/models"
	"teascan/pkg/services"
)

// State is a step of a single recognition.
type State string

const (
	StateIdle          State = "idle"
	StatePreprocessing State = "preprocessing"
	StateCloudAttempt  State = "cloud_attempt"
	StateLocalFallback State = "local_fallback"
	StateLocalAttempt  State = "local_attempt"
	StateSuccess       State = "success"
	StateFailed        State = "failed"
	StateDone          State = "done"
)

// Progress checkpoints reported through the ProgressFunc.
const (
	ProgressStarted      = 10
	ProgressPreprocessed = 20
	ProgressRecognized   = 60
	ProgressParsed       = 80
	ProgressDone         = 100
)

// Preprocessor derives the provider-specific variants of a photo.
type Preprocessor interface {
	TransportVariant(ctx context.Context, img models.RawImage) (*models.PreprocessedImage, error)
	OcrVariant(ctx context.Context, img models.RawImage) (*models.PreprocessedImage, error)
}

// Result is a successful recognition.
type Result struct {
	Text     *models.RawOcrText
	Provider models.ProviderName

	// CloudErr is the cloud failure that caused a fallback, if any.
	CloudErr error

	Trace     []State
	RequestID string
}

// Orchestrator is safe for concurrent use as long as its providers are.
type Orchestrator struct {
	pre   Preprocessor
	cloud ocr.Provider
	local ocr.Provider
	log   zerolog.Logger
}

// NewOrchestrator wires the pipeline. cloud may be nil for local-only mode;
// pre and local are required.
func NewOrchestrator(pre Preprocessor, cloud, local ocr.Provider) (*Orchestrator, error) {
	if pre == nil {
		return nil, errors.New("recognition: preprocessor is required")
	}
	if local == nil {
		return nil, errNoLocalProvider
	}
	return &Orchestrator{
		pre:   pre,
		cloud: cloud,
		local: local,
		log:   logger.WithComponent("recognition"),
	}, nil
}

// run tracks the state of one Recognize call.
type run struct {
	log      zerolog.Logger
	state    State
	trace    []State
	progress services.ProgressFunc
	last     int
}

func (r *run) enter(s State) {
	r.log.Debug().Str("from", string(r.state)).Str("to", string(s)).Msg("Recognition state changed")
	r.state = s
	r.trace = append(r.trace, s)
}

func (r *run) report(percent int) {
	if r.progress == nil || percent <= r.last {
		return
	}
	r.last = percent
	r.progress(percent)
}

// Recognize turns img into text. Preprocessing errors are returned as they
// are (*imageproc.PreprocessError) since neither provider could use the
// image. Cancelling ctx stops the pipeline between stages and returns
// ctx.Err(). When both providers fail the error is a *FailedError.
func (o *Orchestrator) Recognize(ctx context.Context, img models.RawImage, progress services.ProgressFunc) (*Result, error) {
	requestID := uuid.NewString()
	r := &run{
		log:      logger.WithRequestID(o.log, requestID),
		state:    StateIdle,
		trace:    []State{StateIdle},
		progress: progress,
	}
	start := time.Now()

	r.report(ProgressStarted)
	r.enter(StatePreprocessing)

	var cloudErr error
	if o.cloud != nil {
		transport, err := o.pre.TransportVariant(ctx, img)
		if err != nil {
			return nil, o.abort(ctx, r, err)
		}
		r.report(ProgressPreprocessed)

		r.enter(StateCloudAttempt)
		text, err := o.cloud.Recognize(ctx, transport)
		if err == nil {
			return o.succeed(r, o.cloud.Name(), text, nil, requestID, start), nil
		}
		if ctx.Err() != nil {
			return nil, o.abort(ctx, r, err)
		}
		cloudErr = err
		r.log.Warn().Err(err).Str("provider", string(o.cloud.Name())).Msg("Cloud recognition failed, falling back to local engine")
	}

	r.enter(StateLocalFallback)
	variant, err := o.pre.OcrVariant(ctx, img)
	if err != nil {
		return nil, o.abort(ctx, r, err)
	}
	r.report(ProgressPreprocessed)

	r.enter(StateLocalAttempt)
	text, err := o.local.Recognize(ctx, variant)
	if err == nil {
		return o.succeed(r, o.local.Name(), text, cloudErr, requestID, start), nil
	}
	if ctx.Err() != nil {
		return nil, o.abort(ctx, r, err)
	}

	r.enter(StateFailed)
	r.enter(StateDone)
	r.log.Error().
		AnErr("cloud_error", cloudErr).
		AnErr("local_error", err).
		Dur("duration", time.Since(start)).
		Msg("Recognition failed")
	return nil, &FailedError{CloudErr: cloudErr, LocalErr: err, Trace: r.trace}
}

func (o *Orchestrator) succeed(r *run, provider models.ProviderName, text *models.RawOcrText, cloudErr error, requestID string, start time.Time) *Result {
	r.report(ProgressRecognized)
	r.enter(StateSuccess)
	r.enter(StateDone)

	r.log.Info().
		Str("provider", string(provider)).
		Bool("fallback", cloudErr != nil).
		Int("lines", len(text.Lines)).
		Dur("duration", time.Since(start)).
		Msg("Recognition completed")

	return &Result{
		Text:      text,
		Provider:  provider,
		CloudErr:  cloudErr,
		Trace:     r.trace,
		RequestID: requestID,
	}
}

// abort ends the run on cancellation or a preprocessing failure.
func (o *Orchestrator) abort(ctx context.Context, r *run, err error) error {
	r.enter(StateDone)
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.log.Info().Err(ctxErr).Msg("Recognition cancelled")
		return ctxErr
	}
	r.log.Error().Err(err).Msg("Preprocessing failed")
	return err
}
