package ocr

import (
	"context"
	"fmt"
	"os"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"teascan/internal/logger"
	"teascan/pkg/models"
)

// DefaultVisionLanguageHints steer Vision towards Chinese label text.
var DefaultVisionLanguageHints = []string{"zh", "en"}

// imageAnnotator is the subset of the Vision client used here.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// GoogleVisionOCR is the alternative cloud provider backed by Google Cloud
// Vision text detection.
type GoogleVisionOCR struct {
	client        imageAnnotator
	languageHints []string
	log           zerolog.Logger
}

// NewGoogleVisionOCR creates a Vision provider with credentials from the
// environment. It expects either GOOGLE_CREDENTIALS JSON or a
// GOOGLE_APPLICATION_CREDENTIALS path, and falls back to application default
// credentials.
func NewGoogleVisionOCR(ctx context.Context) (*GoogleVisionOCR, error) {
	const op = "NewGoogleVisionOCR"

	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, NewError(models.ProviderGoogle, op, ErrAuth, err, "failed to create Vision client")
	}
	return newGoogleVisionOCR(client), nil
}

func newGoogleVisionOCR(client imageAnnotator) *GoogleVisionOCR {
	return &GoogleVisionOCR{
		client:        client,
		languageHints: DefaultVisionLanguageHints,
		log:           logger.WithComponent("vision-ocr"),
	}
}

// Name implements Provider.
func (g *GoogleVisionOCR) Name() models.ProviderName { return models.ProviderGoogle }

// Recognize implements Provider.
func (g *GoogleVisionOCR) Recognize(ctx context.Context, img *models.PreprocessedImage) (*models.RawOcrText, error) {
	const op = "Recognize"
	name := g.Name()
	start := time.Now()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:        &visionpb.Image{Content: img.Data},
				Features:     []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION}},
				ImageContext: &visionpb.ImageContext{LanguageHints: g.languageHints},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, NewError(name, op, kindFromStatus(err), err, "Vision API call failed")
	}
	if len(resp.GetResponses()) == 0 {
		return nil, NewError(name, op, ErrEmptyResult, nil, "no response from Vision API")
	}

	imgResp := resp.GetResponses()[0]
	if e := imgResp.GetError(); e != nil && codes.Code(e.GetCode()) != codes.OK {
		return nil, NewError(name, op, kindFromCode(codes.Code(e.GetCode())), nil,
			fmt.Sprintf("Vision API error: %s", e.GetMessage()))
	}

	text := imgResp.GetFullTextAnnotation().GetText()
	if text == "" && len(imgResp.GetTextAnnotations()) > 0 {
		// The first annotation holds the whole detected text.
		text = imgResp.GetTextAnnotations()[0].GetDescription()
	}
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, NewError(name, op, ErrEmptyResult, nil, "document contains no readable text")
	}

	g.log.Info().
		Int("lines", len(lines)).
		Dur("duration", time.Since(start)).
		Msg("Cloud recognition completed")

	return &models.RawOcrText{Lines: lines, Provider: name}, nil
}

// Close closes the underlying Vision client.
func (g *GoogleVisionOCR) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func kindFromStatus(err error) error {
	if s, ok := status.FromError(err); ok {
		return kindFromCode(s.Code())
	}
	return ErrNetwork
}

func kindFromCode(c codes.Code) error {
	switch c {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrAuth
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Unknown, codes.Internal:
		return ErrNetwork
	default:
		return ErrProviderRejected
	}
}
