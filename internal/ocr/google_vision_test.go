package ocr

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"teascan/pkg/models"
)

type fakeAnnotator struct {
	resp   *visionpb.BatchAnnotateImagesResponse
	err    error
	req    *visionpb.BatchAnnotateImagesRequest
	closed bool
}

func (f *fakeAnnotator) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeAnnotator) Close() error {
	f.closed = true
	return nil
}

func TestGoogleVisionOCR_Recognize(t *testing.T) {
	fake := &fakeAnnotator{
		resp: &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{
				FullTextAnnotation: &visionpb.TextAnnotation{Text: "CoCo\n珍珠奶茶\n\n半糖 正常冰\n"},
			}},
		},
	}
	g := newGoogleVisionOCR(fake)

	got, err := g.Recognize(context.Background(), testImage)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	want := []string{"CoCo", "珍珠奶茶", "半糖 正常冰"}
	if !reflect.DeepEqual(got.Lines, want) {
		t.Errorf("Lines = %q, want %q", got.Lines, want)
	}
	if got.Provider != models.ProviderGoogle {
		t.Errorf("Provider = %q", got.Provider)
	}

	sent := fake.req.GetRequests()[0]
	if string(sent.GetImage().GetContent()) != "jpeg-bytes" {
		t.Errorf("image content not forwarded")
	}
	if sent.GetFeatures()[0].GetType() != visionpb.Feature_TEXT_DETECTION {
		t.Errorf("feature = %v", sent.GetFeatures()[0].GetType())
	}

	if err := g.Close(); err != nil || !fake.closed {
		t.Errorf("Close() = %v, closed = %v", err, fake.closed)
	}
}

func TestGoogleVisionOCR_FallsBackToTextAnnotations(t *testing.T) {
	fake := &fakeAnnotator{
		resp: &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{
				TextAnnotations: []*visionpb.EntityAnnotation{{Description: "伯牙绝弦\n去冰"}},
			}},
		},
	}
	got, err := newGoogleVisionOCR(fake).Recognize(context.Background(), testImage)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if len(got.Lines) != 2 {
		t.Errorf("Lines = %q", got.Lines)
	}
}

func TestGoogleVisionOCR_Errors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeAnnotator
		want error
	}{
		{"unauthenticated", &fakeAnnotator{err: status.Error(codes.Unauthenticated, "bad key")}, ErrAuth},
		{"unavailable", &fakeAnnotator{err: status.Error(codes.Unavailable, "down")}, ErrNetwork},
		{"invalid argument", &fakeAnnotator{err: status.Error(codes.InvalidArgument, "bad image")}, ErrProviderRejected},
		{"plain error", &fakeAnnotator{err: errors.New("connection reset")}, ErrNetwork},
		{"no responses", &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{}}, ErrEmptyResult},
		{"no text", &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{}},
		}}, ErrEmptyResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newGoogleVisionOCR(tt.fake).Recognize(context.Background(), testImage)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Recognize() error = %v, want %v", err, tt.want)
			}
		})
	}
}
