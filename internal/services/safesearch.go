package services

import (
	"context"
	"strings"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

type SafeSearchResult struct {
	Adult    string
	Violence string
	Racy     string
	Spoof    string
	Medical  string
}

func isUnsafeLikelyOrHigher(l string) bool {
	return l == "LIKELY" || l == "VERY_LIKELY"
}

func (r *SafeSearchResult) IsUnsafe() bool {
	return isUnsafeLikelyOrHigher(r.Adult) || isUnsafeLikelyOrHigher(r.Violence) || isUnsafeLikelyOrHigher(r.Racy)
}

// ImageModerator rates an image reachable at imageURI.
type ImageModerator interface {
	Assess(ctx context.Context, imageURI string) (*SafeSearchResult, error)
}

// SafeSearchModerator runs Vision SAFE_SEARCH_DETECTION. gs:// URIs are read
// directly by Vision; anything else must be a fetchable (e.g. presigned) URL.
type SafeSearchModerator struct {
	svc *vision.Service
}

func NewSafeSearchModerator(ctx context.Context, opts ...option.ClientOption) (*SafeSearchModerator, error) {
	opts = append([]option.ClientOption{option.WithScopes(vision.CloudPlatformScope)}, opts...)
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &SafeSearchModerator{svc: svc}, nil
}

func (m *SafeSearchModerator) Assess(ctx context.Context, imageURI string) (*SafeSearchResult, error) {
	src := &vision.ImageSource{}
	if strings.HasPrefix(imageURI, "gs://") {
		src.GcsImageUri = imageURI
	} else {
		src.ImageUri = imageURI
	}

	call := m.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Source: src},
			Features: []*vision.Feature{{Type: "SAFE_SEARCH_DETECTION"}},
		}},
	})
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 || resp.Responses[0].SafeSearchAnnotation == nil {
		return &SafeSearchResult{}, nil
	}
	ss := resp.Responses[0].SafeSearchAnnotation
	return &SafeSearchResult{
		Adult:    ss.Adult,
		Violence: ss.Violence,
		Racy:     ss.Racy,
		Spoof:    ss.Spoof,
		Medical:  ss.Medical,
	}, nil
}
