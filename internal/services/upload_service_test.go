package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prolynk/backend/internal/apperrors"
	"github.com/prolynk/backend/internal/models"
)

func newUploadService() *UploadService {
	svc := NewUploadService(&fakeObjects{}, 5*time.Minute)
	svc.newID = func() string { return "fixed" }
	return svc
}

func TestCreateUploadURL(t *testing.T) {
	tests := []struct {
		name    string
		req     models.UploadURLRequest
		wantKey string
		wantCT  string
		wantURL bool
	}{
		{
			name:    "png avatar",
			req:     models.UploadURLRequest{FileType: "profile_image", ContentType: "image/png"},
			wantKey: "users/sub-1/profile/fixed.png",
			wantCT:  "image/png",
			wantURL: true,
		},
		{
			name:    "jpg alias with extension",
			req:     models.UploadURLRequest{FileType: "profile_image", ContentType: "Image/JPG", FileExtension: "jpeg"},
			wantKey: "users/sub-1/profile/fixed.jpeg",
			wantCT:  "image/jpeg",
			wantURL: true,
		},
		{
			name:    "pdf resume",
			req:     models.UploadURLRequest{FileType: "resume", ContentType: "application/pdf", FileExtension: ".pdf"},
			wantKey: "users/sub-1/resume/fixed.pdf",
			wantCT:  "application/pdf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			resp, err := newUploadService().CreateUploadURL(context.Background(), "sub-1", &req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, resp.Key)
			assert.Equal(t, tt.wantCT, resp.ContentType)
			assert.Equal(t, 300, resp.ExpiresIn)
			assert.Contains(t, resp.UploadURL, "method=PUT")
			if tt.wantURL {
				assert.Equal(t, testBucketURL+tt.wantKey, resp.URL)
			} else {
				assert.Empty(t, resp.URL)
			}
		})
	}
}

func TestCreateUploadURLRejects(t *testing.T) {
	tests := []struct {
		name  string
		req   models.UploadURLRequest
		field string
	}{
		{"unknown file type", models.UploadURLRequest{FileType: "video", ContentType: "video/mp4"}, "file_type"},
		{"missing content type", models.UploadURLRequest{FileType: "resume"}, "content_type"},
		{"image as resume", models.UploadURLRequest{FileType: "resume", ContentType: "image/png"}, "content_type"},
		{"gif avatar", models.UploadURLRequest{FileType: "profile_image", ContentType: "image/gif"}, "content_type"},
		{"mismatched extension", models.UploadURLRequest{FileType: "profile_image", ContentType: "image/png", FileExtension: "jpg"}, "file_extension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := newUploadService().CreateUploadURL(context.Background(), "sub-1", &req)
			e, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.KindValidation, e.Kind)
			assert.Contains(t, e.Fields, tt.field)
		})
	}
}

func TestCreateUploadURLRequiresCaller(t *testing.T) {
	_, err := newUploadService().CreateUploadURL(context.Background(), "", &models.UploadURLRequest{FileType: "resume", ContentType: "application/pdf"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestParseObjectKey(t *testing.T) {
	user, ft, ok := ParseObjectKey("users/sub-1/profile/a.png")
	require.True(t, ok)
	assert.Equal(t, "sub-1", user)
	assert.Equal(t, models.FileTypeProfileImage, ft)

	_, ft, ok = ParseObjectKey("users/sub-1/resume/cv.pdf")
	require.True(t, ok)
	assert.Equal(t, models.FileTypeResume, ft)

	for _, bad := range []string{"", "users/sub-1/profile/", "users//profile/a.png", "other/sub-1/profile/a.png", "users/sub-1/misc/a.png"} {
		_, _, ok := ParseObjectKey(bad)
		assert.False(t, ok, bad)
	}
}
