package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/prolynk/backend/internal/apperrors"
	"github.com/prolynk/backend/internal/models"
)

// allowedUploads maps file type -> content type -> accepted extensions. The
// first extension is the default.
var allowedUploads = map[string]map[string][]string{
	models.FileTypeProfileImage: {
		"image/png":  {".png"},
		"image/jpeg": {".jpg", ".jpeg"},
		"image/webp": {".webp"},
	},
	models.FileTypeResume: {
		"application/pdf": {".pdf"},
	},
}

var uploadFolders = map[string]string{
	models.FileTypeProfileImage: "profile",
	models.FileTypeResume:       "resume",
}

// UploadService hands out presigned PUT URLs for user-owned objects. The
// bytes never pass through this process.
type UploadService struct {
	objects ObjectStore
	ttl     time.Duration
	newID   func() string
}

func NewUploadService(objects ObjectStore, ttl time.Duration) *UploadService {
	return &UploadService{
		objects: objects,
		ttl:     ttl,
		newID:   uuid.NewString,
	}
}

func (s *UploadService) CreateUploadURL(ctx context.Context, userID string, req *models.UploadURLRequest) (*models.UploadURLResponse, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	req.Normalize()
	if errs := req.Validate(); len(errs) > 0 {
		return nil, apperrors.ValidationFields(errs)
	}

	contentType := req.ContentType
	if contentType == "image/jpg" {
		contentType = "image/jpeg"
	}
	exts, ok := allowedUploads[req.FileType][contentType]
	if !ok {
		return nil, apperrors.ValidationFields(map[string]string{
			"content_type": fmt.Sprintf("%s is not accepted for %s", contentType, req.FileType),
		})
	}

	ext := exts[0]
	if req.FileExtension != "" {
		want := req.FileExtension
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if !slices.Contains(exts, want) {
			return nil, apperrors.ValidationFields(map[string]string{
				"file_extension": fmt.Sprintf("%s does not match %s", want, contentType),
			})
		}
		ext = want
	}

	key := objectPrefix(userID, req.FileType) + s.newID() + ext
	uploadURL, err := s.objects.PresignPut(ctx, key, contentType, s.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "presign upload")
	}

	resp := &models.UploadURLResponse{
		UploadURL:   uploadURL,
		Key:         key,
		ContentType: contentType,
		ExpiresIn:   int(s.ttl / time.Second),
	}
	if req.FileType == models.FileTypeProfileImage {
		resp.URL = s.objects.PublicURL(key)
	}
	return resp, nil
}

func userPrefix(userID string) string {
	return "users/" + userID + "/"
}

func objectPrefix(userID, fileType string) string {
	return userPrefix(userID) + uploadFolders[fileType] + "/"
}

// ParseObjectKey splits users/{sub}/{folder}/... into its owner and file type.
func ParseObjectKey(key string) (userID, fileType string, ok bool) {
	parts := strings.SplitN(key, "/", 4)
	if len(parts) != 4 || parts[0] != "users" || parts[1] == "" || parts[3] == "" {
		return "", "", false
	}
	for ft, folder := range uploadFolders {
		if folder == parts[2] {
			return parts[1], ft, true
		}
	}
	return "", "", false
}
