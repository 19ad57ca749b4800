package models

import "strings"

const (
	FileTypeProfileImage = "profile_image"
	FileTypeResume       = "resume"
)

type UploadURLRequest struct {
	FileType      string `json:"file_type" validate:"required,oneof=profile_image resume"`
	ContentType   string `json:"content_type" validate:"required,max=100"`
	FileExtension string `json:"file_extension" validate:"max=10"`
}

func (r *UploadURLRequest) Normalize() {
	r.FileType = strings.TrimSpace(r.FileType)
	r.ContentType = strings.ToLower(strings.TrimSpace(r.ContentType))
	r.FileExtension = strings.ToLower(strings.TrimSpace(r.FileExtension))
}

func (r *UploadURLRequest) Validate() map[string]string {
	return validateStruct(r)
}

type UploadURLResponse struct {
	UploadURL   string `json:"upload_url"`
	Key         string `json:"key"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type"`
	ExpiresIn   int    `json:"expires_in"`
}
