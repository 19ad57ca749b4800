package models

import (
	"strings"
	"time"
)

// Link is one entry in a user's link list. IsDeleted is a tombstone: such
// links are never listed but can still be fetched by id.
type Link struct {
	LinkID    string    `json:"link_id" bson:"link_id" dynamodbav:"link_id"`
	UserID    string    `json:"user_id" bson:"user_id" dynamodbav:"user_id"`
	Title     string    `json:"title" bson:"title" dynamodbav:"title"`
	URL       string    `json:"url" bson:"url" dynamodbav:"url"`
	Order     int       `json:"order" bson:"order" dynamodbav:"order"`
	IsDeleted bool      `json:"is_deleted" bson:"is_deleted" dynamodbav:"is_deleted"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" dynamodbav:"updated_at"`
}

type PublicLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type UpsertLinkRequest struct {
	LinkID string `json:"link_id" validate:"max=100"`
	Title  string `json:"title" validate:"required,max=200"`
	URL    string `json:"url" validate:"required,weburl"`
	Order  *int   `json:"order"`
}

func (r *UpsertLinkRequest) Normalize() {
	r.LinkID = strings.TrimSpace(r.LinkID)
	r.Title = strings.TrimSpace(r.Title)
	r.URL = strings.TrimSpace(r.URL)
}

func (r *UpsertLinkRequest) Validate() map[string]string {
	return validateStruct(r)
}

type LinkSavedResponse struct {
	Message string `json:"message"`
	Link    *Link  `json:"link"`
}

type LinkDeletedResponse struct {
	Message string `json:"message"`
	LinkID  string `json:"link_id"`
}

type LinkListResponse struct {
	Links []*Link `json:"links"`
}
