package models

import "time"

// UserAccount is the lightweight per-subject record. ProfileComplete is true
// exactly when a Profile with Username exists for UserID.
type UserAccount struct {
	UserID          string    `json:"user_id" bson:"_id" dynamodbav:"user_id"`
	Email           string    `json:"email" bson:"email" dynamodbav:"email"`
	Username        string    `json:"username,omitempty" bson:"username,omitempty" dynamodbav:"username,omitempty"`
	FullName        string    `json:"full_name" bson:"full_name" dynamodbav:"fullname"`
	Picture         string    `json:"picture,omitempty" bson:"picture,omitempty" dynamodbav:"picture,omitempty"`
	DateOfBirth     string    `json:"date_of_birth,omitempty" bson:"date_of_birth,omitempty" dynamodbav:"date_of_birth,omitempty"`
	ProfileComplete bool      `json:"profile_complete" bson:"profile_complete" dynamodbav:"profile_complete"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at" dynamodbav:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at" dynamodbav:"updated_at"`
}

// AccountSync is the slice of a UserAccount written together with a profile.
type AccountSync struct {
	UserID      string
	Email       string
	Username    string
	FullName    string
	DateOfBirth string
	At          time.Time
}

// Apply copies the synced fields onto acct and marks it complete.
func (s AccountSync) Apply(acct *UserAccount) {
	if acct.UserID == "" {
		acct.UserID = s.UserID
		acct.CreatedAt = s.At
	}
	if acct.Email == "" {
		acct.Email = s.Email
	}
	acct.Username = s.Username
	acct.ProfileComplete = true
	if s.FullName != "" {
		acct.FullName = s.FullName
	}
	if s.DateOfBirth != "" {
		acct.DateOfBirth = s.DateOfBirth
	}
	acct.UpdatedAt = s.At
}

// AccountSummary is the body of GET /users/me.
type AccountSummary struct {
	UserID          string  `json:"user_id"`
	Username        *string `json:"username"`
	Email           string  `json:"email"`
	ProfileComplete bool    `json:"profile_complete"`
	DateOfBirth     *string `json:"date_of_birth"`
	FullName        string  `json:"fullname"`
}

func NewAccountSummary(a *UserAccount) AccountSummary {
	out := AccountSummary{
		UserID:          a.UserID,
		Email:           a.Email,
		ProfileComplete: a.ProfileComplete,
		FullName:        a.FullName,
	}
	if a.Username != "" {
		u := a.Username
		out.Username = &u
	}
	if a.DateOfBirth != "" {
		d := a.DateOfBirth
		out.DateOfBirth = &d
	}
	return out
}

// Identity is what the API knows about an authenticated caller.
type Identity struct {
	Subject    string
	Email      string
	Name       string
	GivenName  string
	FamilyName string
	Picture    string
	// Federated is set for social logins (Google, GitHub, ...).
	Federated bool
}
