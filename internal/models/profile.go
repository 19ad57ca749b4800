package models

import (
	"strings"
	"time"
)

// Profile is the stored public profile, keyed by its lowercase username.
type Profile struct {
	Username      string            `json:"username" bson:"_id" dynamodbav:"username"`
	UserID        string            `json:"user_id" bson:"user_id" dynamodbav:"user_id"`
	FullName      string            `json:"full_name" bson:"full_name" dynamodbav:"full_name"`
	Title         string            `json:"title" bson:"title" dynamodbav:"title"`
	Bio           string            `json:"bio" bson:"bio" dynamodbav:"bio"`
	Skills        []string          `json:"skills" bson:"skills" dynamodbav:"skills"`
	SocialLinks   map[string]string `json:"social_links" bson:"social_links" dynamodbav:"social_links"`
	Projects      []Project         `json:"projects" bson:"projects" dynamodbav:"projects"`
	AvatarKey     string            `json:"avatar_key" bson:"avatar_key" dynamodbav:"avatar_key"`
	AvatarURL     string            `json:"avatar_url" bson:"avatar_url" dynamodbav:"avatar_url"`
	ResumeKey     string            `json:"resume_key" bson:"resume_key" dynamodbav:"resume_key"`
	Email         string            `json:"email" bson:"email" dynamodbav:"email"`
	Phone         string            `json:"phone" bson:"phone" dynamodbav:"phone"`
	ShowEmail     bool              `json:"show_email" bson:"show_email" dynamodbav:"show_email"`
	ShowPhone     bool              `json:"show_phone" bson:"show_phone" dynamodbav:"show_phone"`
	ShowResume    bool              `json:"show_resume" bson:"show_resume" dynamodbav:"show_resume"`
	FavoriteColor string            `json:"favorite_color" bson:"favorite_color" dynamodbav:"favorite_color"`
	DateOfBirth   string            `json:"date_of_birth" bson:"date_of_birth" dynamodbav:"date_of_birth"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at" dynamodbav:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" bson:"updated_at" dynamodbav:"updated_at"`
	// Version increases by one on every write; writes are conditional on it.
	Version int64 `json:"version" bson:"version" dynamodbav:"version"`
}

// Clone returns a deep copy so merges never alias a stored snapshot.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	if p.Skills != nil {
		out.Skills = append([]string(nil), p.Skills...)
	}
	if p.SocialLinks != nil {
		out.SocialLinks = make(map[string]string, len(p.SocialLinks))
		for k, v := range p.SocialLinks {
			out.SocialLinks[k] = v
		}
	}
	if p.Projects != nil {
		out.Projects = make([]Project, len(p.Projects))
		for i, pr := range p.Projects {
			out.Projects[i] = pr
			if pr.TechStack != nil {
				out.Projects[i].TechStack = append([]string(nil), pr.TechStack...)
			}
		}
	}
	return &out
}

// Project is embedded in a Profile and has no lifecycle of its own.
type Project struct {
	ID          string   `json:"id" bson:"id" dynamodbav:"id" validate:"max=100"`
	Title       string   `json:"title" bson:"title" dynamodbav:"title" validate:"required,max=200"`
	Description string   `json:"description" bson:"description" dynamodbav:"description" validate:"max=5000"`
	Link        string   `json:"link" bson:"link" dynamodbav:"link" validate:"omitempty,weburl"`
	ImageKey    string   `json:"image_key" bson:"image_key" dynamodbav:"image_key" validate:"max=500"`
	ImageURL    string   `json:"image_url" bson:"image_url" dynamodbav:"image_url" validate:"omitempty,weburl"`
	TechStack   []string `json:"tech_stack" bson:"tech_stack" dynamodbav:"tech_stack" validate:"max=30,dive,max=50"`
	Order       int      `json:"order" bson:"order" dynamodbav:"order"`
}

// ProfilePatch is the body of POST /profiles. A field that is absent keeps
// the stored value; a field that is present replaces it, and null clears it.
// Slices and maps are replaced wholesale.
type ProfilePatch struct {
	Username      Optional[string]            `json:"username"`
	FullName      Optional[string]            `json:"full_name"`
	Title         Optional[string]            `json:"title"`
	Bio           Optional[string]            `json:"bio"`
	Skills        Optional[[]string]          `json:"skills"`
	SocialLinks   Optional[map[string]string] `json:"social_links"`
	Projects      Optional[[]Project]         `json:"projects"`
	AvatarKey     Optional[string]            `json:"avatar_key"`
	AvatarURL     Optional[string]            `json:"avatar_url"`
	ResumeKey     Optional[string]            `json:"resume_key"`
	Email         Optional[string]            `json:"email"`
	Phone         Optional[string]            `json:"phone"`
	ShowEmail     Optional[bool]              `json:"show_email"`
	ShowPhone     Optional[bool]              `json:"show_phone"`
	ShowResume    Optional[bool]              `json:"show_resume"`
	FavoriteColor Optional[string]            `json:"favorite_color"`
	DateOfBirth   Optional[string]            `json:"date_of_birth"`

	// Older clients send these names.
	DisplayName     Optional[string] `json:"displayName"`
	ProfileImageURL Optional[string] `json:"profile_image_url"`
	// ResumeURL is only used to recover a key; resume URLs are never stored.
	ResumeURL       Optional[string] `json:"resume_url"`
}

// Normalize folds legacy aliases into their canonical fields and trims
// scalar text. The canonical field wins when both are sent.
func (p *ProfilePatch) Normalize() {
	if !p.FullName.Set && p.DisplayName.Set {
		p.FullName = p.DisplayName
	}
	if !p.AvatarURL.Set && p.ProfileImageURL.Set {
		p.AvatarURL = p.ProfileImageURL
	}
	p.DisplayName = Optional[string]{}
	p.ProfileImageURL = Optional[string]{}

	for _, f := range []*Optional[string]{
		&p.Username, &p.FullName, &p.Title, &p.AvatarKey, &p.AvatarURL,
		&p.ResumeKey, &p.ResumeURL, &p.Email, &p.Phone, &p.FavoriteColor, &p.DateOfBirth,
	} {
		if f.Set {
			f.Value = strings.TrimSpace(f.Value)
		}
	}
	if p.Username.Set {
		p.Username.Value = NormalizeUsername(p.Username.Value)
	}
	if p.Skills.Set {
		p.Skills.Value = compactStrings(p.Skills.Value)
	}
	if p.SocialLinks.Set && p.SocialLinks.Value != nil {
		links := make(map[string]string, len(p.SocialLinks.Value))
		for k, v := range p.SocialLinks.Value {
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if k != "" && v != "" {
				links[k] = v
			}
		}
		p.SocialLinks.Value = links
	}
}

type profileRules struct {
	Username      string            `json:"username" validate:"omitempty,username"`
	FullName      string            `json:"full_name" validate:"max=200"`
	Title         string            `json:"title" validate:"max=200"`
	Bio           string            `json:"bio" validate:"max=5000"`
	Skills        []string          `json:"skills" validate:"max=100,dive,max=50"`
	SocialLinks   map[string]string `json:"social_links" validate:"max=30,dive,keys,max=50,endkeys,weburl"`
	Projects      []Project         `json:"projects" validate:"max=50,dive"`
	AvatarKey     string            `json:"avatar_key" validate:"max=500"`
	AvatarURL     string            `json:"avatar_url" validate:"omitempty,weburl"`
	ResumeKey     string            `json:"resume_key" validate:"max=500"`
	Email         string            `json:"email" validate:"omitempty,max=320,email"`
	Phone         string            `json:"phone" validate:"max=40"`
	FavoriteColor string            `json:"favorite_color" validate:"max=40"`
	DateOfBirth   string            `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

// Validate checks the shape of every supplied field. Call Normalize first.
func (p *ProfilePatch) Validate() map[string]string {
	errs := validateStruct(profileRules{
		Username:      p.Username.Value,
		FullName:      p.FullName.Value,
		Title:         p.Title.Value,
		Bio:           p.Bio.Value,
		Skills:        p.Skills.Value,
		SocialLinks:   p.SocialLinks.Value,
		Projects:      p.Projects.Value,
		AvatarKey:     p.AvatarKey.Value,
		AvatarURL:     p.AvatarURL.Value,
		ResumeKey:     p.ResumeKey.Value,
		Email:         p.Email.Value,
		Phone:         p.Phone.Value,
		FavoriteColor: p.FavoriteColor.Value,
		DateOfBirth:   p.DateOfBirth.Value,
	})
	if p.Username.Set && p.Username.Value == "" {
		errs["username"] = "Username is required"
	}
	return errs
}

// ProfileView is what GET /profiles/{username} and POST /profiles return.
// Contact and resume fields are omitted when the reader may not see them.
type ProfileView struct {
	Username        string            `json:"username"`
	FullName        string            `json:"full_name"`
	Title           string            `json:"title"`
	Bio             string            `json:"bio"`
	Skills          []string          `json:"skills"`
	SocialLinks     map[string]string `json:"social_links"`
	Projects        []Project         `json:"projects"`
	AvatarURL       string            `json:"avatar_url"`
	ProfileImageURL string            `json:"profile_image_url"`
	Links           []PublicLink      `json:"links"`
	ShowEmail       bool              `json:"show_email"`
	ShowPhone       bool              `json:"show_phone"`
	ShowResume      bool              `json:"show_resume"`
	FavoriteColor   string            `json:"favorite_color"`
	IsOwner         bool              `json:"is_owner"`

	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	ResumeURL string `json:"resume_url,omitempty"`

	// Owner only.
	UserID      string     `json:"user_id,omitempty"`
	ResumeKey   string     `json:"resume_key,omitempty"`
	AvatarKey   string     `json:"avatar_key,omitempty"`
	DateOfBirth string     `json:"date_of_birth,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type ProfileSavedResponse struct {
	Message string       `json:"message"`
	Profile *ProfileView `json:"profile"`
}

func compactStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
