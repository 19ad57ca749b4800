package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/prolynk/backend/internal/models"
	"github.com/prolynk/backend/internal/services"
)

const eventTimeout = 60 * time.Second

// EventHandler receives platform events: identity-provider confirmations and
// object storage notifications.
type EventHandler struct {
	accounts   *services.AccountService
	moderation *services.ModerationService
	bucket     string
}

func NewEventHandler(accounts *services.AccountService, moderation *services.ModerationService, bucket string) *EventHandler {
	return &EventHandler{accounts: accounts, moderation: moderation, bucket: bucket}
}

type accountConfirmedResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
	Created bool   `json:"created"`
}

type objectReview struct {
	Key     string                     `json:"key"`
	Outcome services.ModerationOutcome `json:"outcome"`
}

type objectFinalizedResponse struct {
	Objects []objectReview `json:"objects"`
}

// AccountConfirmed handles POST /events/account-confirmed. Replays are no-ops.
func (h *EventHandler) AccountConfirmed(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	var ev models.AccountConfirmedEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, r, err)
		return
	}

	in := provisionInput(&ev)
	if in.Identity.Email == "" {
		logger.Warn().Str("user", in.Identity.Subject).Str("trigger", ev.TriggerSource).
			Msg("[AccountConfirmed] no email attribute, skipping")
		writeJSON(w, http.StatusOK, accountConfirmedResponse{Message: "Skipped: no email", UserID: in.Identity.Subject})
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	acct, created, err := h.accounts.Provision(logger.WithContext(ctx), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info().Str("user", acct.UserID).Bool("created", created).Bool("federated", in.Identity.Federated).
		Msg("[AccountConfirmed] account provisioned")
	msg := "Account provisioned"
	if !created {
		msg = "Account already exists"
	}
	writeJSON(w, http.StatusOK, accountConfirmedResponse{Message: msg, UserID: acct.UserID, Created: created})
}

// provisionInput maps the confirmation attributes. Sign-ups without a
// custom:username came through a social provider.
func provisionInput(ev *models.AccountConfirmedEvent) services.ProvisionInput {
	subject := ev.Attr("sub")
	if subject == "" {
		subject = strings.TrimSpace(ev.UserName)
	}
	name := ev.Attr("custom:fullname")
	if name == "" {
		name = ev.Attr("name")
	}
	requested := strings.ToLower(ev.Attr("custom:username"))

	return services.ProvisionInput{
		Identity: models.Identity{
			Subject:    subject,
			Email:      ev.Attr("email"),
			Name:       name,
			GivenName:  ev.Attr("given_name"),
			FamilyName: ev.Attr("family_name"),
			Picture:    ev.Attr("picture"),
			Federated:  requested == "" || isExternalTrigger(ev.TriggerSource),
		},
		RequestedUsername: requested,
		DateOfBirth:       ev.Attr("custom:date_of_birth"),
	}
}

func isExternalTrigger(source string) bool {
	for _, marker := range []string{"ExternalProvider", "Google", "LinkedIn"} {
		if strings.Contains(source, marker) {
			return true
		}
	}
	return false
}

// ObjectFinalized handles POST /events/object-finalized. Review failures
// answer 500 so the platform redelivers.
func (h *EventHandler) ObjectFinalized(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, errInvalidBody)
		return
	}
	objects, err := parseObjectEvent(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.Debug().
		Str("ce_type", r.Header.Get("Ce-Type")).
		Str("ce_source", r.Header.Get("Ce-Source")).
		Int("objects", len(objects)).
		Msg("[ObjectFinalized] event received")

	ctx, cancel := context.WithTimeout(r.Context(), eventTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx)

	resp := objectFinalizedResponse{Objects: []objectReview{}}
	for _, obj := range objects {
		if h.bucket != "" && obj.Bucket != "" && obj.Bucket != h.bucket {
			logger.Info().Str("bucket", obj.Bucket).Str("key", obj.Name).Msg("[ObjectFinalized] foreign bucket, skipping")
			resp.Objects = append(resp.Objects, objectReview{Key: obj.Name, Outcome: services.OutcomeSkipped})
			continue
		}
		outcome, err := h.moderation.ReviewUpload(ctx, obj.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Objects = append(resp.Objects, objectReview{Key: obj.Name, Outcome: outcome})
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseObjectEvent accepts a bare {bucket,name} notification, the same
// wrapped in a CloudEvent "data" field, or an S3 Records batch.
func parseObjectEvent(raw []byte) ([]models.ObjectFinalizedEvent, error) {
	var s3ev models.S3EventNotification
	if err := json.Unmarshal(raw, &s3ev); err != nil {
		return nil, errInvalidBody
	}
	if len(s3ev.Records) > 0 {
		out := make([]models.ObjectFinalizedEvent, 0, len(s3ev.Records))
		for _, rec := range s3ev.Records {
			// S3 keys arrive form-encoded.
			key, err := url.QueryUnescape(rec.S3.Object.Key)
			if err != nil {
				key = rec.S3.Object.Key
			}
			if key == "" {
				continue
			}
			out = append(out, models.ObjectFinalizedEvent{Bucket: rec.S3.Bucket.Name, Name: key})
		}
		return out, nil
	}

	var ev models.ObjectFinalizedEvent
	_ = json.Unmarshal(raw, &ev)
	if ev.Name == "" {
		var envelope models.CloudEventEnvelope
		_ = json.Unmarshal(raw, &envelope)
		ev = envelope.Data
	}
	if ev.Name == "" {
		return nil, nil
	}
	return []models.ObjectFinalizedEvent{ev}, nil
}
