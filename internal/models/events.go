package models

// AccountConfirmedEvent is the identity provider's post-confirmation payload.
type AccountConfirmedEvent struct {
	UserName      string `json:"userName"`
	TriggerSource string `json:"triggerSource"`
	Request       struct {
		UserAttributes map[string]string `json:"userAttributes"`
	} `json:"request"`
}

// Attr returns a trimmed user attribute, or "".
func (e *AccountConfirmedEvent) Attr(name string) string {
	if e.Request.UserAttributes == nil {
		return ""
	}
	return trimmed(e.Request.UserAttributes[name])
}

// ObjectFinalizedEvent is the minimal shape of a storage "object created"
// notification.
type ObjectFinalizedEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// CloudEventEnvelope wraps the payload under "data" (structured content mode).
type CloudEventEnvelope struct {
	Data ObjectFinalizedEvent `json:"data"`
}

// S3EventNotification is the record list S3 sends for ObjectCreated events.
type S3EventNotification struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}
