package normalize

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultProjectID is used when a payload does not name its repository.
const DefaultProjectID = "default-project"

// ErrInvalidEnvelope is returned for bodies that are not {event, payload} objects.
var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope is the transport-neutral input: an event kind plus its raw payload.
type Envelope struct {
	Event   string
	Payload []byte
}

// ParseEnvelope reads a {"event": string, "payload": object} document.
func ParseEnvelope(body []byte) (Envelope, error) {
	if !gjson.ValidBytes(body) {
		return Envelope{}, ErrInvalidEnvelope
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return Envelope{}, ErrInvalidEnvelope
	}
	event := root.Get("event")
	if event.Type != gjson.String || strings.TrimSpace(event.String()) == "" {
		return Envelope{}, ErrInvalidEnvelope
	}
	payload := root.Get("payload")
	if !payload.IsObject() {
		return Envelope{}, ErrInvalidEnvelope
	}
	return Envelope{
		Event:   strings.TrimSpace(event.String()),
		Payload: []byte(payload.Raw),
	}, nil
}

// NewEnvelope pairs an event kind delivered out of band, such as the
// X-GitHub-Event header, with a raw payload that must be a JSON object.
func NewEnvelope(event string, payload []byte) (Envelope, error) {
	event = strings.TrimSpace(event)
	if event == "" || !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return Envelope{}, ErrInvalidEnvelope
	}
	return Envelope{Event: event, Payload: payload}, nil
}

// ProjectID derives "owner/name" from payload.repository, falling back to
// DefaultProjectID when either part is missing.
func ProjectID(payload []byte) string {
	if !gjson.ValidBytes(payload) {
		return DefaultProjectID
	}
	repo := gjson.GetBytes(payload, "repository")
	owner := strings.TrimSpace(repo.Get("owner.login").String())
	name := strings.TrimSpace(repo.Get("name").String())
	if owner == "" || name == "" {
		return DefaultProjectID
	}
	return owner + "/" + name
}
