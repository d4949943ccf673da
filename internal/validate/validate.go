// Package validate enforces the ClassificationResult contract and turns
// untrusted classifier output into well-formed results.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"taskmatch/internal/models"
)

// InvalidResponseReason is the reason carried by substituted results.
const InvalidResponseReason = "invalid response from classifier"

// ErrSchema is the sentinel wrapped by every SchemaError.
var ErrSchema = errors.New("classification result violates schema")

// SchemaError lists the fields that failed validation.
type SchemaError struct {
	Fields []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchema, strings.Join(e.Fields, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// Subject identifies the event a raw response is about, so a substituted
// result still names it. When NodeIDs is non-nil a response may only match
// one of those ids.
type Subject struct {
	ID           string
	EventType    models.EventType
	RelevantData *models.RelevantData
	NodeIDs      []string
}

// SubjectOf copies the identifying parts of result.
func SubjectOf(result models.ClassificationResult) Subject {
	return Subject{ID: result.SubjectID, EventType: result.EventType, RelevantData: result.RelevantData}
}

// Validator is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// New builds a Validator. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(matchedIDConsistency, models.ClassificationResult{})
	return &Validator{validate: v, logger: logger}
}

// Validate returns result unchanged or a *SchemaError.
func (v *Validator) Validate(result models.ClassificationResult) (models.ClassificationResult, error) {
	if err := v.validate.Struct(result); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return result, &SchemaError{Fields: fields}
		}
		return result, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return result, nil
}

// Fallback is the deterministic "no match" result used in place of bad output.
func Fallback(subject Subject) models.ClassificationResult {
	return models.ClassificationResult{
		SubjectID:    subjectID(subject.ID),
		EventType:    subject.EventType,
		WasTask:      false,
		Reason:       InvalidResponseReason,
		Confidence:   0,
		RelevantData: subject.RelevantData,
	}
}

// wireResult mirrors the JSON a remote classifier returns. Pointers detect
// missing required fields.
type wireResult struct {
	WasTask       *bool                `json:"was_task"`
	MatchedNodeID *string              `json:"matched_node_id"`
	Reason        string               `json:"reason"`
	Confidence    *float64             `json:"confidence"`
	AncestorIDs   []string             `json:"ancestor_ids"`
	RelatedIDs    []string             `json:"related_ids"`
	RelevantData  *models.RelevantData `json:"relevant_data"`
}

// ParseResponse decodes raw classifier output, optionally wrapped in a
// markdown code fence, and validates it. The subject id always comes from
// subject, never from the response. Anything that does not parse or validate,
// or that names a node outside subject.NodeIDs, is replaced with
// Fallback(subject). It never returns an error.
func (v *Validator) ParseResponse(raw []byte, subject Subject) models.ClassificationResult {
	var wire wireResult
	if err := json.Unmarshal(stripCodeFence(raw), &wire); err != nil {
		v.logger.Warn("classifier response is not valid json", "subject", subject.ID, "error", err)
		return Fallback(subject)
	}
	if wire.WasTask == nil || wire.Confidence == nil {
		v.logger.Warn("classifier response missing required fields", "subject", subject.ID)
		return Fallback(subject)
	}

	result := models.ClassificationResult{
		SubjectID:     subjectID(subject.ID),
		EventType:     subject.EventType,
		WasTask:       *wire.WasTask,
		MatchedNodeID: wire.MatchedNodeID,
		Reason:        strings.TrimSpace(wire.Reason),
		Confidence:    *wire.Confidence,
		AncestorIDs:   wire.AncestorIDs,
		RelatedIDs:    wire.RelatedIDs,
		RelevantData:  wire.RelevantData,
	}
	if result.MatchedNodeID != nil && subject.NodeIDs != nil {
		id, ok := knownNodeID(*result.MatchedNodeID, subject.NodeIDs)
		if !ok {
			v.logger.Warn("classifier response names an unknown node", "subject", subject.ID, "node", *result.MatchedNodeID)
			return Fallback(subject)
		}
		result.MatchedNodeID = models.StringPtr(id)
	}
	if result.RelevantData == nil {
		result.RelevantData = subject.RelevantData
	}

	validated, err := v.Validate(result)
	if err != nil {
		v.logger.Warn("classifier response failed validation", "subject", subject.ID, "error", err)
		return Fallback(subject)
	}
	return validated
}

func matchedIDConsistency(sl validator.StructLevel) {
	result := sl.Current().Interface().(models.ClassificationResult)
	switch {
	case !result.WasTask && result.MatchedNodeID != nil:
		sl.ReportError(result.MatchedNodeID, "MatchedNodeID", "matched_node_id", "absent_without_task", "")
	case result.WasTask && strings.TrimSpace(result.MatchedID()) == "":
		sl.ReportError(result.MatchedNodeID, "MatchedNodeID", "matched_node_id", "required_with_task", "")
	}
}

// knownNodeID returns the canonical spelling of id from ids, compared
// case-insensitively.
func knownNodeID(id string, ids []string) (string, bool) {
	id = strings.TrimSpace(id)
	for _, known := range ids {
		if strings.EqualFold(id, known) {
			return known, true
		}
	}
	return "", false
}

func stripCodeFence(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = bytes.TrimPrefix(body, []byte("```"))
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = bytes.TrimPrefix(body, []byte("json"))
	}
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte("```"))
	return bytes.TrimSpace(body)
}

func subjectID(id string) string {
	if strings.TrimSpace(id) == "" {
		return "unknown"
	}
	return id
}
