package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v74/github"
	"github.com/google/uuid"

	"taskmatch/internal/api"
	"taskmatch/internal/normalize"
	"taskmatch/internal/store"
)

const (
	deliveryAccepted  = "accepted"
	deliveryDuplicate = "duplicate"
	deliveryRejected  = "rejected"
	deliveryFailed    = "failed"
	deliveryPing      = "ping"

	pingEvent = "ping"
)

func (s *Server) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBodyReq(w, r, webhookMaxBody)
	if !ok {
		s.metrics.ObserveDelivery(deliveryRejected)
		return
	}

	if secret := s.opts.WebhookSecret; secret != "" {
		signature := r.Header.Get(github.SHA256SignatureHeader)
		if err := github.ValidateSignature(signature, body, []byte(secret)); err != nil {
			s.metrics.ObserveDelivery(deliveryRejected)
			s.writeErrorReq(w, r, http.StatusUnauthorized, makeAPIError(http.StatusUnauthorized, "unauthorized",
				ErrCodeInvalidSignature, fmt.Errorf("invalid webhook signature: %w", err)))
			return
		}
	}

	event := strings.TrimSpace(github.WebHookType(r))
	deliveryID := strings.TrimSpace(github.DeliveryID(r))
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	noteRequest(r.Context(), "event", event)
	if event == pingEvent {
		s.metrics.ObserveDelivery(deliveryPing)
		s.writeJSON(w, http.StatusOK, api.WebhookResponse{DeliveryID: deliveryID, Event: event})
		return
	}

	env, err := normalize.NewEnvelope(event, body)
	if err != nil {
		s.metrics.ObserveDelivery(deliveryRejected)
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("%w: expected %s header and a JSON object body", err, github.EventTypeHeader), ErrCodeInvalidEnvelope))
		return
	}

	ctx := r.Context()
	seen, err := s.deliverySeen(ctx, deliveryID)
	if err != nil {
		s.metrics.ObserveDelivery(deliveryFailed)
		s.writeStoreError(w, r, err)
		return
	}
	if seen {
		noteRequest(ctx, "deduped", true)
		s.writeDeduped(w, deliveryID, event)
		return
	}

	outcome, err := s.pipeline.Classify(ctx, env)
	if err != nil {
		s.metrics.ObserveDelivery(deliveryFailed)
		s.writeServiceError(w, r, classificationError(err))
		return
	}

	receipt := store.DeliveryReceipt{
		DeliveryID: deliveryID,
		EventType:  event,
		ProjectID:  outcome.ProjectID,
		Results:    len(outcome.Results),
		ArchiveKey: s.archiveBody(ctx, deliveryID, body),
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.store.RecordDelivery(ctx, receipt); err != nil {
		if errors.Is(err, store.ErrDuplicateDelivery) {
			noteRequest(ctx, "deduped", true)
			s.seen.Add(deliveryID, struct{}{})
			s.writeDeduped(w, deliveryID, event)
			return
		}
		s.log().Error("record webhook delivery", "delivery_id", deliveryID, "error", err)
	}
	s.seen.Add(deliveryID, struct{}{})
	s.metrics.ObserveDelivery(deliveryAccepted)
	noteOutcome(ctx, outcome.ProjectID, outcome.Results)

	s.log().Info("webhook delivery classified",
		"delivery_id", deliveryID,
		"event", event,
		"project", outcome.ProjectID,
		"results", len(outcome.Results))
	s.writeJSON(w, http.StatusOK, api.WebhookResponse{
		DeliveryID: deliveryID,
		Event:      event,
		ProjectID:  outcome.ProjectID,
		Results:    outcome.Results,
	})
}

func (s *Server) writeDeduped(w http.ResponseWriter, deliveryID, event string) {
	s.metrics.ObserveDelivery(deliveryDuplicate)
	s.log().Debug("duplicate webhook delivery", "delivery_id", deliveryID, "event", event)
	s.writeJSON(w, http.StatusOK, api.WebhookResponse{DeliveryID: deliveryID, Event: event, Deduped: true})
}

// deliverySeen checks the in-memory window before the delivery log.
func (s *Server) deliverySeen(ctx context.Context, deliveryID string) (bool, error) {
	if s.seen.Contains(deliveryID) {
		return true, nil
	}
	seen, err := s.store.DeliverySeen(ctx, deliveryID)
	if err != nil {
		return false, err
	}
	if seen {
		s.seen.Add(deliveryID, struct{}{})
	}
	return seen, nil
}

// archiveBody stores the raw body when archiving is enabled. Failures are
// logged and do not fail the delivery.
func (s *Server) archiveBody(ctx context.Context, deliveryID string, body []byte) string {
	if s.archive == nil {
		return ""
	}
	entry, err := s.archive.Put(ctx, body)
	if err != nil {
		s.log().Warn("archive webhook delivery", "delivery_id", deliveryID, "error", err)
		return ""
	}
	return entry.Key
}
