package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/calebreyes/taskdeck-backend/api/responses"
	"github.com/calebreyes/taskdeck-backend/api/validators"
	"github.com/calebreyes/taskdeck-backend/internal/dispatch"
	"github.com/calebreyes/taskdeck-backend/internal/subscriptions"
	"github.com/calebreyes/taskdeck-backend/pkg/db/models"
	pkgerrors "github.com/calebreyes/taskdeck-backend/pkg/errors"
	"github.com/calebreyes/taskdeck-backend/pkg/logger"
)

// SubscriptionService is the management surface the webhook controllers need.
type SubscriptionService interface {
	Create(ctx context.Context, input subscriptions.CreateInput) (*models.WebhookSubscription, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, error)
	Update(ctx context.Context, id uuid.UUID, input subscriptions.UpdateInput) (*models.WebhookSubscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TestDeliverer sends a synthetic delivery to one subscription.
type TestDeliverer interface {
	TestDelivery(ctx context.Context, sub dispatch.Subscription) dispatch.DeliveryResult
}

type createWebhookRequest struct {
	URL    string   `json:"url" validate:"required,url"`
	Events []string `json:"events" validate:"required,min=1,dive,required"`
	Secret *string  `json:"secret,omitempty"`
	Active *bool    `json:"active,omitempty"`
}

type updateWebhookRequest struct {
	URL    *string  `json:"url,omitempty" validate:"omitempty,url"`
	Events []string `json:"events,omitempty" validate:"omitempty,min=1,dive,required"`
	Secret *string  `json:"secret,omitempty"`
	Active *bool    `json:"active,omitempty"`
}

type webhookResponse struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	HasSecret bool      `json:"has_secret"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type testDeliveryResponse struct {
	DeliveryID uuid.UUID `json:"delivery_id"`
	Outcome    string    `json:"outcome"`
	Attempts   int       `json:"attempts"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func toWebhookResponse(sub *models.WebhookSubscription) webhookResponse {
	return webhookResponse{
		ID:        sub.ID,
		ProjectID: sub.ProjectID,
		URL:       sub.URL,
		Events:    append([]string(nil), sub.Events...),
		Active:    sub.Active,
		HasSecret: sub.Secret != nil && *sub.Secret != "",
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

// CreateWebhook registers a new endpoint for a project.
func CreateWebhook(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid project id"))
			return
		}

		var req createWebhookRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Create(r.Context(), subscriptions.CreateInput{
			ProjectID: projectID,
			URL:       req.URL,
			Events:    req.Events,
			Secret:    req.Secret,
			Active:    req.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toWebhookResponse(sub))
	}
}

// ListWebhooks returns every subscription registered for a project.
func ListWebhooks(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid project id"))
			return
		}

		subs, err := svc.ListByProject(r.Context(), projectID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]webhookResponse, 0, len(subs))
		for i := range subs {
			out = append(out, toWebhookResponse(&subs[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// GetWebhook returns a single subscription.
func GetWebhook(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := loadProjectWebhook(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toWebhookResponse(sub))
	}
}

// UpdateWebhook applies partial changes to a subscription.
func UpdateWebhook(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := loadProjectWebhook(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateWebhookRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), sub.ID, subscriptions.UpdateInput{
			URL:    req.URL,
			Events: req.Events,
			Secret: req.Secret,
			Active: req.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toWebhookResponse(updated))
	}
}

// DeleteWebhook removes a subscription.
func DeleteWebhook(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := loadProjectWebhook(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), sub.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// TestWebhook sends a synthetic webhook.test delivery to the endpoint and
// reports the settled outcome, retries included.
func TestWebhook(svc SubscriptionService, deliverer TestDeliverer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := loadProjectWebhook(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		secret := ""
		if sub.Secret != nil {
			secret = *sub.Secret
		}
		events := make([]dispatch.EventType, 0, len(sub.Events))
		for _, raw := range sub.Events {
			events = append(events, dispatch.EventType(raw))
		}

		result := deliverer.TestDelivery(r.Context(), dispatch.Subscription{
			ID:        sub.ID,
			ProjectID: sub.ProjectID,
			URL:       sub.URL,
			Events:    events,
			Active:    sub.Active,
			Secret:    secret,
		})

		resp := testDeliveryResponse{
			DeliveryID: result.DeliveryID,
			Outcome:    string(result.Outcome),
			Attempts:   result.Attempts,
			HTTPStatus: result.HTTPStatus,
		}
		if result.Err != nil {
			resp.Error = result.Err.Error()
		}
		responses.WriteSuccess(w, resp)
	}
}

// loadProjectWebhook parses both path ids and enforces that the subscription
// belongs to the project in the URL.
func loadProjectWebhook(r *http.Request, svc SubscriptionService) (*models.WebhookSubscription, error) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid project id")
	}
	webhookID, err := uuid.Parse(chi.URLParam(r, "webhookID"))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook id")
	}

	sub, err := svc.Get(r.Context(), webhookID)
	if err != nil {
		return nil, err
	}
	if sub.ProjectID != projectID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}
