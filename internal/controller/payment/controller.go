// Package payment provides HTTP handlers for charges, payout accounts,
// earnings and the payment gateway webhook.
package payment

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/payment"
	"Fixer-backend/internal/utilities"
)

// SignatureHeader carries the gateway's webhook signature.
const SignatureHeader = "Stripe-Signature"

const maxWebhookBytes = int64(64 * 1024)

// PaymentController handles payment related endpoints
type PaymentController struct {
	Payments *payment.Service
	Log      logger.Logger
}

// NewPaymentController creates a new instance of PaymentController
func NewPaymentController(svc *payment.Service, log logger.Logger) *PaymentController {
	return &PaymentController{
		Payments: svc,
		Log:      log,
	}
}

// IntentRequest opens a charge for a job.
type IntentRequest struct {
	JobID  uint    `json:"job_id" binding:"required"`
	Amount float64 `json:"amount"`
}

// ConfirmRequest names the intent to confirm.
type ConfirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// CreateIntentHandler opens a charge for the poster of a job.
// @Summary Create payment intent
// @Description Only the job poster can pay. A pending charge of the same poster is reused.
// @Tags Payment
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param intent body IntentRequest true "Job and optional amount"
// @Success 200 {object} payment.IntentResult "Client secret and payment record"
// @Failure 400 {object} utilities.ErrorResponse "Invalid request body"
// @Failure 403 {object} utilities.ErrorResponse "Not the poster"
// @Failure 502 {object} utilities.ErrorResponse "Payment gateway unavailable"
// @Router /payments/intent [post]
func (pc *PaymentController) CreateIntentHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utilities.RespondError(c, pc.Log, apperror.Validation("Invalid request body: %s", err.Error()))
		return
	}

	res, err := pc.Payments.CreatePaymentIntent(c.Request.Context(), caller, req.JobID, req.Amount)
	if err != nil {
		utilities.RespondError(c, pc.Log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ConfirmHandler records a charge once the gateway reports it succeeded.
// @Summary Confirm payment
// @Tags Payment
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param confirm body ConfirmRequest true "Payment intent id"
// @Success 200 {object} model.Payment "Completed payment"
// @Failure 400 {object} utilities.ErrorResponse "Payment has not succeeded"
// @Failure 404 {object} utilities.ErrorResponse "Unknown payment intent"
// @Router /payments/confirm [post]
func (pc *PaymentController) ConfirmHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utilities.RespondError(c, pc.Log, apperror.Validation("Invalid request body: %s", err.Error()))
		return
	}

	p, err := pc.Payments.ConfirmPayment(c.Request.Context(), caller, req.PaymentIntentID)
	if err != nil {
		utilities.RespondError(c, pc.Log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ConnectAccountHandler starts payout onboarding for a worker.
// @Summary Create payout account
// @Description Requires an e-mail on the account. A pending account gets a fresh onboarding link.
// @Tags Payment
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Success 200 {object} payment.AccountResult "Account id and onboarding url"
// @Failure 400 {object} utilities.ErrorResponse "Missing e-mail"
// @Failure 409 {object} utilities.ErrorResponse "Account already set up"
// @Router /payments/connect-account [post]
func (pc *PaymentController) ConnectAccountHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	res, err := pc.Payments.CreateConnectedAccount(c.Request.Context(), caller)
	if err != nil {
		utilities.RespondError(c, pc.Log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// EarningsHandler lists the caller's earnings.
// @Summary List my earnings
// @Tags Payment
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Success 200 {array} model.Earning "Earnings, newest first"
// @Router /earnings [get]
func (pc *PaymentController) EarningsHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	earnings, err := pc.Payments.ListEarnings(c.Request.Context(), caller)
	if err != nil {
		utilities.RespondError(c, pc.Log, err)
		return
	}
	c.JSON(http.StatusOK, earnings)
}

// WebhookHandler applies one gateway event.
// @Summary Payment gateway webhook
// @Description Signed by the gateway. Redelivered events are acknowledged without being applied twice.
// @Tags Payment
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Gateway signature"
// @Success 200 {object} WebhookResponse "Event received"
// @Failure 400 {object} utilities.ErrorResponse "Invalid signature or payload"
// @Router /webhook [post]
func (pc *PaymentController) WebhookHandler(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		utilities.RespondError(c, pc.Log, apperror.Validation("failed to read webhook body"))
		return
	}

	res, err := pc.Payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader(SignatureHeader))
	if err != nil {
		if appErr, ok := apperror.As(err); ok && appErr.HTTPStatus() < http.StatusInternalServerError {
			pc.Log.Warn("webhook rejected", map[string]interface{}{"code": string(appErr.Code), "error": appErr.Message})
			c.JSON(http.StatusBadRequest, utilities.ErrorResponse{Error: appErr.Message, Code: string(appErr.Code)})
			return
		}
		utilities.RespondError(c, pc.Log, err)
		return
	}

	pc.Log.Debug("webhook processed", map[string]interface{}{
		"event_id":  res.EventID,
		"type":      res.Type,
		"duplicate": res.Duplicate,
		"ignored":   res.Ignored,
	})
	c.JSON(http.StatusOK, WebhookResponse{Received: true})
}
