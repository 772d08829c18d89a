package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"resort-booking/internal/logger"
	"resort-booking/internal/models"

	razorpay "github.com/razorpay/razorpay-go"
)

// GatewayError wraps a failed call to the payment gateway.
type GatewayError struct {
	Operation  string // "create_order", "refund"
	StatusCode int    // HTTP status to answer the client with
	Err        error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Operation, e.Err)
}

func (e *GatewayError) Unwrap() []error {
	return []error{models.ErrGateway, e.Err}
}

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type refundAPI interface {
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay creates orders and issues refunds. The SDK is synchronous and
// takes no context, so ctx is only checked before each call.
type Razorpay struct {
	keyID    string
	secret   string
	currency string
	orders   orderAPI
	payments refundAPI
	log      *logger.Logger
}

func NewRazorpay(keyID, secret, currency string, log *logger.Logger) *Razorpay {
	client := razorpay.NewClient(keyID, secret)
	log.Info("RAZORPAY", fmt.Sprintf("Razorpay client initialized (key %s, currency %s)", maskKey(keyID), currency))
	return &Razorpay{
		keyID:    keyID,
		secret:   secret,
		currency: currency,
		orders:   client.Order,
		payments: client.Payment,
		log:      log,
	}
}

func (r *Razorpay) KeyID() string    { return r.keyID }
func (r *Razorpay) Currency() string { return r.currency }

// Verify checks a checkout callback signature with the key secret.
func (r *Razorpay) Verify(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, r.secret)
}

// CreateOrder registers amount (in rupees) with the gateway. receipt is our booking id.
func (r *Razorpay) CreateOrder(ctx context.Context, amount float64, receipt string, notes map[string]string) (*models.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paise := ToPaise(amount)
	data := map[string]interface{}{
		"amount":   paise,
		"currency": r.currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		n := make(map[string]interface{}, len(notes))
		for k, v := range notes {
			n[k] = v
		}
		data["notes"] = n
	}

	body, err := r.orders.Create(data, nil)
	if err != nil {
		r.log.Error("RAZORPAY", fmt.Sprintf("Order creation failed for receipt %s: %v", receipt, err))
		return nil, &GatewayError{Operation: "create_order", StatusCode: http.StatusBadGateway, Err: err}
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, &GatewayError{Operation: "create_order", StatusCode: http.StatusBadGateway, Err: errors.New("response has no order id")}
	}
	status, _ := body["status"].(string)

	r.log.Info("RAZORPAY", fmt.Sprintf("Created order %s for receipt %s (%d paise)", id, receipt, paise))
	return &models.GatewayOrder{
		ID:       id,
		Amount:   paise,
		Currency: r.currency,
		Receipt:  receipt,
		Status:   status,
	}, nil
}

// Refund returns amount (in rupees) of a captured payment and yields the gateway refund id.
func (r *Razorpay) Refund(ctx context.Context, paymentID string, amount float64, notes map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if paymentID == "" {
		return "", &GatewayError{Operation: "refund", StatusCode: http.StatusBadGateway, Err: errors.New("booking has no captured payment")}
	}
	paise := ToPaise(amount)
	data := map[string]interface{}{"speed": "normal"}
	// receipt ties the gateway refund back to the booking
	if id := notes["booking_id"]; id != "" {
		data["receipt"] = "refund_" + id
	}
	if len(notes) > 0 {
		n := make(map[string]interface{}, len(notes))
		for k, v := range notes {
			n[k] = v
		}
		data["notes"] = n
	}

	body, err := r.payments.Refund(paymentID, int(paise), data, nil)
	if err != nil {
		r.log.Error("RAZORPAY", fmt.Sprintf("Refund of %s failed: %v", paymentID, err))
		return "", &GatewayError{Operation: "refund", StatusCode: http.StatusBadGateway, Err: err}
	}
	id, _ := body["id"].(string)
	r.log.Info("RAZORPAY", fmt.Sprintf("Refunded %d paise of payment %s (refund %s)", paise, paymentID, id))
	return id, nil
}

// ToPaise converts rupees to the integer minor units the gateway expects.
func ToPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "****"
}
