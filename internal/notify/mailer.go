// Package notify sends transactional email: login codes, booking confirmations
// and refund decisions.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"resort-booking/internal/logger"
	"resort-booking/internal/models"

	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Sender delivers composed messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	sender  Sender
	from    string
	baseURL string
	timeout time.Duration
	log     *logger.Logger
}

func NewMailer(sender Sender, from, baseURL string, timeout time.Duration, log *logger.Logger) *Mailer {
	return &Mailer{sender: sender, from: from, baseURL: baseURL, timeout: timeout, log: log}
}

// NewSMTPDialer builds the gomail dialer for the configured SMTP relay.
func NewSMTPDialer(host string, port int, username, password string) *gomail.Dialer {
	return gomail.NewDialer(host, port, username, password)
}

// SendOTP emails a login code.
func (m *Mailer) SendOTP(ctx context.Context, email, name, code string, ttl time.Duration) error {
	body, err := render("otp.html", map[string]any{
		"Name":      name,
		"Code":      code,
		"ExpiresIn": ttl.Round(time.Minute).String(),
	})
	if err != nil {
		return err
	}
	msg := m.newMessage(email, "Your login code", body)
	return m.send(ctx, msg, "otp", email)
}

// SendBookingConfirmation emails the receipt of a paid booking. Adventure and
// event bookings carry an inline QR code for check-in.
func (m *Mailer) SendBookingConfirmation(ctx context.Context, b *models.Booking) error {
	data := map[string]any{
		"GuestName": guestName(b),
		"Vertical":  string(b.Vertical),
		"ItemName":  b.ItemName,
		"BookingID": b.BookingID,
		"StartDate": b.StartDate.Format("02 Jan 2006"),
		"EndDate":   "",
		"PaymentID": b.RazorpayPaymentID,
		"LineItems": b.LineItems,
		"Currency":  b.Currency,
		"Total":     b.TotalAmount,
		"QRCID":     "",
		"Link":      BookingLink(m.baseURL, b.BookingID),
	}
	if !b.EndDate.IsZero() {
		data["EndDate"] = b.EndDate.Format("02 Jan 2006")
	}

	var qr []byte
	if b.Vertical != models.VerticalStay {
		png, err := BookingQR(m.baseURL, b.BookingID)
		if err != nil {
			m.log.Warn("EMAIL", fmt.Sprintf("Skipping QR for booking %s: %v", b.BookingID, err))
		} else {
			qr = png
			data["QRCID"] = qrFileName(b.BookingID)
		}
	}

	body, err := render("confirmation.html", data)
	if err != nil {
		return err
	}
	msg := m.newMessage(b.UserEmail, fmt.Sprintf("Booking confirmed: %s", b.ItemName), body)
	if qr != nil {
		msg.Embed(qrFileName(b.BookingID), gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(qr)
			return err
		}))
	}
	return m.send(ctx, msg, "confirmation", b.BookingID)
}

// SendRefundDecision tells the customer whether their refund was approved.
func (m *Mailer) SendRefundDecision(ctx context.Context, b *models.Booking) error {
	approved := b.Refund.Status == models.RefundApproved
	body, err := render("refund.html", map[string]any{
		"Status":     string(b.Refund.Status),
		"Approved":   approved,
		"GuestName":  guestName(b),
		"ItemName":   b.ItemName,
		"BookingID":  b.BookingID,
		"Percentage": b.Refund.Percentage,
		"Currency":   b.Currency,
		"Amount":     b.Refund.Amount,
		"RefundID":   b.Refund.GatewayRefundID,
		"Link":       BookingLink(m.baseURL, b.BookingID),
	})
	if err != nil {
		return err
	}
	msg := m.newMessage(b.UserEmail, fmt.Sprintf("Refund %s: %s", b.Refund.Status, b.ItemName), body)
	return m.send(ctx, msg, "refund", b.BookingID)
}

func (m *Mailer) newMessage(to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	return msg
}

// send runs the blocking SMTP exchange, giving up after the mail timeout or
// when ctx ends. An abandoned send finishes in the background.
func (m *Mailer) send(ctx context.Context, msg *gomail.Message, kind, ref string) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- m.sender.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			m.log.Error("EMAIL", fmt.Sprintf("Failed to send %s email for %s: %v", kind, ref, err))
			return fmt.Errorf("send %s email: %w", kind, err)
		}
		m.log.Info("EMAIL", fmt.Sprintf("Sent %s email for %s", kind, ref))
		return nil
	case <-ctx.Done():
		m.log.Error("EMAIL", fmt.Sprintf("Timed out sending %s email for %s", kind, ref))
		return fmt.Errorf("send %s email: %w", kind, ctx.Err())
	}
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func guestName(b *models.Booking) string {
	if b.GuestName != "" {
		return b.GuestName
	}
	return b.UserEmail
}

func qrFileName(bookingID string) string {
	return "qr-" + bookingID + ".png"
}
