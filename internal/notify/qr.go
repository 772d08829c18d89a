package notify

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// BookingLink is the customer-facing URL of a booking.
func BookingLink(baseURL, bookingID string) string {
	return fmt.Sprintf("%s/bookings/%s", strings.TrimRight(baseURL, "/"), bookingID)
}

// BookingQR renders a 256px PNG QR code for the booking link.
func BookingQR(baseURL, bookingID string) ([]byte, error) {
	png, err := qrcode.Encode(BookingLink(baseURL, bookingID), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode QR for booking %s: %w", bookingID, err)
	}
	return png, nil
}
