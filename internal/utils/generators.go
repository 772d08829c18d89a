package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GenerateID returns a new random UUID string.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateReceipt builds a gateway receipt reference. Razorpay caps receipts at 40 characters.
func GenerateReceipt(bookingID string) string {
	receipt := fmt.Sprintf("rcpt_%s", bookingID)
	if len(receipt) > 40 {
		receipt = receipt[:40]
	}
	return receipt
}

// GenerateOTP returns a zero-padded numeric code of the given length.
func GenerateOTP(digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
