package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

type checkoutFingerprint struct {
	Name          string            `json:"name"`
	Phone         string            `json:"phone"`
	Email         string            `json:"email"`
	Street        string            `json:"street,omitempty"`
	Zip           string            `json:"zip,omitempty"`
	City          string            `json:"city,omitempty"`
	OrderType     string            `json:"orderType"`
	PaymentMethod string            `json:"paymentMethod"`
	Notes         string            `json:"notes"`
	Lines         []lineFingerprint `json:"lines"`
}

type lineFingerprint struct {
	MenuItemID string             `json:"menuItemId"`
	Name       string             `json:"name"`
	Quantity   int                `json:"quantity"`
	SizeName   string             `json:"sizeName"`
	SizePrice  int64              `json:"sizePrice"`
	Extras     []extraFingerprint `json:"extras,omitempty"`
}

type extraFingerprint struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// FingerprintCheckout hashes the checkout command without its idempotency key.
// Line order is significant.
func FingerprintCheckout(input ports.CreateOrderInput) (string, error) {
	fp := checkoutFingerprint{
		Name:          strings.TrimSpace(input.Customer.Name),
		Phone:         strings.TrimSpace(input.Customer.Phone),
		Email:         strings.ToLower(strings.TrimSpace(input.Customer.Email)),
		OrderType:     strings.ToLower(string(input.OrderType)),
		PaymentMethod: strings.ToLower(string(input.PaymentMethod)),
		Notes:         strings.TrimSpace(input.Notes),
		Lines:         make([]lineFingerprint, 0, len(input.Lines)),
	}
	if a := input.Customer.Address; a != nil {
		fp.Street, fp.Zip, fp.City = strings.TrimSpace(a.Street), strings.TrimSpace(a.Zip), strings.TrimSpace(a.City)
	}
	for _, line := range input.Lines {
		lf := lineFingerprint{
			MenuItemID: line.MenuItemID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			SizeName:   line.SizeName,
			SizePrice:  line.SizePrice.Int64(),
		}
		for _, extra := range line.Extras {
			lf.Extras = append(lf.Extras, extraFingerprint{Name: extra.Name, Price: extra.Price.Int64()})
		}
		fp.Lines = append(fp.Lines, lf)
	}
	payload, err := json.Marshal(fp)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
