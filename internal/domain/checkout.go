package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutForm is the customer's checkout submission. Card fields are
// validated for shape only; they are never sent upstream, stored or logged.
type CheckoutForm struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	ZipCode    string `json:"zip_code" validate:"required"`
	CardName   string `json:"card_name" validate:"required"`
	CardNumber string `json:"card_number" validate:"required,numeric,len=16"`
	ExpiryDate string `json:"expiry_date" validate:"required"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// Normalize trims every field and strips whitespace from the card number.
func (f *CheckoutForm) Normalize() {
	for _, s := range []*string{
		&f.FirstName, &f.LastName, &f.Email, &f.Phone, &f.Address, &f.City,
		&f.State, &f.ZipCode, &f.CardName, &f.ExpiryDate, &f.CVV,
	} {
		*s = strings.TrimSpace(*s)
	}
	f.CardNumber = strings.Join(strings.Fields(f.CardNumber), "")
}

// FullName is "First Last".
func (f CheckoutForm) FullName() string {
	return f.FirstName + " " + f.LastName
}

// LogValue keeps card data out of logs.
func (f CheckoutForm) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", f.FullName()),
		slog.String("email", f.Email),
		slog.String("city", f.City),
	)
}

// ContactForm is a visitor message from the contact page.
type ContactForm struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"max=50"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

func (f *ContactForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Message = strings.TrimSpace(f.Message)
}

// Message is the body accepted by the storefront API's message endpoint.
type Message struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// MessageID identifies a stored message. Numeric upstream, opaque here.
type MessageID string

func (id *MessageID) UnmarshalJSON(data []byte) error {
	s, err := decodeOpaqueID(data)
	if err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	*id = MessageID(s)
	return nil
}

// Receipt is the API's acknowledgement of a stored message.
type Receipt struct {
	Message string    `json:"message"`
	ID      MessageID `json:"id"`
}

// OrderSubjectLine is the subject every order message is filed under.
const OrderSubjectLine = "New Order"

type OrderStatus string

const OrderSubmitted OrderStatus = "submitted"

// OrderSubmission is the result of a successful checkout.
type OrderSubmission struct {
	Status      OrderStatus     `json:"status"`
	MessageID   MessageID       `json:"message_id"`
	LineCount   int             `json:"line_count"`
	ItemCount   int             `json:"item_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// FormatOrderMessage renders the human-readable order text:
//
//	Order placed by Ada Lovelace. Items: Ottoman (x2), Cushion (x1). Total: $55.00
func FormatOrderMessage(firstName, lastName string, state CartState) string {
	items := make([]string, 0, state.LineCount())
	for _, l := range state.lines {
		items = append(items, fmt.Sprintf("%s (x%d)", l.Name, l.Quantity))
	}
	return fmt.Sprintf("Order placed by %s %s. Items: %s. Total: $%s",
		firstName, lastName, strings.Join(items, ", "), state.Subtotal().StringFixed(2))
}

func (o OrderSubmission) MarshalJSON() ([]byte, error) {
	type alias OrderSubmission
	return json.Marshal(struct {
		alias
		Subtotal string `json:"subtotal"`
	}{alias: alias(o), Subtotal: o.Subtotal.StringFixed(2)})
}
