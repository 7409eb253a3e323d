package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	perrors "github.com/jmgilman/go/errors"
)

// Submission is a contact-form payload as accepted by the contact API.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// Validate applies the contact API's field rules.
func (s Submission) Validate() error {
	name := utf8.RuneCountInString(s.Name)
	if name < 1 || name > 200 {
		return perrors.New(perrors.CodeInvalidInput, "name must be between 1 and 200 characters")
	}
	if addr, err := mail.ParseAddress(s.Email); err != nil || addr.Address != strings.TrimSpace(s.Email) {
		return perrors.New(perrors.CodeInvalidInput, "email must be a valid address")
	}
	if utf8.RuneCountInString(s.Subject) > 200 {
		return perrors.New(perrors.CodeInvalidInput, "subject must be at most 200 characters")
	}
	message := utf8.RuneCountInString(s.Message)
	if message < 10 || message > 5000 {
		return perrors.New(perrors.CodeInvalidInput, "message must be between 10 and 5000 characters")
	}
	return nil
}

// EnqueueSubmission validates sub and queues it for delivery to path.
func (s *Store) EnqueueSubmission(ctx context.Context, path string, sub Submission) (Item, error) {
	if err := sub.Validate(); err != nil {
		return Item{}, err
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return Item{}, fmt.Errorf("encode submission: %w", err)
	}
	return s.Enqueue(ctx, path, body)
}
