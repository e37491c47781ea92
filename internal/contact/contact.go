// Package contact stores messages sent through the contact form.
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/store"
	"github.com/fjod/storefront/pkg/logger"
)

const (
	messagesCollection = "messages"
	anonymousUser      = "anonymous"
)

type Writer interface {
	WriteOnce(ctx context.Context, collection string, data map[string]any) (string, error)
}

type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (f Form) Validate() error {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Email) == "" || strings.TrimSpace(f.Message) == "" {
		return fmt.Errorf("%w: name, email and message are required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(f.Email); err != nil {
		return domain.ErrInvalidEmail
	}
	return nil
}

type Service struct {
	appID  string
	store  Writer
	logger *slog.Logger
}

func NewService(appID string, w Writer, log *slog.Logger) *Service {
	return &Service{appID: appID, store: w, logger: logger.OrDefault(log)}
}

// Submit writes the message to the shared messages collection. Anonymous
// visitors may write too.
func (s *Service) Submit(ctx context.Context, uid string, f Form) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	if uid == "" {
		uid = anonymousUser
	}

	id, err := s.store.WriteOnce(ctx, store.PublicCollection(s.appID, messagesCollection), map[string]any{
		"name":      strings.TrimSpace(f.Name),
		"email":     strings.TrimSpace(f.Email),
		"message":   f.Message,
		"userId":    uid,
		"timestamp": store.ServerTimestamp,
	})
	if err != nil {
		s.logger.Error("failed to store contact message", "user_id", uid, "err", err)
		return "", fmt.Errorf("%w: failed to send message: %w", domain.ErrPersistence, err)
	}
	return id, nil
}
