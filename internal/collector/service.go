// Package collector stores contact submissions and sends the confirmation e-mail.
//
// The Service is the in-process collector; Handler exposes it over HTTP with the CORS
// behavior browsers expect, and Client calls a remote collector over HTTP.
package collector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/LeadPipe/internal/mailer"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

// ContactStore is the part of the store the collector needs.
type ContactStore interface {
	InsertContact(ctx context.Context, sub models.Submission) (models.Contact, error)
}

// Service validates, stores and confirms submissions.
type Service struct {
	store  ContactStore
	mailer mailer.Mailer
	brand  mailer.Brand
}

// NewService creates a collector Service. A nil mailer logs e-mails instead of sending them.
func NewService(st ContactStore, m mailer.Mailer, brand mailer.Brand) *Service {
	if m == nil {
		m = mailer.LogMailer{}
	}
	return &Service{store: st, mailer: m, brand: brand}
}

// Collect inserts the submission exactly once and then attempts one confirmation e-mail.
// A failed insert is returned before any e-mail is attempted. A failed e-mail is only logged;
// the stored contact is still returned.
func (s *Service) Collect(ctx context.Context, sub models.Submission) (models.Contact, error) {
	if err := sub.Validate(); err != nil {
		slog.Warn("Service.Collect: invalid submission", "error", err)
		return models.Contact{}, err
	}
	if industry, ok := models.CanonicalIndustry(sub.Industry); ok {
		sub.Industry = industry
	}

	contact, err := s.store.InsertContact(ctx, sub)
	if err != nil {
		slog.Error("Service.Collect: failed to store contact", "error", err)
		return models.Contact{}, fmt.Errorf("failed to store contact: %w", err)
	}
	slog.Info("Service.Collect: contact stored", "id", contact.ID)

	msg, err := mailer.ComposeConfirmation(contact, s.brand)
	if err != nil {
		slog.Error("Service.Collect: failed to compose confirmation", "error", err, "id", contact.ID)
		return contact, nil
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.Error("Service.Collect: confirmation e-mail failed", "error", err, "id", contact.ID)
	}
	return contact, nil
}

// Submit lets the Service act as the flow's submitter in-process.
func (s *Service) Submit(ctx context.Context, sub models.Submission) (models.Contact, error) {
	return s.Collect(ctx, sub)
}
