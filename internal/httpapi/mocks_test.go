package httpapi

import (
	"context"
	"sync"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/assets"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/contact"
	"github.com/fjod/storefront/internal/heartbeat"
	"github.com/fjod/storefront/internal/profile"
	"github.com/fjod/storefront/internal/upload"
	"github.com/shopspring/decimal"
)

type CatalogMock struct {
	items []domain.CartItem
	err   error
}

func (m CatalogMock) List(context.Context) ([]domain.CartItem, error) {
	return m.items, m.err
}

func (m CatalogMock) Get(_ context.Context, id string) (domain.CartItem, error) {
	if m.err != nil {
		return domain.CartItem{}, m.err
	}
	for _, item := range m.items {
		if item.ID == id {
			return item, nil
		}
	}
	return domain.CartItem{}, catalog.ErrTemplateNotFound
}

var (
	landingPage = domain.CartItem{
		ID:       "1",
		Name:     "Landing Page",
		Category: "Web",
		PriceUSD: decimal.NewFromInt(49),
		PriceINR: decimal.NewFromInt(3999),
		Type:     domain.ItemPremium,
	}
	starterKit = domain.CartItem{
		ID:       "2",
		Name:     "Starter Kit",
		Category: "Web",
		PriceUSD: decimal.Zero,
		PriceINR: decimal.Zero,
		Type:     domain.ItemFree,
	}
)

type AssetsMock struct {
	mu        sync.Mutex
	generated *assets.Generated
	genErr    error
	recordErr error
	recorded  []string
}

func (m *AssetsMock) Generate(_ context.Context, uid, prompt string) (*assets.Generated, error) {
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if m.genErr != nil {
		return nil, m.genErr
	}
	return m.generated, nil
}

func (m *AssetsMock) RecordUpload(_ context.Context, uid, name string) (domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return domain.Asset{}, m.recordErr
	}
	m.recorded = append(m.recorded, uid+"/"+name)
	return domain.Asset{ID: "a1", Prompt: "Cloud Upload: " + name, Type: domain.AssetFile, UserID: uid}, nil
}

type UploaderMock struct {
	err error
}

func (m UploaderMock) Upload(_ context.Context, f upload.File) (*upload.Receipt, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &upload.Receipt{URL: "https://storage.test/" + f.Name, Size: len(f.Content)}, nil
}

func (m UploaderMock) Backup(_ context.Context, uid string, data []byte) (*upload.BackupReceipt, error) {
	if uid == "" {
		return nil, domain.ErrAnonymous
	}
	return &upload.BackupReceipt{UserID: uid, Size: len(data)}, nil
}

type ProfilesMock struct {
	profiles map[string]*domain.UserProfile
	err      error
}

func (m *ProfilesMock) Ensure(_ context.Context, uid, name, email string) (*domain.UserProfile, error) {
	if uid == "" {
		return nil, domain.ErrAnonymous
	}
	if m.err != nil {
		return nil, m.err
	}
	if name == "" {
		name = "User"
	}
	p := &domain.UserProfile{ID: "main", Name: name, Email: email, Role: "customer"}
	m.profiles[uid] = p
	return p, nil
}

func (m *ProfilesMock) Load(_ context.Context, uid string) (*domain.UserProfile, error) {
	p, ok := m.profiles[uid]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return p, nil
}

type ContactMock struct {
	err   error
	forms []contact.Form
}

func (m *ContactMock) Submit(_ context.Context, uid string, f contact.Form) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	if m.err != nil {
		return "", m.err
	}
	m.forms = append(m.forms, f)
	return "m1", nil
}

type AssistantMock struct {
	lastInstruction string
}

func (m *AssistantMock) Generate(_ context.Context, prompt, systemInstruction string) string {
	m.lastInstruction = systemInstruction
	return "echo: " + prompt
}

type StatusMock struct{}

func (StatusMock) Report() heartbeat.Report {
	return heartbeat.Report{Status: heartbeat.StatusUpdating, Checks: 3, Patches: 1}
}
