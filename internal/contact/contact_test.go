package contact

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenWriter struct{}

func (brokenWriter) WriteOnce(context.Context, string, map[string]any) (string, error) {
	return "", errors.New("unavailable")
}

func TestSubmit(t *testing.T) {
	mem := store.NewMemory(nil, nil)
	defer mem.Close()
	svc := NewService("app", mem, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		uid      string
		wantUser string
	}{
		{"signed in", "u1", "u1"},
		{"anonymous", "", "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := svc.Submit(ctx, tt.uid, Form{Name: "Asha", Email: "asha@example.com", Message: "Need a shop"})
			require.NoError(t, err)

			doc, err := mem.ReadOnce(ctx, store.Doc("artifacts/app/public/data/messages", id))
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, doc.Data["userId"])
			assert.Equal(t, "Need a shop", doc.Data["message"])
			assert.NotEqual(t, store.ServerTimestamp, doc.Data["timestamp"])
		})
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc := NewService("app", brokenWriter{}, nil)

	tests := []struct {
		name string
		form Form
		want error
	}{
		{"missing message", Form{Name: "Asha", Email: "asha@example.com"}, domain.ErrValidation},
		{"missing name", Form{Email: "asha@example.com", Message: "hi"}, domain.ErrValidation},
		{"bad email", Form{Name: "Asha", Email: "asha", Message: "hi"}, domain.ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), "u1", tt.form)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, domain.ErrPersistence)
		})
	}
}

func TestSubmit_WriteFailure(t *testing.T) {
	svc := NewService("app", brokenWriter{}, nil)

	_, err := svc.Submit(context.Background(), "u1", Form{Name: "Asha", Email: "asha@example.com", Message: "hi"})

	assert.ErrorIs(t, err, domain.ErrPersistence)
}
