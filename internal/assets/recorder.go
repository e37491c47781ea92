// Package assets records generated and uploaded assets for a user.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/reduction"
	"github.com/fjod/storefront/internal/store"
	"github.com/fjod/storefront/pkg/logger"
)

const assetsCollection = "assets"

type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Writer interface {
	WriteOnce(ctx context.Context, collection string, data map[string]any) (string, error)
}

type Metrics interface {
	ObserveGeneration(result string)
	AssetPersistFailed()
}

// Generated is shown to the user as soon as generation succeeds, whether or
// not the asset record could be stored.
type Generated struct {
	Asset     domain.Asset `json:"asset"`
	DataURI   string       `json:"dataUri"`
	Persisted bool         `json:"persisted"`
}

type Recorder struct {
	appID   string
	images  ImageGenerator
	store   Writer
	metrics Metrics
	logger  *slog.Logger
}

func NewRecorder(appID string, images ImageGenerator, w Writer, metrics Metrics, log *slog.Logger) *Recorder {
	return &Recorder{
		appID:   appID,
		images:  images,
		store:   w,
		metrics: metrics,
		logger:  logger.OrDefault(log),
	}
}

// Generate calls the image generator with the raw prompt. For an
// authenticated uid the asset record is stored best effort; a failed write is
// logged and counted but does not fail the call.
func (r *Recorder) Generate(ctx context.Context, uid, prompt string) (*Generated, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.ErrEmptyPrompt
	}

	uri, err := r.images.Generate(ctx, prompt)
	if err != nil {
		r.observe("error")
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	if uri == "" {
		r.observe("empty")
		return nil, fmt.Errorf("%w: no image returned", domain.ErrGeneration)
	}
	r.observe("success")

	out := &Generated{
		Asset:   domain.Asset{Prompt: prompt, Type: domain.AssetImage, UserID: uid},
		DataURI: uri,
	}
	if uid == "" {
		return out, nil
	}

	id, err := r.persist(ctx, out.Asset)
	if err != nil {
		r.logger.Warn("failed to persist generated asset", "user_id", uid, "err", err)
		if r.metrics != nil {
			r.metrics.AssetPersistFailed()
		}
		return out, nil
	}
	out.Asset.ID = id
	out.Persisted = true
	return out, nil
}

// RecordUpload stores the asset record of a completed cloud upload.
func (r *Recorder) RecordUpload(ctx context.Context, uid, name string) (domain.Asset, error) {
	if uid == "" {
		return domain.Asset{}, domain.ErrAnonymous
	}
	asset := domain.Asset{
		Prompt: "Cloud Upload: " + name,
		Type:   domain.AssetFile,
		UserID: uid,
	}
	id, err := r.persist(ctx, asset)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("%w: failed to record upload: %w", domain.ErrPersistence, err)
	}
	asset.ID = id
	return asset, nil
}

func (r *Recorder) persist(ctx context.Context, asset domain.Asset) (string, error) {
	payload, _, err := reduction.Reduce(asset)
	if err != nil {
		return "", err
	}
	payload["timestamp"] = store.ServerTimestamp
	return r.store.WriteOnce(ctx, store.PrivateCollection(r.appID, asset.UserID, assetsCollection), payload)
}

func (r *Recorder) observe(result string) {
	if r.metrics != nil {
		r.metrics.ObserveGeneration(result)
	}
}
