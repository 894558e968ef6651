// Package images tracks product image references and the files behind them.
package images

import (
	"context"

	"go.uber.org/zap"
)

// Deleter removes the file behind an image reference
type Deleter interface {
	Delete(ctx context.Context, ref string) error
}

// Tracker reconciles image references across product mutations and releases
// the ones a product no longer holds. Deletion failures are logged and dropped.
type Tracker struct {
	deleter Deleter
	logger  *zap.Logger
}

// NewTracker creates a Tracker backed by deleter
func NewTracker(deleter Deleter, logger *zap.Logger) *Tracker {
	return &Tracker{deleter: deleter, logger: logger}
}

// Removed returns the distinct references in oldRefs that are absent from newRefs,
// in the order they first appear in oldRefs.
func Removed(oldRefs, newRefs []string) []string {
	keep := make(map[string]struct{}, len(newRefs))
	for _, ref := range newRefs {
		keep[ref] = struct{}{}
	}

	removed := []string{}
	seen := make(map[string]struct{}, len(oldRefs))
	for _, ref := range oldRefs {
		if _, ok := keep[ref]; ok {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		removed = append(removed, ref)
	}
	return removed
}

// Reconcile deletes every reference dropped between oldRefs and newRefs
func (t *Tracker) Reconcile(ctx context.Context, oldRefs, newRefs []string) {
	t.release(ctx, Removed(oldRefs, newRefs))
}

// ReleaseAll deletes every reference in refs
func (t *Tracker) ReleaseAll(ctx context.Context, refs []string) {
	t.release(ctx, Removed(refs, nil))
}

func (t *Tracker) release(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := t.deleter.Delete(ctx, ref); err != nil {
			t.logger.Warn("Failed to delete image",
				zap.String("ref", ref),
				zap.Error(err),
			)
			continue
		}
		t.logger.Debug("Image released", zap.String("ref", ref))
	}
}
