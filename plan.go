package batchcount

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/bcongdon/batchcount/internal/pkg/corfs"
	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// Planner enumerates input objects and persists the manifest that fixes
// the shard index of every input.
type Planner struct {
	fs corfs.FileSystem
}

// NewPlanner creates a Planner backed by fs.
func NewPlanner(fs corfs.FileSystem) *Planner {
	return &Planner{fs: fs}
}

// listInputs lists the keys under prefix, skipping directory markers.
func listInputs(ctx context.Context, fs corfs.FileSystem, prefix locator.Locator) ([]string, error) {
	files, err := fs.ListFiles(ctx, prefix)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		if strings.HasSuffix(file.Key, "/") {
			continue
		}
		keys = append(keys, file.Key)
	}
	return keys, nil
}

// relativeItem removes the first occurrence of prefix from key. This is a
// plain substring removal, not an anchored prefix strip.
func relativeItem(prefix, key string) string {
	if strings.TrimSpace(prefix) == "" {
		return key
	}
	return strings.Replace(key, prefix, "", 1)
}

// Build lists every input under source and writes a manifest describing
// them to plan. Nothing is written unless the listing completes.
func (p *Planner) Build(ctx context.Context, source, destination, plan locator.Locator) (*Manifest, error) {
	log.Infof("Scanning %s", source)
	keys, err := listInputs(ctx, p.fs, source)
	if err != nil {
		return nil, newError("plan", source, ErrPlanningFailed, err)
	}
	log.Debugf("Found %d input objects under %s", len(keys), source)

	items := make([]string, 0, len(keys))
	for _, key := range keys {
		items = append(items, relativeItem(source.Key, key))
	}

	manifest := NewManifest(source, destination, plan, items)
	data, err := manifest.Encode()
	if err != nil {
		return nil, newError("plan", plan, ErrPlanningFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, newError("plan", plan, ErrPlanningFailed, err)
	}
	if err := corfs.WriteAll(ctx, p.fs, plan, data); err != nil {
		return nil, newError("plan", plan, ErrPlanningFailed, err)
	}

	log.Debugf("Saved plan with %d items at %s", manifest.Len(), plan)
	return manifest, nil
}
