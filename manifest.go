package batchcount

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// Manifest is the persisted migration plan. Items holds one relative
// identifier per input object in listing order; an item's position is the
// shard index that processes it.
type Manifest struct {
	Metadata ManifestMetadata `json:"metadata"`
	Items    []string         `json:"items"`
}

// ManifestMetadata describes where a plan's inputs, outputs and the plan
// itself live.
type ManifestMetadata struct {
	Source       locator.Locator `json:"source"`
	Destination  locator.Locator `json:"destination"`
	PlanLocation locator.Locator `json:"planLocation"`
	TotalItems   int             `json:"totalItems"`
}

// NewManifest builds a Manifest over items. The slice is kept as is: never
// sorted or deduplicated.
func NewManifest(source, destination, plan locator.Locator, items []string) *Manifest {
	if items == nil {
		items = []string{}
	}
	return &Manifest{
		Metadata: ManifestMetadata{
			Source:       source,
			Destination:  destination,
			PlanLocation: plan,
			TotalItems:   len(items),
		},
		Items: items,
	}
}

// Validate checks the manifest's internal consistency.
func (m *Manifest) Validate() error {
	if m.Metadata.TotalItems != len(m.Items) {
		return fmt.Errorf("totalItems is %d but plan has %d items", m.Metadata.TotalItems, len(m.Items))
	}
	if m.Metadata.Source.Container == "" {
		return errors.New("source has no container")
	}
	if m.Metadata.Destination.Container == "" {
		return errors.New("destination has no container")
	}
	return nil
}

// Len returns the number of shards in the plan.
func (m *Manifest) Len() int {
	return len(m.Items)
}

// Item returns the item processed by shard index.
func (m *Manifest) Item(index int) (string, error) {
	if index < 0 || index >= len(m.Items) {
		return "", errors.Wrapf(ErrIndexOutOfRange, "index %d, plan has %d items", index, len(m.Items))
	}
	return m.Items[index], nil
}

// SourceOf returns the input object for item.
func (m *Manifest) SourceOf(item string) locator.Locator {
	return m.Metadata.Source.Join(item)
}

// DestinationOf returns the result object for item.
func (m *Manifest) DestinationOf(item string) locator.Locator {
	return m.Metadata.Destination.Join(item)
}

// Encode serializes the manifest as indented JSON.
func (m *Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// DecodeManifest parses and validates an encoded manifest.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(ErrPlanCorrupt, err.Error())
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(ErrPlanCorrupt, err.Error())
	}
	return &m, nil
}
