// Package file provides a read-only, YAML-backed destination source for
// development and tests, where a database-backed credential store is
// overkill. The admin mutation surface is not supported in file mode.
package file

import (
	"context"
	"fmt"
	"os"

	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
	"gopkg.in/yaml.v3"
)

// destinationFile is the on-disk document shape:
//
//	destinations:
//	  - pixel_id: "111222333"
//	    name: "main account"
//	    access_token: "EAAB..."
//	    active: true
type destinationFile struct {
	Destinations []destinationEntry `yaml:"destinations"`
}

type destinationEntry struct {
	PixelID     string `yaml:"pixel_id"`
	Name        string `yaml:"name"`
	AccessToken string `yaml:"access_token"`
	Active      bool   `yaml:"active"`
}

// DestinationSource reads destination credentials from a YAML file on every
// call, so edits take effect without a restart.
type DestinationSource struct {
	path string
}

func NewDestinationSource(path string) *DestinationSource {
	return &DestinationSource{path: path}
}

func (s *DestinationSource) load() ([]storage.PixelRow, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read destinations file: %w", err)
	}

	var doc destinationFile
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse destinations file %s: %w", s.path, err)
	}

	rows := make([]storage.PixelRow, 0, len(doc.Destinations))
	for i, d := range doc.Destinations {
		rows = append(rows, storage.PixelRow{
			ID:          int64(i + 1),
			PixelID:     d.PixelID,
			Name:        d.Name,
			AccessToken: d.AccessToken,
			Active:      d.Active,
		})
	}
	return rows, nil
}

// ListActive returns the destinations marked active in the file.
func (s *DestinationSource) ListActive(ctx context.Context) ([]capi.Destination, error) {
	rows, err := s.load()
	if err != nil {
		return nil, err
	}

	var dests []capi.Destination
	for _, row := range rows {
		if row.Active {
			dests = append(dests, row.Destination())
		}
	}
	return dests, nil
}

// List returns every destination in the file.
func (s *DestinationSource) List(ctx context.Context) ([]storage.PixelRow, error) {
	return s.load()
}

func (s *DestinationSource) CountActive(ctx context.Context) (int, error) {
	dests, err := s.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	return len(dests), nil
}

func (s *DestinationSource) Count(ctx context.Context) (int, error) {
	rows, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

var errReadOnly = fmt.Errorf("destination file source is read-only: edit the YAML file directly")

// Mutations are not supported in file mode.

func (s *DestinationSource) Create(ctx context.Context, row storage.PixelRow) (int64, error) {
	return 0, errReadOnly
}

func (s *DestinationSource) GetByID(ctx context.Context, id int64) (*storage.PixelRow, error) {
	rows, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.ID == id {
			return &row, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *DestinationSource) SetActive(ctx context.Context, id int64, active bool) error {
	return errReadOnly
}

func (s *DestinationSource) DeactivateAll(ctx context.Context) error {
	return errReadOnly
}

func (s *DestinationSource) ActivateLatest(ctx context.Context) (*storage.PixelRow, error) {
	return nil, errReadOnly
}

func (s *DestinationSource) UpdateToken(ctx context.Context, id int64, token string) error {
	return errReadOnly
}

func (s *DestinationSource) Delete(ctx context.Context, id int64) error {
	return errReadOnly
}
