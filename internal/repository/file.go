package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/nyaadere/animatch/internal/domain"
)

// FileRepository implements domain.RosterRepository and
// domain.ReportRepository using file storage
type FileRepository struct {
	log zerolog.Logger
}

// NewFileRepository creates a new file-based repository
func NewFileRepository(log zerolog.Logger) *FileRepository {
	return &FileRepository{
		log: log.With().Str("module", "repository").Logger(),
	}
}

// Ensure FileRepository implements both interfaces
var _ domain.RosterRepository = (*FileRepository)(nil)
var _ domain.ReportRepository = (*FileRepository)(nil)

// GetMatched retrieves a reconciled roster from a file
func (r *FileRepository) GetMatched(ctx context.Context, path string) (*domain.MatchedRoster, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	roster := &domain.MatchedRoster{}
	if err := json.Unmarshal(body, roster); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json from %s: %w", path, err)
	}

	return roster, nil
}

// StoreMatched saves a reconciled roster to a file
func (r *FileRepository) StoreMatched(ctx context.Context, path string, roster *domain.MatchedRoster) error {
	j, err := json.MarshalIndent(roster, "", "   ")
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}

	if err := r.writeFile(path, j); err != nil {
		return err
	}

	r.log.Debug().Str("path", path).Int("characters", len(roster.Characters)).Msg("stored matched roster")
	return nil
}

// StoreReport saves an unmatched-character report to a file
func (r *FileRepository) StoreReport(ctx context.Context, path string, report *domain.UnmatchedReport) error {
	b, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal yaml: %w", err)
	}

	if err := r.writeFile(path, b); err != nil {
		return err
	}

	r.log.Debug().Str("path", path).Int("characters", len(report.Characters)).Msg("stored unmatched report")
	return nil
}

func (r *FileRepository) writeFile(path string, data []byte) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write to file %s: %w", path, err)
	}

	return nil
}
