package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrFileNotFound is returned when a filename has no registry entry.
var ErrFileNotFound = errors.New("file not found")

// GeneratedFile represents a registry entry for a generated document
type GeneratedFile struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"sizeBytes"`
	CreatedAt int64  `json:"createdAt"`
	Downloads int64  `json:"downloads"`
}

// FileStats summarizes the registry contents
type FileStats struct {
	TotalFiles     int64 `json:"totalFiles"`
	TotalBytes     int64 `json:"totalBytes"`
	TotalDownloads int64 `json:"totalDownloads"`
}

// FileService provides methods for managing the generated-file registry
type FileService struct {
	db *sql.DB
}

// NewFileService creates a new FileService instance
func NewFileService(db *sql.DB) *FileService {
	return &FileService{
		db: db,
	}
}

// SaveFile records a generated document in the registry.
// A missing ID gets a fresh UUID and a zero CreatedAt gets the current time.
func (s *FileService) SaveFile(file GeneratedFile) (*GeneratedFile, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	// Validate required fields
	if file.Filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if file.Format == "" {
		return nil, fmt.Errorf("format is required")
	}

	// Generate ID if not provided
	if file.ID == "" {
		file.ID = uuid.New().String()
	}

	// Set timestamp
	if file.CreatedAt == 0 {
		file.CreatedAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO generated_files (id, filename, format, size_bytes, created_at, downloads)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, file.ID, file.Filename, file.Format, file.SizeBytes, file.CreatedAt, file.Downloads)
	if err != nil {
		return nil, fmt.Errorf("failed to record generated file: %w", err)
	}

	return &file, nil
}

// GetFileByName retrieves the registry entry for a filename
func (s *FileService) GetFileByName(filename string) (*GeneratedFile, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}

	var file GeneratedFile
	query := `
		SELECT id, filename, format, size_bytes, created_at, downloads
		FROM generated_files
		WHERE filename = ?
	`
	err := s.db.QueryRow(query, filename).Scan(&file.ID, &file.Filename, &file.Format, &file.SizeBytes, &file.CreatedAt, &file.Downloads)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	} else if err != nil {
		return nil, fmt.Errorf("failed to query generated file: %w", err)
	}

	return &file, nil
}

// IncrementDownloads bumps the download counter for a filename
func (s *FileService) IncrementDownloads(filename string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	result, err := s.db.Exec("UPDATE generated_files SET downloads = downloads + 1 WHERE filename = ?", filename)
	if err != nil {
		return fmt.Errorf("failed to update download count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}

	return nil
}

// DeleteExpired removes registry entries older than maxAge and returns
// the filenames of the deleted entries so the caller can unlink them.
func (s *FileService) DeleteExpired(maxAge time.Duration) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	if maxAge <= 0 {
		return nil, fmt.Errorf("maxAge must be positive")
	}

	cutoff := time.Now().Add(-maxAge).UnixMilli()

	// Begin transaction so the listed filenames match the deleted rows
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	rows, err := tx.Query("SELECT filename FROM generated_files WHERE created_at < ?", cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired files: %w", err)
	}

	var filenames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expired file: %w", err)
		}
		filenames = append(filenames, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read expired files: %w", err)
	}
	rows.Close()

	if len(filenames) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec("DELETE FROM generated_files WHERE created_at < ?", cutoff); err != nil {
		return nil, fmt.Errorf("failed to delete expired files: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return filenames, nil
}

// Stats returns aggregate counters over the registry
func (s *FileService) Stats() (*FileStats, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var stats FileStats
	query := `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), COALESCE(SUM(downloads), 0)
		FROM generated_files
	`
	if err := s.db.QueryRow(query).Scan(&stats.TotalFiles, &stats.TotalBytes, &stats.TotalDownloads); err != nil {
		return nil, fmt.Errorf("failed to query registry stats: %w", err)
	}

	return &stats, nil
}
