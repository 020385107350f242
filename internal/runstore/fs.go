package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const exportIndexFile = "exports.json"

// ExportRecord describes one saved artifact in the directory index.
type ExportRecord struct {
	File        string `json:"file"`
	SavedAt     string `json:"saved_at"`
	Category    string `json:"category"`
	Region      string `json:"region"`
	Country     string `json:"country,omitempty"`
	Rows        int    `json:"rows"`
	Sheet       string `json:"sheet,omitempty"`
	Bytes       int    `json:"bytes"`
	RequestID   string `json:"request_id,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// WriteBytes replaces path atomically through a temp file in the same
// directory.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".scraper-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

// UniquePath returns dir/name, or dir/"stem (n).ext" with the smallest n
// that does not exist yet.
func UniquePath(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	candidate := filepath.Join(dir, name)
	exists, err := pathExists(candidate)
	if err != nil {
		return "", err
	}
	if !exists {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; n < 10000; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		exists, err := pathExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// SaveArtifact writes data under dir without overwriting an existing file
// and records it in the directory index. It returns the final path.
func SaveArtifact(dir, name string, data []byte, rec ExportRecord) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	if err := Mkdir(dir); err != nil {
		return "", err
	}

	lock, err := AcquireDirLock(dir)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = lock.Release()
	}()

	path, err := UniquePath(dir, name)
	if err != nil {
		return "", err
	}
	if err := WriteBytes(path, data); err != nil {
		return "", err
	}

	rec.File = filepath.Base(path)
	rec.Bytes = len(data)
	if err := appendExportRecord(dir, rec); err != nil {
		return path, err
	}
	return path, nil
}

func ExportIndexPath(dir string) string {
	return filepath.Join(dir, exportIndexFile)
}

func LoadExportIndex(dir string) ([]ExportRecord, error) {
	path := ExportIndexPath(dir)
	records := []ExportRecord{}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err := ReadJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func appendExportRecord(dir string, rec ExportRecord) error {
	records, err := LoadExportIndex(dir)
	if err != nil {
		return err
	}
	records = append(records, rec)
	return WriteJSON(ExportIndexPath(dir), records)
}
