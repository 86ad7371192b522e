package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/handwriting-extractor/constants"
)

type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32 // allowed upload type the pipeline cannot read, e.g. pdf
	Failed  uint32
}

// ScanResult lists the images found under a root, in lexical order.
type ScanResult struct {
	Images  []string
	Skipped []string
	Errors  map[string]string
	Stats   DirStats
}

// ScanDirectory walks root and collects the images the pipeline can process. Hidden
// entries are skipped when skipHidden is set. Walk errors are recorded per path.
func ScanDirectory(root string, skipHidden bool) (ScanResult, error) {
	res := ScanResult{Errors: map[string]string{}}
	if strings.TrimSpace(root) == "" {
		return res, errors.New("root path is required")
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		res.Stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			res.Errors[path] = walkErr.Error()
			res.Stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		switch {
		case constants.IsImageExt(ext):
			res.Images = append(res.Images, path)
			res.Stats.Matched++
		case constants.IsAllowedExt(ext):
			res.Skipped = append(res.Skipped, path)
			res.Stats.Skipped++
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("walk: %w", err)
	}
	sort.Strings(res.Images)
	sort.Strings(res.Skipped)
	return res, nil
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// IsImagePath reports whether path has an extension the pipeline can read.
func IsImagePath(path string) bool {
	return constants.IsImageExt(filepath.Ext(path))
}
