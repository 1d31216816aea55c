// Package upload preflights files before they are sent to the backend, so
// obviously-rejected uploads never cost a network round trip.
package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Preflight validates a candidate upload against the intake rules of a
// backend endpoint: accepted extensions and a size ceiling.
type Preflight struct {
	Extensions []string
	MaxBytes   int64
}

// Open validates path and opens it for reading. Callers own closing the
// returned file.
func (p Preflight) Open(path string) (*os.File, error) {
	if !p.accepts(filepath.Ext(path)) {
		return nil, fmt.Errorf("only %s files are accepted, got %s", strings.Join(p.Extensions, "/"), filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if p.MaxBytes > 0 && info.Size() > p.MaxBytes {
		f.Close()
		return nil, fmt.Errorf("file is %.2f MB, the limit is %d MB", float64(info.Size())/1024/1024, p.MaxBytes/1024/1024)
	}
	return f, nil
}

func (p Preflight) accepts(ext string) bool {
	for _, allowed := range p.Extensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}
