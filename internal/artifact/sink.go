// Package artifact delivers completed transfers to the user.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Sink consumes a fully reassembled file. Partial transfers never reach
// a Sink.
type Sink interface {
	Save(data []byte, fileName, mimeType string) error
}

// DirSink writes received files into a download directory.
type DirSink struct {
	dir    string
	logger *logrus.Logger
}

func NewDirSink(dir string, logger *logrus.Logger) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	return &DirSink{dir: dir, logger: logger}, nil
}

func (s *DirSink) Save(data []byte, fileName, mimeType string) error {
	// Strip any path components a remote peer may have smuggled in.
	name := filepath.Base(fileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "received.bin"
	}

	path := s.uniquePath(name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}

	s.logger.Infof("Saved %s (%d bytes, %s)", path, len(data), mimeType)
	return nil
}

func (s *DirSink) uniquePath(name string) string {
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}
