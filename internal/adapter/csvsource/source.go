package csvsource

import (
	"context"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

// FileSource re-reads an input file on every Load, so a serve loop picks up
// refreshed data. It implements pipeline.Source.
type FileSource struct {
	reader   *Reader
	path     string
	national bool
	anchor   time.Time
}

// NewFileSource creates a source for path. national selects the date/cured/swabs
// format; otherwise the wide series format is read with the optional anchor override.
func NewFileSource(reader *Reader, path string, national bool, anchor time.Time) *FileSource {
	return &FileSource{reader: reader, path: path, national: national, anchor: anchor}
}

// Load reads the file.
func (s *FileSource) Load(ctx context.Context) (domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return domain.Dataset{}, err
	}
	if s.national {
		return s.reader.ReadNationalFile(s.path)
	}
	return s.reader.ReadSeriesFile(s.path, s.anchor)
}
