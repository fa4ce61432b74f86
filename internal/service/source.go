package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-layers/internal/filter/expr"
)

// ErrInvalidSource is returned for source names that are not plain file names.
var ErrInvalidSource = errors.New("invalid source name")

// SourceService manages source data files.
type SourceService struct {
	sourcesDir string
}

// NewSourceService creates a new source service.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{
		sourcesDir: filepath.Join(dataDir, "sources"),
	}
}

// List returns all available source files.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	// Supported source file extensions and their types
	extToType := map[string]string{
		".geojson":    "GeoJSON",
		".json":       "GeoJSON",
		".csv":        "CSV",
		".parquet":    "GeoParquet",
		".geoparquet": "GeoParquet",
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		fileType, ok := extToType[ext]
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, SourceFile{
			Name:     entry.Name(),
			Size:     formatSize(info.Size()),
			FileType: fileType,
		})
	}

	return files, nil
}

// SourcesDir returns the path to the sources directory.
func (s *SourceService) SourcesDir() string {
	return s.sourcesDir
}

// Path returns the location of the named source file.
func (s *SourceService) Path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidSource)
	}
	return filepath.Join(s.sourcesDir, name), nil
}

// Read loads a GeoJSON source.
func (s *SourceService) Read(name string) (*geojson.FeatureCollection, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}
	return fc, nil
}

// FeatureQuery selects features of a source.
type FeatureQuery struct {
	// Filter is a layer filter; features whose properties do not satisfy it
	// are dropped.
	Filter string
	// Within, when non-empty, keeps only features whose bounds intersect it.
	Within orb.Bound
	// Limit caps the number of returned features; 0 means no cap.
	Limit int
}

// FeatureResult holds the selected features of a source.
type FeatureResult struct {
	Features *geojson.FeatureCollection
	Total    int       // features in the source
	Matched  int       // features satisfying the query, before Limit
	Bound    orb.Bound // bounds of the matched features
}

// Features reads a GeoJSON source and applies q to it.
func (s *SourceService) Features(name string, q FeatureQuery) (*FeatureResult, error) {
	fc, err := s.Read(name)
	if err != nil {
		return nil, err
	}
	return SelectFeatures(fc, q)
}

// SelectFeatures applies q to fc.
func SelectFeatures(fc *geojson.FeatureCollection, q FeatureQuery) (*FeatureResult, error) {
	var match *expr.Expression
	if strings.TrimSpace(q.Filter) != "" {
		e, err := expr.Parse(q.Filter)
		if err != nil {
			return nil, err
		}
		match = e
	}

	res := &FeatureResult{Features: geojson.NewFeatureCollection(), Total: len(fc.Features)}
	within := !q.Within.IsZero()
	first := true
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if within && !q.Within.Intersects(b) {
			continue
		}
		if match != nil && !match.Eval(expr.Record(f.Properties)) {
			continue
		}

		res.Matched++
		if first {
			res.Bound, first = b, false
		} else {
			res.Bound = res.Bound.Union(b)
		}
		if q.Limit == 0 || len(res.Features.Features) < q.Limit {
			res.Features.Append(f)
		}
	}
	return res, nil
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
