package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/socialgraph/internal/export/csv"
	"github.com/robalyx/socialgraph/internal/export/fileutil"
	"github.com/robalyx/socialgraph/internal/export/gexf"
	"github.com/robalyx/socialgraph/internal/export/jsonfile"
	"github.com/robalyx/socialgraph/internal/export/sqlite"
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrNoFormats         = errors.New("no export formats configured")
)

// Format represents a supported export format.
type Format string

const (
	FormatGEXF   Format = "gexf"
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// ManifestFile is written next to the exports after every successful run.
const ManifestFile = "manifest.json"

// Config holds the configuration for exports.
type Config struct {
	OutputDir string
	Formats   []string
	Minify    bool
}

// Manifest describes the last export.
type Manifest struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Nodes       int                 `json:"nodes"`
	Edges       int                 `json:"edges"`
	TotalWeight int64               `json:"totalWeight"`
	Files       map[Format][]string `json:"files"`
}

// formatWriter writes a graph in one format.
type formatWriter interface {
	Export(g *graph.Graph) error
}

type target struct {
	format Format
	writer formatWriter
	files  []string
}

var _ graph.Exporter = (*Exporter)(nil)

// Exporter writes the graph in every configured format.
type Exporter struct {
	outDir  string
	targets []target
	logger  *zap.Logger
}

// New creates a new exporter instance and makes sure the output directory exists.
func New(cfg Config, logger *zap.Logger) (*Exporter, error) {
	if len(cfg.Formats) == 0 {
		return nil, ErrNoFormats
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	targets := make([]target, 0, len(cfg.Formats))
	seen := make(map[Format]struct{}, len(cfg.Formats))

	for _, name := range cfg.Formats {
		format := Format(name)
		if _, ok := seen[format]; ok {
			continue
		}
		seen[format] = struct{}{}

		t, err := newTarget(format, cfg)
		if err != nil {
			return nil, err
		}

		targets = append(targets, t)
	}

	return &Exporter{
		outDir:  cfg.OutputDir,
		targets: targets,
		logger:  logger.Named("export"),
	}, nil
}

func newTarget(format Format, cfg Config) (target, error) {
	switch format {
	case FormatGEXF:
		w := gexf.New(cfg.OutputDir, cfg.Minify)
		return target{format: format, writer: w, files: []string{w.Path()}}, nil
	case FormatJSON:
		w := jsonfile.New(cfg.OutputDir, cfg.Minify)
		return target{format: format, writer: w, files: []string{w.Path()}}, nil
	case FormatCSV:
		w := csv.New(cfg.OutputDir)
		return target{format: format, writer: w, files: w.Paths()}, nil
	case FormatSQLite:
		w := sqlite.New(cfg.OutputDir)
		return target{format: format, writer: w, files: []string{w.Path()}}, nil
	default:
		return target{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Formats returns the configured formats in order.
func (e *Exporter) Formats() []Format {
	formats := make([]Format, 0, len(e.targets))
	for _, t := range e.targets {
		formats = append(formats, t.format)
	}

	return formats
}

// Path returns the primary file written for a format.
func (e *Exporter) Path(format Format) (string, bool) {
	for _, t := range e.targets {
		if t.format == format {
			return t.files[0], true
		}
	}

	return "", false
}

// Export writes the graph in all formats concurrently. Every format is attempted
// even when another fails; the manifest is only updated when all succeed.
func (e *Exporter) Export(ctx context.Context, g *graph.Graph) error {
	start := time.Now()

	p := pool.New().WithContext(ctx)
	for _, t := range e.targets {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := t.writer.Export(g); err != nil {
				e.logger.Error("Failed to write export",
					zap.String("format", string(t.format)),
					zap.Error(err))

				return fmt.Errorf("failed to export %s format: %w", t.format, err)
			}

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return err
	}

	if err := e.writeManifest(g); err != nil {
		return err
	}

	e.logger.Debug("Exported graph",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
		zap.Int("formats", len(e.targets)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// ReadManifest loads the manifest of the last export from the output directory.
func (e *Exporter) ReadManifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(e.outDir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := sonic.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &manifest, nil
}

func (e *Exporter) writeManifest(g *graph.Graph) error {
	files := make(map[Format][]string, len(e.targets))
	for _, t := range e.targets {
		names := make([]string, 0, len(t.files))
		for _, path := range t.files {
			names = append(names, filepath.Base(path))
		}

		slices.Sort(names)
		files[t.format] = names
	}

	data, err := sonic.MarshalIndent(&Manifest{
		GeneratedAt: g.GeneratedAt.UTC(),
		Nodes:       len(g.Nodes),
		Edges:       len(g.Edges),
		TotalWeight: g.TotalWeight(),
		Files:       files,
	}, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	return fileutil.WriteFile(filepath.Join(e.outDir, ManifestFile), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
