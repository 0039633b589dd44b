package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robalyx/socialgraph/internal/export"
	"github.com/robalyx/socialgraph/internal/setup"
	"github.com/robalyx/socialgraph/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// ExportLogDir specifies where export log files are stored.
const ExportLogDir = "logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "export",
		Usage: "Export the current mention graph to files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (defaults to export.output_dir)",
			},
			&cli.StringSliceFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Format to write: gexf, json, csv or sqlite (repeatable, defaults to export.formats)",
			},
			&cli.BoolFlag{
				Name:    "minify",
				Aliases: []string{"m"},
				Usage:   "Strip insignificant whitespace from the output",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			// Initialize application with required dependencies
			app, err := setup.InitializeApp(ctx, telemetry.ServiceExport, ExportLogDir)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Cleanup(ctx)

			cfg := export.Config{
				OutputDir: app.Config.Bot.Export.OutputDir,
				Formats:   app.Config.Bot.Export.Formats,
				Minify:    app.Config.Bot.Export.Minify || c.Bool("minify"),
			}

			if output := c.String("output"); output != "" {
				cfg.OutputDir = output
			}

			if formats := c.StringSlice("format"); len(formats) > 0 {
				cfg.Formats = formats
			}

			exporter, err := export.New(cfg, app.Logger)
			if err != nil {
				return err
			}

			g, err := app.Engine.Build(ctx)
			if err != nil {
				return fmt.Errorf("failed to build graph: %w", err)
			}

			if err := exporter.Export(ctx, g); err != nil {
				return fmt.Errorf("failed to export graph: %w", err)
			}

			manifest, err := exporter.ReadManifest()
			if err != nil {
				return err
			}

			for format, files := range manifest.Files {
				app.Logger.Info("Exported graph",
					zap.String("format", string(format)),
					zap.Strings("files", files))
			}

			app.Logger.Info("Export complete",
				zap.Int("nodes", manifest.Nodes),
				zap.Int("edges", manifest.Edges),
				zap.Int64("total_weight", manifest.TotalWeight))

			return nil
		},
	}

	return app.Run(context.Background(), os.Args)
}
