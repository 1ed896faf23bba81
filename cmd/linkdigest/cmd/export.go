package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/linkdigest/linkdigest/internal/export"
	"github.com/linkdigest/linkdigest/internal/printer"
	"github.com/linkdigest/linkdigest/internal/storage"
	"github.com/linkdigest/linkdigest/pkg/models"
)

var (
	exportFormat string
	exportOut    string
	exportUpload bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cached analysis results to a file",
	Long: `Write all cached analysis results to a file in the chosen format.
With --upload and configured storage, the file is also pushed to S3.

Examples:
  linkdigest export --format json
  linkdigest export --format md --out results.md
  linkdigest export --format json --upload`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "export format: md, json or txt")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default: timestamped name)")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "also upload to configured S3 storage")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	c, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	if c.store == nil {
		return fmt.Errorf("cache is disabled, nothing to export")
	}

	entries, err := c.store.Entries(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}
	results := make([]models.AnalysisResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, e.Result)
	}

	data, err := export.Render(results, format)
	if err != nil {
		return err
	}

	filename := exportOut
	if filename == "" {
		filename = format.Filename(time.Now())
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	printer.Success("%d results exported to %s\n", len(results), filename)

	if exportUpload {
		if cfg.Storage.Endpoint == "" {
			return fmt.Errorf("--upload requires storage.endpoint to be configured")
		}
		client, err := storage.New(storage.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UseSSL:          cfg.Storage.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure bucket: %w", err)
		}
		key, err := client.PutExport(ctx, filename, data, format.ContentType())
		if err != nil {
			return err
		}
		printer.Success("uploaded to s3://%s/%s\n", client.Bucket(), key)
	}
	return nil
}
