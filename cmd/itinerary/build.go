package main

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/extract"
	"github.com/pkordes/itinerary/internal/policy"
	"github.com/pkordes/itinerary/internal/progress"
	"github.com/pkordes/itinerary/internal/service"
	"github.com/pkordes/itinerary/internal/telemetry"
)

var (
	buildMode   string
	buildOutput string
	buildQuiet  bool
)

func init() {
	buildCmd := &cobra.Command{
		Use:   "build FILE...",
		Short: "Build an itinerary from booking documents",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBuild,
	}
	buildCmd.Flags().StringVar(&buildMode, "mode", "", "extraction mode: live or mock (overrides EXTRACT_MODE)")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "write markdown to this file instead of stdout")
	buildCmd.Flags().BoolVarP(&buildQuiet, "quiet", "q", false, "do not print progress")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildMode != "" {
		// The mode decides which settings are required, so it must be in
		// place before the config is validated.
		if err := os.Setenv("EXTRACT_MODE", buildMode); err != nil {
			return err
		}
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := telemetry.NewLogger(cmd.ErrOrStderr(), cfg.SlogLevel())
	progressOut := cmd.ErrOrStderr()
	if buildQuiet {
		progressOut = io.Discard
	}

	docs, err := readDocuments(args)
	if err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Fprintf(progressOut, "%-40s %-18s %s\n", d.Name, d.ContentType, humanize.IBytes(uint64(d.Size())))
	}

	engine, err := policy.NewEngine(ctx, policy.Limits{MaxFiles: cfg.MaxFiles, MaxFileBytes: int64(cfg.MaxFileBytes)})
	if err != nil {
		return err
	}
	files := make([]policy.File, len(docs))
	for i, d := range docs {
		files[i] = policy.File{Name: d.Name, Size: d.Size(), ContentType: d.ContentType}
	}
	if err := engine.Check(ctx, files); err != nil {
		return err
	}

	pipeline, err := extract.New(extract.Settings{
		Mode:       cfg.ExtractMode,
		AIBaseURL:  cfg.AIBaseURL,
		AIAPIKey:   cfg.AIAPIKey,
		AIModel:    cfg.AIModel,
		OCRBaseURL: cfg.OCRBaseURL,
		OCRAPIKey:  cfg.OCRAPIKey,
		OCRModel:   cfg.OCRModel,
		Timeout:    cfg.ExtractTimeout.Std(),
	}, logger)
	if err != nil {
		return err
	}

	registry := progress.NewRegistry()
	workflow := service.NewWorkflowService(registry, pipeline,
		service.WithConcurrency(cfg.MaxConcurrency),
		service.WithLogger(logger),
	)

	runID := registry.Create()
	sub, err := registry.Subscribe(runID)
	if err != nil {
		return err
	}
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		printProgress(progressOut, sub)
	}()

	res, err := workflow.Execute(ctx, runID, docs)
	<-done
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(progressOut, "warning: %s\n", w)
	}
	return writeMarkdown(cmd.OutOrStdout(), res.Markdown)
}

// printProgress writes one line per step transition until the run ends.
func printProgress(w io.Writer, sub *progress.Subscription) {
	for u := range sub.Events() {
		if u.Type != domain.UpdateProgress {
			continue
		}
		line := fmt.Sprintf("[%-9s] %s", u.Step.Status, u.Step.Name)
		if u.Step.Message != "" {
			line += ": " + u.Step.Message
		}
		fmt.Fprintln(w, line)
	}
}

func writeMarkdown(stdout io.Writer, markdown string) error {
	if buildOutput == "" {
		_, err := io.WriteString(stdout, markdown)
		return err
	}
	if err := os.WriteFile(buildOutput, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", buildOutput, err)
	}
	return nil
}

func readDocuments(paths []string) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		docs = append(docs, domain.Document{
			Name:        filepath.Base(p),
			ContentType: detectType(p, data),
			Data:        data,
		})
	}
	return docs, nil
}

// detectType prefers the extension and falls back to content sniffing.
func detectType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
