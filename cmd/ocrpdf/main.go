// Command ocrpdf runs OCR over a directory of images and writes the results
// as a PDF, each page showing an image beside its extracted text.
//
// Usage:
//
//	GEMINI_API_KEY=... go run ./cmd/ocrpdf -dir ./scans -out scans.pdf
//
// With a local model and a spreadsheet next to the PDF:
//
//	go run ./cmd/ocrpdf -dir ./scans -provider ollama -model llama3.2-vision \
//	  -stop-policy critical -xlsx scans.xlsx
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/brunobiangulo/ocrpdf"
	"github.com/brunobiangulo/ocrpdf/imagefile"
	"github.com/brunobiangulo/ocrpdf/ocr"
	"github.com/brunobiangulo/ocrpdf/pdfgen"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "ocrpdf: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	dir        string
	out        string
	xlsx       string
	configPath string
	provider   string
	model      string
	stopPolicy string
	verbose    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fset := flag.NewFlagSet("ocrpdf", flag.ContinueOnError)
	fset.SetOutput(stderr)

	o := &options{}
	fset.StringVar(&o.dir, "dir", "", "Directory of images to process (required)")
	fset.StringVar(&o.out, "out", "ocr_results.pdf", "Output PDF path")
	fset.StringVar(&o.xlsx, "xlsx", "", "Also write the results as a workbook to this path")
	fset.StringVar(&o.configPath, "config", "", "Path to config file (JSON or YAML)")
	fset.StringVar(&o.provider, "provider", "", "Vision provider (overrides config)")
	fset.StringVar(&o.model, "model", "", "Vision model (overrides config)")
	fset.StringVar(&o.stopPolicy, "stop-policy", "", `Stop policy: "any" or "critical" (overrides config)`)
	fset.BoolVar(&o.verbose, "v", false, "Debug logging")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if o.dir == "" && fset.NArg() > 0 {
		o.dir = fset.Arg(0)
	}
	if o.dir == "" {
		return nil, errors.New("-dir is required")
	}
	return o, nil
}

func loadConfig(o *options) (ocrpdf.Config, error) {
	cfg := ocrpdf.DefaultConfig()
	if o.configPath != "" {
		if err := ocrpdf.LoadConfigFile(o.configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if o.provider != "" {
		cfg.LLM.Provider = o.provider
	}
	if o.model != "" {
		cfg.LLM.Model = o.model
	}
	if o.stopPolicy != "" {
		cfg.StopPolicy = o.stopPolicy
	}
	return cfg, nil
}

// run is main without the process exit, so tests can inject a provider.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, svcOpts ...ocrpdf.Option) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	svc, err := ocrpdf.New(cfg, append([]ocrpdf.Option{ocrpdf.WithLogger(log)}, svcOpts...)...)
	if err != nil {
		return err
	}
	defer svc.Close()

	images, tally, err := collectImages(o.dir, stdout)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no valid images in %s (%d rejected)", o.dir, tally.Total())
	}

	outcomes, err := svc.ProcessImages(ctx, images)
	if err != nil && !ocr.IsInterrupted(err) {
		return err
	}
	if err != nil {
		fmt.Fprintf(stderr, "interrupted after %d of %d images\n", len(outcomes), len(images))
	}

	for _, out := range outcomes {
		if out.Success {
			fmt.Fprintf(stdout, "  ok      %s (%d chars)\n", out.FileName, len(out.Text))
		} else {
			fmt.Fprintf(stdout, "  FAILED  %s: %s [%s]\n", out.FileName, out.ErrorMessage, out.ErrorKind)
		}
	}
	s := ocr.Summarize(outcomes)
	fmt.Fprintf(stdout, "processed %d/%d images: %d succeeded, %d failed, %d rejected\n",
		s.TotalProcessed, len(images), s.SuccessCount, s.FailureCount, tally.Total())
	if crit, ok := ocr.FirstCritical(outcomes); ok {
		fmt.Fprintf(stdout, "stopped on %s: %s\n", crit.ErrorKind, crit.ErrorMessage)
	}

	if o.xlsx != "" {
		data, err := svc.GenerateWorkbook(ctx, ocrpdf.RowsFromOutcomes(outcomes))
		if err != nil {
			return err
		}
		if err := os.WriteFile(o.xlsx, data, 0o644); err != nil {
			return fmt.Errorf("writing workbook: %w", err)
		}
		fmt.Fprintf(stdout, "wrote %s\n", o.xlsx)
	}

	pairs := ocrpdf.PairsFromOutcomes(outcomes, images)
	if len(pairs) == 0 {
		return ocrpdf.ErrNoResults
	}
	res, err := svc.GeneratePDF(ctx, pairs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.out, res.Data, 0o644); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}

	info, err := pdfgen.Inspect(res.Data)
	if err != nil {
		return fmt.Errorf("reading back %s: %w", o.out, err)
	}
	fmt.Fprintf(stdout, "wrote %s: %d pages, %d image errors\n", o.out, info.Pages, len(res.ImageErrors))
	for _, e := range res.ImageErrors {
		fmt.Fprintf(stdout, "  %s\n", e)
	}
	return nil
}

// collectImages validates every regular file in dir, in name order.
func collectImages(dir string, stdout io.Writer) ([]imagefile.Image, imagefile.Tally, error) {
	var tally imagefile.Tally
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, tally, fmt.Errorf("reading %s: %w", dir, err)
	}

	var images []imagefile.Image
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, tally, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		img, err := imagefile.Validate(e.Name(), data, "")
		var rej *imagefile.Rejection
		if errors.As(err, &rej) {
			tally.Add(rej)
			fmt.Fprintf(stdout, "  skip    %s (%s)\n", rej.Name, rej.Reason)
			continue
		}
		if err != nil {
			return nil, tally, err
		}
		images = append(images, img)
	}
	return images, tally, nil
}
