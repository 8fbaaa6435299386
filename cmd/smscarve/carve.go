package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ftl/sms-carver/carve"
	"github.com/ftl/sms-carver/config"
	"github.com/ftl/sms-carver/export"
	"github.com/ftl/sms-carver/filter"
	"github.com/ftl/sms-carver/imap"
)

var showProgress bool

var carveCmd = &cobra.Command{
	Use:   "carve <image>",
	Short: "Carve SMS TPDUs out of a binary image",
	Long: `carve runs the selected parsers over every offset of the image and narrows the results with the
selected filters. Parsers and filters are selected by their index or their name, see "smscarve parsers"
and "smscarve filters".`,
	Args: cobra.ExactArgs(1),
	RunE: runCarve,
}

func init() {
	flags := carveCmd.Flags()
	flags.StringSlice("parsers", []string{"0", "1"}, "parsers to run, by index or name")
	flags.StringSlice("filters", nil, "filters to apply in this order, by index or name")
	flags.String("profiles", "", "YAML file with additional filter profiles")
	flags.Bool("overlap", true, "continue the scan right after the start of a record instead of skipping its bytes")
	flags.Int("workers", 1, "number of shards that are scanned in parallel")
	flags.String("alphabet", "approximate", "alphabet for 7-bit user data: approximate or gsm")
	flags.String("codec", "ASCII", "codec for 8-bit user data, e.g. ISO8859-1")
	flags.StringP("output", "o", "", "export the results into this file")
	flags.StringP("format", "f", "", "export format: csv, json, mbox, pdf (default: derived from the output file)")
	flags.String("domain", export.DefaultDomain, "mail domain of the exported messages")
	flags.String("imap-host", "", "upload the results to this IMAP server")
	flags.Int("imap-port", 993, "port of the IMAP server")
	flags.String("imap-user", "", "IMAP username")
	flags.String("imap-folder", imap.DefaultFolder, "IMAP target folder")
	flags.Bool("imap-dry-run", false, "do not upload anything, only log what would be uploaded")
	flags.BoolVar(&showProgress, "progress", false, "show a progress bar")

	bind("carve.parsers", flags, "parsers")
	bind("carve.filters", flags, "filters")
	bind("carve.profiles", flags, "profiles")
	bind("carve.overlap", flags, "overlap")
	bind("carve.workers", flags, "workers")
	bind("carve.alphabet", flags, "alphabet")
	bind("carve.codec", flags, "codec")
	bind("export.output", flags, "output")
	bind("export.format", flags, "format")
	bind("export.domain", flags, "domain")
	bind("imap.host", flags, "imap-host")
	bind("imap.port", flags, "imap-port")
	bind("imap.username", flags, "imap-user")
	bind("imap.folder", flags, "imap-folder")
	bind("imap.dry_run", flags, "imap-dry-run")

	rootCmd.AddCommand(carveCmd)
}

func runCarve(cmd *cobra.Command, args []string) error {
	filename := args[0]
	image, err := carve.LoadImage(filename)
	if err != nil {
		return err
	}
	logger.Info().Str("image", filename).Int("size", len(image)).Msg("image loaded")

	var progress func(done, total int)
	if showProgress {
		parsers, _, err := selectParsers(cfg.Carve)
		if err != nil {
			return err
		}
		bar, err := newProgressBar(cmd.ErrOrStderr(), len(image)*len(parsers))
		if err != nil {
			return err
		}
		defer bar.Stop()
		progress = bar.Update
	}

	run, err := carveImage(cmd.Context(), cfg.Carve, image, logger, progress)
	if err != nil {
		return err
	}
	if err := printRecords(cmd.OutOrStdout(), run.Records); err != nil {
		return err
	}

	report := export.NewReport(filepath.Base(filename), image, run.Parsers, run.Filters, run.Records)
	return publish(cmd.Context(), cfg, report, logger)
}

// carveRun is the result of carving one image.
type carveRun struct {
	Parsers []string
	Filters []string
	Records []carve.Record
}

// carveImage runs the configured parsers on the image and applies the configured filters to the results.
func carveImage(ctx context.Context, settings config.Carving, image []byte, logger zerolog.Logger, progress func(done, total int)) (carveRun, error) {
	parsers, ignored, err := selectParsers(settings)
	if err != nil {
		return carveRun{}, err
	}
	if len(ignored) > 0 {
		logger.Warn().Strs("selectors", ignored).Msg("unknown parsers ignored")
	}

	filters := filter.DefaultRegistry()
	if settings.Profiles != "" {
		profiles, err := filter.LoadProfiles(settings.Profiles)
		if err != nil {
			return carveRun{}, err
		}
		for _, profile := range profiles {
			filters.Add(profile)
		}
	}
	selectedFilters, ignored := filters.Select(settings.Filters...)
	if len(ignored) > 0 {
		logger.Warn().Strs("selectors", ignored).Msg("unknown filters ignored")
	}

	parseOptions := []carve.Option{
		carve.WithOverlap(settings.Overlap),
		carve.WithWorkers(settings.Workers),
		carve.WithLogger(logger),
	}
	if progress != nil {
		parseOptions = append(parseOptions, carve.WithProgress(progress))
	}
	records, err := carve.RunParsers(ctx, parsers, image, parseOptions...)
	if err != nil {
		return carveRun{}, err
	}
	records = filter.ApplyFilters(selectedFilters, records, filter.WithLogger(logger))

	result := carveRun{Records: records}
	for _, parser := range parsers {
		result.Parsers = append(result.Parsers, parser.Name())
	}
	for _, f := range selectedFilters {
		result.Filters = append(result.Filters, f.Name())
	}
	logger.Info().Int("records", len(records)).Msg("carving done")
	return result, nil
}

// selectParsers returns the configured parsers, each one only once, and the selectors that did not match any parser.
func selectParsers(settings config.Carving) ([]*carve.Parser, []string, error) {
	options, err := settings.TextOptions()
	if err != nil {
		return nil, nil, err
	}
	parsers, ignored := carve.DefaultRegistry(options).Select(settings.Parsers...)
	if len(parsers) == 0 {
		return nil, ignored, errors.New("no parser selected")
	}
	return parsers, ignored, nil
}

// publish exports the report and uploads its messages, as far as configured.
func publish(ctx context.Context, cfg config.Config, report export.Report, logger zerolog.Logger) error {
	mboxOptions := []export.MboxOption{export.WithDomain(cfg.Export.Domain)}

	if cfg.Export.Output != "" {
		format, err := cfg.Export.OutputFormat()
		if err != nil {
			return err
		}
		if err := export.Save(cfg.Export.Output, format, report, mboxOptions...); err != nil {
			return err
		}
		logger.Info().Str("file", cfg.Export.Output).Str("format", string(format)).Msg("results exported")
	}

	if !cfg.IMAP.Enabled() {
		return nil
	}
	messages, err := export.Messages(report, mboxOptions...)
	if err != nil {
		return err
	}
	uploader, err := imap.NewUploader(cfg.IMAP.Options(), imap.WithLogger(logger))
	if err != nil {
		return err
	}
	result, err := uploader.Upload(ctx, messages)
	if err != nil {
		return fmt.Errorf("upload failed after %d messages: %w", result.Uploaded, err)
	}
	logger.Info().Int("uploaded", result.Uploaded).Int("skipped", result.Skipped).Msg("results uploaded")
	return nil
}

func printRecords(w io.Writer, records []carve.Record) error {
	data := make(pterm.TableData, 0, len(records)+1)
	data = append(data, carve.RowHeader)
	for _, record := range records {
		data = append(data, carve.Row(record))
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

// progressBar shows the progress of consecutive parser runs over the same image as one bar.
type progressBar struct {
	bar  *pterm.ProgressbarPrinter
	base int
}

func newProgressBar(w io.Writer, total int) (*progressBar, error) {
	if total == 0 {
		return &progressBar{}, nil
	}
	bar, err := pterm.DefaultProgressbar.WithWriter(w).WithTotal(total).WithTitle("Carving").Start()
	if err != nil {
		return nil, err
	}
	return &progressBar{bar: bar}, nil
}

func (p *progressBar) Update(done, total int) {
	if p.bar == nil {
		return
	}
	current := p.base + done
	if current > p.bar.Current {
		p.bar.Add(current - p.bar.Current)
	}
	if done == total {
		p.base += total
	}
}

func (p *progressBar) Stop() {
	if p.bar == nil || !p.bar.IsActive {
		return
	}
	_, _ = p.bar.Stop()
}
