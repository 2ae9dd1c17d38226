package report

import (
	"context"
	"errors"
	"fmt"
	"io"

	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/types"
)

// Options select and place the writers of one run.
type Options struct {
	OutputDir  string
	Formats    []string
	SQLitePath string
	Run        Run
	// Observe, when set, is called once per writer with its outcome.
	Observe func(format string, err error)
}

// NewWriter builds the writer for a single format.
func NewWriter(format string, opts Options) (interfaces.ReportWriter, error) {
	switch format {
	case FormatCSV:
		return &csvWriter{dir: opts.OutputDir, run: opts.Run}, nil
	case FormatXLSX:
		return &xlsxWriter{dir: opts.OutputDir, run: opts.Run}, nil
	case FormatJSON:
		return &jsonWriter{dir: opts.OutputDir, run: opts.Run}, nil
	case FormatSQLite:
		w, err := OpenSQLite(opts.SQLitePath, opts.Run)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Reporter fans one ledger out to every configured writer.
type Reporter struct {
	writers []interfaces.ReportWriter
	observe func(format string, err error)
}

// NewReporter wraps each writer with wrap (which may be nil).
func NewReporter(opts Options, wrap func(interfaces.ReportWriter) interfaces.ReportWriter) (*Reporter, error) {
	r := &Reporter{observe: opts.Observe}
	for _, format := range opts.Formats {
		w, err := NewWriter(format, opts)
		if err != nil {
			r.Close()
			return nil, err
		}
		if wrap != nil {
			w = wrap(w)
		}
		r.writers = append(r.writers, w)
	}
	return r, nil
}

// WriteAll runs every writer even if an earlier one failed and returns the
// paths that were written together with the joined errors.
func (r *Reporter) WriteAll(ctx context.Context, ledger *types.Ledger) ([]string, error) {
	var paths []string
	var errs []error
	for _, w := range r.writers {
		path, err := w.Write(ctx, ledger)
		if r.observe != nil {
			r.observe(w.Format(), err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.Format(), err))
			continue
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

func (r *Reporter) Close() error {
	var errs []error
	for _, w := range r.writers {
		if c, ok := w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
