package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/baxromumarov/tabscrape/internal/batch"
	"github.com/baxromumarov/tabscrape/internal/document"
	"github.com/baxromumarov/tabscrape/internal/extract"
	"github.com/baxromumarov/tabscrape/internal/httpx"
	"github.com/baxromumarov/tabscrape/internal/jsonvalue"
	"github.com/baxromumarov/tabscrape/internal/observability"
	"github.com/baxromumarov/tabscrape/internal/selector"
	"github.com/baxromumarov/tabscrape/internal/table"
)

const (
	ModeTable   = "table"
	ModeCSV     = "csv"
	ModeRecords = "records"
	ModeColumns = "columns"
)

type Options struct {
	// Backend labels fetch metrics.
	Backend string
	Metrics *observability.Metrics
	Logger  *slog.Logger
	Batch   batch.Options
}

// Runner executes recipes against one fetcher. It holds no per-run state, so concurrent
// Run calls are independent.
type Runner struct {
	fetcher httpx.Fetcher
	backend string
	metrics *observability.Metrics
	logger  *slog.Logger
	batch   batch.Options
}

func NewRunner(f httpx.Fetcher, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Batch.Logger == nil {
		opts.Batch.Logger = opts.Logger
	}
	return &Runner{
		fetcher: f,
		backend: opts.Backend,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		batch:   opts.Batch,
	}
}

// Run fetches the recipe's URL and returns the assembled table.
func (r *Runner) Run(ctx context.Context, rec Recipe) (*table.Table, error) {
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("recipe %q: %w", rec.Name, err)
	}
	log := r.logger.With("run_id", uuid.NewString(), "recipe", rec.Name)
	start := time.Now()

	if rec.Paginate != nil {
		return r.runPaged(ctx, log, rec, start)
	}
	res, err := r.fetch(ctx, log, rec.URL, rec.Query)
	if err != nil {
		return nil, fmt.Errorf("recipe %q: %w", rec.Name, err)
	}
	return r.process(log, rec, res, start)
}

// RunAll fetches every recipe concurrently, bounded by the batch options, then extracts
// each in order. The first failure stops the whole run.
func (r *Runner) RunAll(ctx context.Context, recs []Recipe) ([]*table.Table, error) {
	var (
		reqs    []batch.Request
		fetched []int
	)
	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("recipe %q: %w", rec.Name, err)
		}
		if rec.Paginate == nil {
			reqs = append(reqs, batch.Request{URL: rec.URL, Query: rec.Query})
			fetched = append(fetched, i)
		}
	}

	log := r.logger.With("run_id", uuid.NewString())
	start := time.Now()
	results, err := batch.FetchAll(ctx, r.observedFetcher(log), reqs, r.batch)
	if err != nil {
		return nil, err
	}

	out := make([]*table.Table, len(recs))
	for k, i := range fetched {
		t, err := r.process(log.With("recipe", recs[i].Name), recs[i], results[k], start)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	for i, rec := range recs {
		if out[i] != nil {
			continue
		}
		t, err := r.runPaged(ctx, log.With("recipe", rec.Name), rec, start)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (r *Runner) fetch(ctx context.Context, log *slog.Logger, rawURL string, query map[string]string) (*httpx.Result, error) {
	return r.observedFetcher(log).Fetch(ctx, rawURL, query)
}

// observedFetcher wraps the fetcher with logging and fetch metrics.
func (r *Runner) observedFetcher(log *slog.Logger) httpx.Fetcher {
	return fetcherFunc(func(ctx context.Context, rawURL string, query map[string]string) (*httpx.Result, error) {
		start := time.Now()
		res, err := r.fetcher.Fetch(ctx, rawURL, query)
		took := time.Since(start)
		r.metrics.ObserveFetch(r.backend, res, err, took)
		if err != nil {
			r.metrics.IncError(observability.ClassifyError(err), "fetch")
			log.Warn("fetch failed", "url", rawURL, "error", err)
			return nil, err
		}
		log.Debug("fetched", "url", res.URL, "status", res.StatusCode, "bytes", len(res.Body), "took", took)
		return res, nil
	})
}

type fetcherFunc func(ctx context.Context, rawURL string, query map[string]string) (*httpx.Result, error)

func (f fetcherFunc) Fetch(ctx context.Context, rawURL string, query map[string]string) (*httpx.Result, error) {
	return f(ctx, rawURL, query)
}

func (r *Runner) process(log *slog.Logger, rec Recipe, res *httpx.Result, start time.Time) (*table.Table, error) {
	format, _ := document.ParseFormat(rec.Format)
	doc, err := document.Parse(res, format, rec.parseOptions())
	if err != nil {
		return nil, r.fail(log, rec, "parse", err)
	}

	mode, t, err := r.extract(rec, doc, res.URL)
	if err != nil {
		return nil, r.fail(log, rec, "extract", err)
	}
	return r.finish(log, rec, mode, t, start)
}

func (r *Runner) extract(rec Recipe, doc document.Document, base string) (string, *table.Table, error) {
	if len(rec.Columns) > 0 {
		t, err := columns(rec, doc, base)
		if err != nil {
			return ModeColumns, nil, err
		}
		t, err = dropRows(t, rec.DropRows)
		return ModeColumns, t, err
	}

	switch d := doc.(type) {
	case *document.HTMLDocument:
		t, err := htmlTable(rec, d)
		return ModeTable, t, err
	case *document.CSVDocument:
		t, err := d.ToTable()
		if err != nil {
			return ModeCSV, nil, err
		}
		t, err = dropRows(t, rec.DropRows)
		return ModeCSV, t, err
	case *document.JSONDocument:
		t, err := records(rec, d.Root())
		if err != nil {
			return ModeRecords, nil, err
		}
		t, err = dropRows(t, rec.DropRows)
		return ModeRecords, t, err
	default:
		return "", nil, fmt.Errorf("unsupported document %T", doc)
	}
}

func htmlTable(rec Recipe, doc *document.HTMLDocument) (*table.Table, error) {
	idx := 0
	if rec.Table != nil {
		idx = *rec.Table
	}
	raw, err := extract.Table(doc, selector.Table(idx))
	if err != nil {
		return nil, err
	}
	if !rec.header() {
		raw = raw.WithoutHeader()
	}
	if rec.DropUniformRows {
		raw = raw.DropUniformRows()
	}
	if len(rec.DropRows) > 0 {
		if raw, err = raw.DropRows(rec.DropRows...); err != nil {
			return nil, err
		}
	}
	if rec.Fill {
		raw = raw.Fill()
	}
	return raw.ToTable()
}

func recordsRoot(rec Recipe, root jsonvalue.Value) (jsonvalue.Value, error) {
	if rec.Records == "" {
		return root, nil
	}
	p, err := selector.ParsePath(rec.Records)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	return extract.Path(root, p)
}

func records(rec Recipe, root jsonvalue.Value) (*table.Table, error) {
	v, err := recordsRoot(rec, root)
	if err != nil {
		return nil, err
	}
	return extract.Records(v)
}

func columns(rec Recipe, doc document.Document, base string) (*table.Table, error) {
	cols := make([]table.Column, 0, len(rec.Columns))
	for _, c := range rec.Columns {
		sel, err := c.selector()
		if err != nil {
			return nil, err
		}
		mode, err := c.textMode()
		if err != nil {
			return nil, err
		}
		f, err := extract.Extract(doc, sel, extract.FieldOptions{
			Attr:     c.Attr,
			Text:     mode,
			Base:     base,
			Absolute: c.Absolute,
			Required: c.Required,
		})
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		cols = append(cols, table.Column{Name: c.Name, Values: f.Values})
	}
	return table.Assemble(cols...)
}

func dropRows(t *table.Table, idx []int) (*table.Table, error) {
	if len(idx) == 0 {
		return t, nil
	}
	return t.DropRows(idx...)
}

func (r *Runner) runPaged(ctx context.Context, log *slog.Logger, rec Recipe, start time.Time) (*table.Table, error) {
	format, _ := document.ParseFormat(rec.Format)
	var (
		mode  string
		items []jsonvalue.Value
		names []string
		rows  [][]string
	)
	stage := "fetch"
	pages, err := batch.Pages(ctx, r.observedFetcher(log), rec.URL, rec.Query, batch.PageOptions{
		Limit:    rec.Paginate.Limit,
		MaxPages: rec.Paginate.MaxPages,
	}, func(page int, res *httpx.Result) (int, error) {
		stage = "parse"
		doc, err := document.Parse(res, format, rec.parseOptions())
		if err != nil {
			return 0, err
		}
		pageMode, err := pagedMode(doc)
		if err == nil && mode != "" && pageMode != mode {
			err = fmt.Errorf("page %d is %s, earlier pages were %s", page, doc.Format(), mode)
		}
		if err != nil {
			return 0, &document.MalformedInputError{Format: doc.Format(), URL: res.URL, Err: err}
		}
		mode = pageMode

		stage = "extract"
		n := 0
		switch d := doc.(type) {
		case *document.JSONDocument:
			v, err := recordsRoot(rec, d.Root())
			if err != nil {
				return 0, err
			}
			if v.Kind() != jsonvalue.Array {
				return 0, fmt.Errorf("%w: got %s", extract.ErrNotRecords, v.Kind())
			}
			items = append(items, v.Items()...)
			n = v.Len()
		case *document.CSVDocument:
			if pn := d.Names(); len(pn) > 0 {
				if names == nil {
					names = pn
				} else if !slices.Equal(names, pn) {
					return 0, &document.MalformedInputError{
						Format: document.FormatCSV,
						URL:    res.URL,
						Err:    fmt.Errorf("page %d columns %v differ from %v", page, pn, names),
					}
				}
			}
			rows = append(rows, d.Rows()...)
			n = d.NumRows()
		}
		stage = "fetch"
		return n, nil
	})
	if err != nil {
		if stage == "fetch" {
			// Fetch failures are already counted by the observed fetcher.
			return nil, fmt.Errorf("recipe %q: %w", rec.Name, err)
		}
		return nil, r.fail(log, rec, stage, err)
	}

	var t *table.Table
	switch {
	case mode == ModeCSV && names == nil:
		t = table.Empty()
	case mode == ModeCSV:
		t, err = table.FromRows(names, rows)
	default:
		t, err = extract.Records(jsonvalue.ArrayValue(items...))
	}
	if err == nil {
		t, err = dropRows(t, rec.DropRows)
	}
	if err != nil {
		return nil, r.fail(log, rec, "extract", err)
	}
	log.Debug("paged", "pages", pages, "rows", t.NumRows())
	return r.finish(log, rec, mode, t, start)
}

// pagedMode accepts the documents offset paging can concatenate.
func pagedMode(doc document.Document) (string, error) {
	switch doc.(type) {
	case *document.JSONDocument:
		return ModeRecords, nil
	case *document.CSVDocument:
		return ModeCSV, nil
	default:
		return "", fmt.Errorf("cannot page %s documents", doc.Format())
	}
}

func (r *Runner) finish(log *slog.Logger, rec Recipe, mode string, t *table.Table, start time.Time) (*table.Table, error) {
	if rec.CleanNames {
		t = t.CleanNames()
	}
	r.metrics.IncTable(mode, t.NumRows())
	log.Info("table assembled", "mode", mode, "rows", t.NumRows(), "cols", t.NumCols(), "took", time.Since(start))
	return t, nil
}

func (r *Runner) fail(log *slog.Logger, rec Recipe, stage string, err error) error {
	r.metrics.IncError(observability.ClassifyError(err), stage)
	log.Warn("recipe failed", "stage", stage, "error", err)
	return fmt.Errorf("recipe %q: %s: %w", rec.Name, stage, err)
}
