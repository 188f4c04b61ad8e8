// Package pipeline runs extraction recipes: fetch, parse, extract, then assemble one
// table per recipe.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"

	"github.com/baxromumarov/tabscrape/internal/document"
	"github.com/baxromumarov/tabscrape/internal/extract"
	"github.com/baxromumarov/tabscrape/internal/selector"
)

// Recipe describes one extraction. With no columns the whole source becomes the table:
// an HTML table by index, every CSV row, or the JSON records at Records.
type Recipe struct {
	Name      string            `yaml:"name" json:"name"`
	URL       string            `yaml:"url" json:"url"`
	Query     map[string]string `yaml:"query" json:"query"`
	Format    string            `yaml:"format" json:"format"`
	Delimiter string            `yaml:"delimiter" json:"delimiter"`
	// Header defaults to true for CSV and HTML tables.
	Header  *bool `yaml:"header" json:"header"`
	Lenient bool  `yaml:"lenient" json:"lenient"`

	Table   *int   `yaml:"table" json:"table"`
	Records string `yaml:"records" json:"records"`

	DropRows        []int `yaml:"drop_rows" json:"drop_rows"`
	DropUniformRows bool  `yaml:"drop_uniform_rows" json:"drop_uniform_rows"`
	Fill            bool  `yaml:"fill" json:"fill"`
	CleanNames      bool  `yaml:"clean_names" json:"clean_names"`

	Paginate *Paginate `yaml:"paginate" json:"paginate"`
	Columns  []Column  `yaml:"columns" json:"columns"`
}

// Paginate pages a JSON records endpoint with $limit/$offset.
type Paginate struct {
	Limit    int `yaml:"limit" json:"limit"`
	MaxPages int `yaml:"max_pages" json:"max_pages"`
}

// Column extracts one named column. Kind is css, xpath, path or column.
type Column struct {
	Name     string `yaml:"name" json:"name"`
	Kind     string `yaml:"kind" json:"kind"`
	Expr     string `yaml:"expr" json:"expr"`
	Attr     string `yaml:"attr" json:"attr"`
	Text     string `yaml:"text" json:"text"`
	Absolute bool   `yaml:"absolute" json:"absolute"`
	Required bool   `yaml:"required" json:"required"`
}

// LoadRecipe reads a recipe file; .yaml and .yml are YAML, anything else JSON5.
func LoadRecipe(path string) (Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Recipe{}, err
	}
	format := "json5"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	rec, err := ParseRecipe(data, format)
	if err != nil {
		return Recipe{}, fmt.Errorf("recipe %s: %w", path, err)
	}
	if rec.Name == "" {
		rec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return rec, nil
}

// ParseRecipe decodes a YAML or JSON5 (and so JSON) recipe and validates it.
func ParseRecipe(data []byte, format string) (Recipe, error) {
	var rec Recipe
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return rec, err
		}
	case "json", "json5":
		if err := json5.Unmarshal(data, &rec); err != nil {
			return rec, err
		}
	default:
		return rec, fmt.Errorf("unknown recipe format %q", format)
	}
	return rec, rec.Validate()
}

// Validate checks the recipe without fetching anything.
func (r Recipe) Validate() error {
	var errs []error
	if strings.TrimSpace(r.URL) == "" {
		errs = append(errs, errors.New("url is required"))
	}
	format, err := document.ParseFormat(r.Format)
	if err != nil {
		errs = append(errs, err)
	}
	if _, err := r.delimiter(); err != nil {
		errs = append(errs, err)
	}
	if r.Table != nil && *r.Table < 0 {
		errs = append(errs, fmt.Errorf("table index %d is negative", *r.Table))
	}
	if r.Table != nil && len(r.Columns) > 0 {
		errs = append(errs, errors.New("table and columns are mutually exclusive"))
	}
	if r.Records != "" {
		if _, err := selector.ParsePath(r.Records); err != nil {
			errs = append(errs, fmt.Errorf("records: %w", err))
		}
	}
	if r.Paginate != nil {
		if len(r.Columns) > 0 || r.Table != nil {
			errs = append(errs, errors.New("paginate applies to json records and csv recipes only"))
		}
		if format == document.FormatHTML {
			errs = append(errs, errors.New("paginate cannot page html documents"))
		}
	}

	seen := map[string]bool{}
	for i, c := range r.Columns {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("column %d: name is required", i))
		} else if seen[c.Name] {
			errs = append(errs, fmt.Errorf("column %d: duplicate name %q", i, c.Name))
		}
		seen[c.Name] = true
		if _, err := c.selector(); err != nil {
			errs = append(errs, fmt.Errorf("column %q: %w", c.Name, err))
		}
		if _, err := c.textMode(); err != nil {
			errs = append(errs, fmt.Errorf("column %q: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (r Recipe) header() bool {
	return r.Header == nil || *r.Header
}

func (r Recipe) delimiter() (rune, error) {
	if r.Delimiter == "" {
		return 0, nil
	}
	d, size := utf8.DecodeRuneInString(r.Delimiter)
	if size != len(r.Delimiter) {
		return 0, fmt.Errorf("delimiter %q must be a single character", r.Delimiter)
	}
	return d, nil
}

func (r Recipe) parseOptions() document.Options {
	d, _ := r.delimiter()
	return document.Options{Delimiter: d, Header: r.header(), Lenient: r.Lenient}
}

func (c Column) selector() (selector.Selector, error) {
	sel, err := selector.Parse(c.Kind, c.Expr)
	if err != nil {
		return nil, err
	}
	if _, ok := sel.(selector.Table); ok {
		return nil, errors.New("a table selector cannot fill a column")
	}
	return sel, nil
}

func (c Column) textMode() (extract.TextMode, error) {
	switch strings.ToLower(c.Text) {
	case "", "normalized":
		return extract.TextNormalized, nil
	case "raw":
		return extract.TextRaw, nil
	default:
		return 0, fmt.Errorf("unknown text mode %q", c.Text)
	}
}
