package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/baxromumarov/tabscrape/internal/document"
	"github.com/baxromumarov/tabscrape/internal/extract"
	"github.com/baxromumarov/tabscrape/internal/observability"
	"github.com/baxromumarov/tabscrape/internal/pipeline"
	"github.com/baxromumarov/tabscrape/internal/table"
)

// statusFor maps an error kind to the HTTP status reported to clients.
func statusFor(kind string) int {
	switch kind {
	case observability.ErrorNetwork, observability.ErrorRateLimit:
		return http.StatusBadGateway
	case observability.ErrorTimeout:
		return http.StatusGatewayTimeout
	case observability.ErrorRobots:
		return http.StatusForbidden
	case observability.ErrorMalformedInput, observability.ErrorPathNotFound,
		observability.ErrorSelectorMatch, observability.ErrorColumnLength:
		return http.StatusUnprocessableEntity
	case observability.ErrorCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondRunError(w http.ResponseWriter, r *http.Request, err error) {
	kind := observability.ClassifyError(err)
	s.logger.Warn("extract request failed", "path", r.URL.Path, "kind", kind, "error", err)
	respondError(w, statusFor(kind), kind, err.Error())
}

// readBody reads the capped request body. It answers 413 when the cap is hit and 400
// for any other read failure.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecipeBytes))
	if err == nil {
		return body, true
	}
	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	respondError(w, status, "request", err.Error())
	return nil, false
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	rec, err := pipeline.ParseRecipe(body, "json")
	if err != nil {
		respondError(w, http.StatusBadRequest, "recipe", err.Error())
		return
	}

	tbl, err := s.runner.Run(r.Context(), rec)
	if err != nil {
		s.respondRunError(w, r, err)
		return
	}
	writeTable(w, r, tbl)
}

func (s *Server) handleExtractBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		respondError(w, http.StatusBadRequest, "recipe", "expected a JSON array of recipes: "+err.Error())
		return
	}
	recs := make([]pipeline.Recipe, len(raw))
	for i, msg := range raw {
		rec, err := pipeline.ParseRecipe(msg, "json")
		if err != nil {
			respondError(w, http.StatusBadRequest, "recipe", fmt.Sprintf("recipe %d: %v", i, err))
			return
		}
		recs[i] = rec
	}

	tables, err := s.runner.RunAll(r.Context(), recs)
	if err != nil {
		s.respondRunError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": tables})
}

func writeTable(w http.ResponseWriter, r *http.Request, tbl *table.Table) {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		tbl.WriteCSV(w)
	default:
		respondJSON(w, http.StatusOK, tbl)
	}
}

type tableSummary struct {
	Index  int      `json:"index"`
	Header []string `json:"header"`
	Rows   int      `json:"rows"`
	Cols   int      `json:"cols"`
	Ragged bool     `json:"ragged"`
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		respondError(w, http.StatusBadRequest, "request", "url query parameter is required")
		return
	}
	res, err := s.fetcher.Fetch(r.Context(), target, nil)
	if err != nil {
		s.respondRunError(w, r, err)
		return
	}
	doc, err := document.ParseHTML(res.Body, res.ContentType)
	if err != nil {
		s.respondRunError(w, r, err)
		return
	}

	tables := extract.Tables(doc)
	items := make([]tableSummary, len(tables))
	for i, t := range tables {
		items[i] = tableSummary{
			Index:  t.Index,
			Header: t.Header,
			Rows:   len(t.Rows),
			Cols:   t.Width(),
			Ragged: t.Ragged(),
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"url": res.URL, "items": items})
}
