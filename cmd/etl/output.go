package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/alanchaparro/bi-sub000/internal/cartera/engine"
	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/view"
	"github.com/alanchaparro/bi-sub000/internal/logger"
)

// parseFilters reads "un=MED,ODO&tramo=4" style selections.
func parseFilters(raw string) (filter.Selection, error) {
	q, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", filter.ErrInvalidSelection, err)
	}
	return filter.FromQuery(q)
}

// parseViews expands "all" and splits a comma separated list.
func parseViews(raw string, known []string) []string {
	if raw == "" || raw == "all" {
		return known
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type viewOutput struct {
	View    string         `json:"view"`
	Filters map[string]any `json:"filters"`
	Report  any            `json:"report,omitempty"`
	Frames  []view.Frame   `json:"frames,omitempty"`
}

// computeViews runs every view and writes <outDir>/<view>.json. A view that fails is
// logged and skipped; the count of failures is returned.
func computeViews(ctx context.Context, e *engine.Engine, names []string, sel filter.Selection, frames bool, outDir string, appLogger *logger.Logger) int {
	const component = "ViewWriter"
	failed := 0
	filters := make(map[string]any, len(sel))
	for d, vals := range sel {
		filters[string(d)] = vals
	}

	for _, name := range names {
		report, err := e.Compute(ctx, name, sel, appLogger.MinLevel == logger.LevelDebug)
		if err != nil {
			appLogger.Warn(component, "View skipped: view=%s err=%v", name, err)
			failed++
			continue
		}
		out := viewOutput{View: name, Filters: filters}
		if frames {
			out.Frames, err = view.Render(name, report)
			if err != nil {
				appLogger.Warn(component, "View skipped: view=%s err=%v", name, err)
				failed++
				continue
			}
		} else {
			out.Report = report
		}

		path := filepath.Join(outDir, name+".json")
		if err := writeJSONFile(path, out); err != nil {
			appLogger.Error(component, "Failed to write view: view=%s path=%s err=%v", name, path, err)
			failed++
			continue
		}
		appLogger.Info(component, "View written: view=%s path=%s", name, path)
	}
	return failed
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
