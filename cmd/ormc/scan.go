//go:build !wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tinywasm/lazyorm"
	"github.com/tinywasm/lazyorm/internal/jsonrows"
)

var (
	scanOffset int
	scanLimit  int
	scanList   bool
	scanFormat string
)

var scanCmd = &cobra.Command{
	Use:   "scan FILE.jsonl",
	Short: "Stream the rows of a JSONL file through a cursor",
	Long: `Stream the rows of a JSONL file through a lazyorm cursor and print each
row with its index. Rows are read one at a time; --list materializes the
whole bounded result first instead.

Examples:
  ormc scan users.jsonl
  ormc scan users.jsonl --offset 100 --limit 10
  ormc scan users.jsonl --list --format spew`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanOffset, "offset", 0, "Rows to skip")
	scanCmd.Flags().IntVar(&scanLimit, "limit", -1, "Rows to print (-1 for all)")
	scanCmd.Flags().BoolVar(&scanList, "list", false, "Materialize the bounded result as a list")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "json", "Output format (json or spew)")
}

func runScan(cmd *cobra.Command, args []string) error {
	limit := scanLimit
	if limit < 0 {
		limit = lazyorm.NoLimit
	}
	bounds, err := lazyorm.NewRowBounds(scanOffset, limit)
	if err != nil {
		return err
	}
	emit, err := rowPrinter(cmd.OutOrStdout(), scanFormat)
	if err != nil {
		return err
	}
	return scan(cmd.Context(), args[0], bounds, scanList, emit)
}

func scan(ctx context.Context, path string, bounds lazyorm.RowBounds, list bool, emit func(int, lazyorm.Model) error) error {
	table := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	cfg := lazyorm.NewConfiguration()
	cfg.Materializer = jsonrows.Materializer{Table: table}
	cfg.SetLog(stderrLog)

	stmt := &lazyorm.Statement{
		ID:     table + ".scan",
		Source: lazyorm.StaticSQL{Mode: lazyorm.ActionReadAll, SQL: "SELECT * FROM " + table},
		Result: &lazyorm.ResultMap{ID: table},
	}

	ex := lazyorm.NewQueryExecutor(cfg, jsonrows.Open(path))
	defer ex.Close(ctx, false)

	if list {
		rows, err := ex.Query(ctx, stmt, nil, bounds, nil)
		if err != nil {
			return err
		}
		for i, m := range rows {
			if err := emit(bounds.Offset()+i, m); err != nil {
				return err
			}
		}
		return nil
	}

	cur, err := ex.QueryCursor(ctx, stmt, nil, bounds)
	if err != nil {
		return err
	}
	defer cur.Close()
	for m, err := range cur.All() {
		if err != nil {
			return err
		}
		if err := emit(cur.CurrentIndex(), m); err != nil {
			return err
		}
	}
	return nil
}

func rowPrinter(w io.Writer, format string) (func(int, lazyorm.Model) error, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		return func(index int, m lazyorm.Model) error {
			return enc.Encode(struct {
				Index int           `json:"index"`
				Row   lazyorm.Model `json:"row"`
			}{index, m})
		}, nil
	case "spew":
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
		return func(index int, m lazyorm.Model) error {
			fmt.Fprintf(w, "#%d ", index)
			cfg.Fdump(w, m)
			return nil
		}, nil
	}
	return nil, errors.Errorf("unknown format %q (want json or spew)", format)
}
