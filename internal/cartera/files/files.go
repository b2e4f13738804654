package files

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
)

// ErrEmptyFile is returned when a feed has a header but no data rows.
var ErrEmptyFile = errors.New("dataframe is empty")

var feedPrefixes = map[types.DatasetKind][]string{
	types.Cartera:   {"cartera"},
	types.Cobranzas: {"cobranzas", "cobranza", "pagos"},
	types.Contratos: {"contratos", "contrato"},
	types.Gestores:  {"gestores", "gestor", "asignaciones"},
}

var supportedExt = map[string]bool{".csv": true, ".txt": true, ".xlsx": true}

// DiscoverFeeds maps every supported file in dir to the dataset it feeds, by file name
// prefix. When several files match one dataset the lexicographically last wins, so
// dated exports ("cartera_2025_03.csv") resolve to the newest.
func DiscoverFeeds(dir string) (map[types.DatasetKind]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	m := make(map[types.DatasetKind]string)
	for _, name := range names {
		if !supportedExt[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		lower := strings.ToLower(name)
		for kind, prefixes := range feedPrefixes {
			for _, p := range prefixes {
				if strings.HasPrefix(lower, p) {
					m[kind] = filepath.Join(dir, name)
				}
			}
		}
	}
	return m, nil
}

func OpenFileAndDecode(path string) (dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	return Decode(filepath.Base(path), file)
}

// Decode reads a feed from r, choosing the parser from the file name extension.
func Decode(name string, r io.Reader) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return ReadXLSX(r)
	case ".csv", ".txt", "":
		return ReadCSV(r)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("unsupported feed format: %s", name)
	}
}

// ReadCSV loads a delimited feed. Every column is kept as a string; typing happens in
// the converter so "00123" ids and "1.234,50" amounts survive. Exports from the
// legacy system come in Windows-1252, so bytes that are not valid UTF-8 are decoded
// from it.
func ReadCSV(r io.Reader) (dataframe.DataFrame, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	var reader io.Reader = bytes.NewReader(raw)
	if !utf8.Valid(raw) {
		reader = charmap.Windows1252.NewDecoder().Reader(reader)
	}

	df := dataframe.ReadCSV(reader,
		dataframe.WithDelimiter(sniffDelimiter(raw)),
		dataframe.WithLazyQuotes(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	return checkLoaded(df)
}

// ReadXLSX loads the first sheet of a workbook.
func ReadXLSX(r io.Reader) (dataframe.DataFrame, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer xl.Close()

	rows, err := xl.GetRows(xl.GetSheetName(0))
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to get rows: %w", err)
	}
	if len(rows) < 2 {
		return dataframe.DataFrame{}, ErrEmptyFile
	}

	// GetRows omits trailing empty cells; gota needs rectangular records.
	width := len(rows[0])
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > width {
			row = row[:width]
		}
		for len(row) < width {
			row = append(row, "")
		}
		records = append(records, row)
	}

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	return checkLoaded(df)
}

func checkLoaded(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := df.Error(); err != nil {
		if strings.Contains(err.Error(), "empty DataFrame") {
			return dataframe.DataFrame{}, ErrEmptyFile
		}
		return dataframe.DataFrame{}, err
	}
	if df.Nrow() == 0 {
		return dataframe.DataFrame{}, ErrEmptyFile
	}
	return df, nil
}

// sniffDelimiter picks the most frequent of ';', ',' and tab in the header line.
func sniffDelimiter(raw []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() {
		return ','
	}
	header := sc.Text()

	best, bestCount := ',', 0
	for _, d := range []rune{';', ',', '\t'} {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
