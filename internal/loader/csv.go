// Package loader reads spending records from CSV files, Cloud Storage objects
// and BigQuery into ledger transactions.
package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dvloznov/financegpt/internal/ledger"
)

var (
	// ErrMissingColumns is returned when the header lacks date, category or amount.
	ErrMissingColumns = errors.New("missing required columns")
	// ErrEmptyInput is returned for input without a header row.
	ErrEmptyInput = errors.New("empty input")

	errBadDate   = errors.New("unparsable date")
	errBadAmount = errors.New("unparsable amount")
)

var requiredColumns = []string{"date", "category", "amount"}

// noteColumns are tried in order for the optional note.
var noteColumns = []string{"notes", "note", "description"}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// RowError describes a record that was skipped.
type RowError struct {
	Source string
	Line   int
	Err    error
}

func (e RowError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Result is what one source produced.
type Result struct {
	Source       string
	Transactions []ledger.Transaction
	Rejected     []RowError
}

// ParseCSV reads a spending CSV. The delimiter (comma, semicolon or tab) is
// sniffed from the header line, header names are matched case and space
// insensitively, and categories are title-cased. Rows with an unparsable
// date, a blank category or a non-positive amount are skipped and reported.
func ParseCSV(r io.Reader, source string) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("ParseCSV: read input: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return Result{}, fmt.Errorf("ParseCSV: %w", ErrEmptyInput)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("ParseCSV: read header: %w", err)
	}
	cols := indexColumns(header)

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("ParseCSV: %w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	noteCol := -1
	for _, name := range noteColumns {
		if i, ok := cols[name]; ok {
			noteCol = i
			break
		}
	}

	title := cases.Title(language.Und)
	res := Result{Source: source}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Rejected = append(res.Rejected, RowError{Source: source, Line: perr.Line, Err: err})
				continue
			}
			return Result{}, fmt.Errorf("ParseCSV: read record: %w", err)
		}
		if isBlank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)

		tx, err := parseRecord(record, cols, noteCol, title)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Source: source, Line: line, Err: err})
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res, nil
}

func parseRecord(record []string, cols map[string]int, noteCol int, title cases.Caser) (ledger.Transaction, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := parseDate(field(cols["date"]))
	if err != nil {
		return ledger.Transaction{}, err
	}

	category := title.String(strings.Join(strings.Fields(field(cols["category"])), " "))
	if category == "" {
		return ledger.Transaction{}, ledger.ErrEmptyCategory
	}

	amount, err := parseAmount(field(cols["amount"]))
	if err != nil {
		return ledger.Transaction{}, err
	}
	if !amount.IsPositive() {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrNonPositiveAmount, amount)
	}

	return ledger.Transaction{
		Date:     date,
		Category: category,
		Amount:   amount,
		Note:     field(noteCol),
	}, nil
}

func parseDate(s string) (civil.Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("%w: %q", errBadDate, s)
}

// parseAmount accepts plain decimals with an optional currency symbol and
// comma thousands separators.
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", "€", "", "£", "", " ", "").Replace(s)
	if strings.Contains(clean, ".") {
		clean = strings.ReplaceAll(clean, ",", "")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", errBadAmount, s)
	}
	return d, nil
}

// sniffDelimiter picks the candidate occurring most often in the first line.
// Ties and headers with none of them fall back to a comma.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	best, bestCount := ',', bytes.Count(first, []byte{','})
	for _, c := range []rune{';', '\t'} {
		if n := bytes.Count(first, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.Join(strings.Fields(h), "_"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes transactions with the header date,category,amount,notes.
func WriteCSV(w io.Writer, txs []ledger.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "category", "amount", "notes"}); err != nil {
		return fmt.Errorf("WriteCSV: write header: %w", err)
	}
	for _, tx := range txs {
		if err := cw.Write([]string{tx.Date.String(), tx.Category, tx.Amount.StringFixed(2), tx.Note}); err != nil {
			return fmt.Errorf("WriteCSV: write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}
