package loader

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/financegpt/internal/ledger"
)

// UncategorizedCategory replaces a missing category name.
const UncategorizedCategory = "Uncategorized"

var datasetPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,1024}$`)

// SpendingRow is one outgoing transaction as selected from the
// transactions table. Amount is already positive.
type SpendingRow struct {
	TransactionDate civil.Date          `bigquery:"transaction_date"`
	Amount          *big.Rat            `bigquery:"amount"`
	CategoryName    bigquery.NullString `bigquery:"category_name"`
	Description     bigquery.NullString `bigquery:"description"`
}

// QuerySpendingWithClient selects money-out rows between start and end,
// inclusive, skipping internal transfers. Amounts are negated so spending is
// positive.
func QuerySpendingWithClient(ctx context.Context, client *bigquery.Client, dataset string, start, end civil.Date) ([]SpendingRow, error) {
	if !datasetPattern.MatchString(dataset) {
		return nil, fmt.Errorf("QuerySpending: invalid dataset name %q", dataset)
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_date,
			-t.amount AS amount,
			t.category_name,
			COALESCE(t.normalized_description, t.raw_description) AS description
		FROM %s.transactions t
		WHERE t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		  AND t.amount < 0
		  AND COALESCE(t.is_internal_transfer, FALSE) = FALSE
		ORDER BY t.transaction_date, t.created_ts
	`, dataset))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: start},
		{Name: "end_date", Value: end},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QuerySpending: query read: %w", err)
	}

	var rows []SpendingRow
	for {
		var r SpendingRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QuerySpending: iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// ToTransaction converts a row, defaulting a missing category.
func (r SpendingRow) ToTransaction() (ledger.Transaction, error) {
	if r.Amount == nil {
		return ledger.Transaction{}, fmt.Errorf("%w: missing amount", errBadAmount)
	}
	amount := decimal.NewFromBigRat(r.Amount, 2)
	if !amount.IsPositive() {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrNonPositiveAmount, amount)
	}

	category := UncategorizedCategory
	if r.CategoryName.Valid && strings.TrimSpace(r.CategoryName.StringVal) != "" {
		category = strings.TrimSpace(r.CategoryName.StringVal)
	}

	return ledger.Transaction{
		Date:     r.TransactionDate,
		Category: category,
		Amount:   amount,
		Note:     strings.TrimSpace(r.Description.StringVal),
	}, nil
}

// BigQuerySource reads spending rows from a finance dataset.
type BigQuerySource struct {
	Client  *bigquery.Client
	Dataset string
	Start   civil.Date
	End     civil.Date
}

func (s BigQuerySource) Name() string {
	return fmt.Sprintf("bigquery:%s.transactions[%s..%s]", s.Dataset, s.Start, s.End)
}

func (s BigQuerySource) Load(ctx context.Context) (Result, error) {
	rows, err := QuerySpendingWithClient(ctx, s.Client, s.Dataset, s.Start, s.End)
	if err != nil {
		return Result{}, err
	}

	res := Result{Source: s.Name()}
	for i, row := range rows {
		tx, err := row.ToTransaction()
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Source: res.Source, Line: i + 1, Err: err})
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res, nil
}
