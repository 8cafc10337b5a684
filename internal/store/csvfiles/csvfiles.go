// Package csvfiles reads and writes the per-day CSV files of stock bars,
// option chains and trade ledgers.
package csvfiles

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
	"spread-backtester/pkg/utils"
)

// Importer receives the contents of a day's files.
type Importer interface {
	SaveCandles(ctx context.Context, ticker string, candles []models.Candle) error
	SaveOptionChain(ctx context.Context, ticker string, rows []models.StrikeRow) error
}

// Dir is a directory of per-day CSV files.
type Dir struct {
	root string
	loc  *time.Location
}

// New returns a Dir rooted at root. Timestamps are read back in loc.
func New(root string, loc *time.Location) *Dir {
	if loc == nil {
		loc = utils.NewYorkLocation
	}
	return &Dir{root: root, loc: loc}
}

// Root returns the directory path.
func (d *Dir) Root() string {
	return d.root
}

// StockPath is the stock bar file of date.
func (d *Dir) StockPath(date time.Time) string {
	return filepath.Join(d.root, fmt.Sprintf("stock_data_%s.csv", utils.DateKey(date)))
}

// OptionsPath is the option chain file of date.
func (d *Dir) OptionsPath(date time.Time) string {
	return filepath.Join(d.root, fmt.Sprintf("options_data_%s.csv", utils.DateKey(date)))
}

// LedgerPath is the trade ledger file of date for one model.
func (d *Dir) LedgerPath(date time.Time, model int) string {
	return filepath.Join(d.root, LedgerFileName(date, model))
}

// LedgerFileName is the base name of a ledger file.
func LedgerFileName(date time.Time, model int) string {
	return fmt.Sprintf("trades_%s_m%02d.csv", utils.DateKey(date), model)
}

// WriteCandles writes the stock bar file of date.
func (d *Dir) WriteCandles(date time.Time, candles []models.Candle) error {
	records := make([]candleRecord, len(candles))
	for i, c := range candles {
		records[i] = toCandleRecord(c)
	}
	return d.write(d.StockPath(date), &records)
}

// ReadCandles reads the stock bar file of date.
func (d *Dir) ReadCandles(date time.Time) ([]models.Candle, error) {
	var records []candleRecord
	if err := d.read(d.StockPath(date), "stock", date, &records); err != nil {
		return nil, err
	}
	candles := make([]models.Candle, 0, len(records))
	for _, r := range records {
		c, err := r.candle(d.loc)
		if err != nil {
			return nil, apperrors.NewDataError("stock", utils.DateKey(date), "bad row", err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// WriteOptionChain writes the option chain file of date.
func (d *Dir) WriteOptionChain(date time.Time, rows []models.StrikeRow) error {
	records := make([]chainRecord, len(rows))
	for i, r := range rows {
		records[i] = toChainRecord(r)
	}
	return d.write(d.OptionsPath(date), &records)
}

// ReadOptionChain reads the option chain file of date in file order.
func (d *Dir) ReadOptionChain(date time.Time) ([]models.StrikeRow, error) {
	var records []chainRecord
	if err := d.read(d.OptionsPath(date), "options", date, &records); err != nil {
		return nil, err
	}
	rows := make([]models.StrikeRow, 0, len(records))
	for _, r := range records {
		row, err := r.row(d.loc)
		if err != nil {
			return nil, apperrors.NewDataError("options", utils.DateKey(date), "bad row", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SaveLedger writes the ledger file of a run.
func (d *Dir) SaveLedger(_ context.Context, run models.BacktestRun, ledger models.Ledger) error {
	var buf bytes.Buffer
	if err := EncodeLedger(&buf, ledger); err != nil {
		return err
	}
	return d.writeBytes(d.LedgerPath(run.Date, run.Model), buf.Bytes())
}

// ReadLedger reads a ledger file written by SaveLedger.
func (d *Dir) ReadLedger(date time.Time, model int) (models.Ledger, error) {
	f, err := os.Open(d.LedgerPath(date, model))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewDataError("trades", utils.DateKey(date), "no ledger file", apperrors.ErrDataNotFound)
		}
		return nil, err
	}
	defer f.Close()
	return DecodeLedger(f, d.loc)
}

// EncodeLedger writes ledger as CSV with a header row.
func EncodeLedger(w io.Writer, ledger models.Ledger) error {
	records := make([]tradeRecord, len(ledger))
	for i, t := range ledger {
		records[i] = toTradeRecord(t)
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return nil
}

// DecodeLedger reads a ledger written by EncodeLedger.
func DecodeLedger(r io.Reader, loc *time.Location) (models.Ledger, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	ledger := models.Ledger{}
	if len(bytes.TrimSpace(data)) == 0 {
		return ledger, nil
	}

	var records []tradeRecord
	if err := gocsv.UnmarshalBytes(data, &records); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	for _, rec := range records {
		t, err := rec.trade(loc)
		if err != nil {
			return nil, err
		}
		ledger = append(ledger, t)
	}
	return ledger, nil
}

// ImportDay loads both data files of date into dst.
func (d *Dir) ImportDay(ctx context.Context, dst Importer, ticker string, date time.Time) (candles, rows int, err error) {
	bars, err := d.ReadCandles(date)
	if err != nil {
		return 0, 0, err
	}
	chain, err := d.ReadOptionChain(date)
	if err != nil {
		return 0, 0, err
	}
	if err := dst.SaveCandles(ctx, ticker, bars); err != nil {
		return 0, 0, fmt.Errorf("import candles: %w", err)
	}
	if err := dst.SaveOptionChain(ctx, ticker, chain); err != nil {
		return 0, 0, fmt.Errorf("import option chain: %w", err)
	}
	return len(bars), len(chain), nil
}

func (d *Dir) write(path string, records interface{}) error {
	var buf bytes.Buffer
	if err := gocsv.Marshal(records, &buf); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return d.writeBytes(path, buf.Bytes())
}

// writeBytes replaces path atomically.
func (d *Dir) writeBytes(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (d *Dir) read(path, dataType string, date time.Time, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewDataError(dataType, utils.DateKey(date), "no data file", apperrors.ErrDataNotFound)
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := gocsv.UnmarshalBytes(data, out); err != nil {
		return apperrors.NewDataError(dataType, utils.DateKey(date), "malformed csv", err)
	}
	return nil
}
