package journal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"

	"spx-orb-trader/internal/models"
)

func sampleDecision(date time.Time) *models.TradeDecision {
	return &models.TradeDecision{
		Date:             date,
		Setup:            models.SetupA,
		Spread:           models.Spread{Type: models.OptionPut, ShortStrike: 6760, LongStrike: 6750},
		ReferencePrice:   6760,
		TriggerTime:      date.Add(14 * time.Hour),
		FillTime:         date.Add(14*time.Hour + 3*time.Minute),
		GrossCredit:      4.70,
		NetCredit:        4.60,
		Quantity:         5,
		RiskBudget:       3000,
		MaxLossPerSpread: 540,
		EquityBefore:     100000,
		OrderID:          "1003811730",
		OrderStatus:      "ACCEPTED",
	}
}

func sampleSettlement() *models.SettlementResult {
	return &models.SettlementResult{
		ClosePrice:      6755,
		SettlementValue: 5,
		PnLPerSpread:    -40,
		TotalPnL:        -200,
		SettledAt:       time.Date(2025, 8, 25, 20, 15, 0, 0, time.UTC),
	}
}

func TestJournalAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "trades.csv")
	j := NewCSVJournal(path)

	// Missing file reads as empty, not as an error.
	rows, err := j.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll on missing file: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("Expected empty journal, got %d rows", len(rows))
	}

	day1 := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 8, 26, 0, 0, 0, 0, time.UTC)

	if err := j.Append(NewTradeRow(sampleDecision(day1), sampleSettlement())); err != nil {
		t.Fatalf("First append: %v", err)
	}
	if err := j.Append(NewTradeRow(sampleDecision(day2), sampleSettlement())); err != nil {
		t.Fatalf("Second append: %v", err)
	}

	rows, err = j.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Date != "2025-08-25" || rows[1].Date != "2025-08-26" {
		t.Errorf("Row dates wrong: %s, %s", rows[0].Date, rows[1].Date)
	}
	if rows[0].Setup != "A" || rows[0].Direction != "BULLISH" || rows[0].OptionType != "PUT" {
		t.Errorf("Row mapping wrong: %+v", rows[0])
	}
	if rows[0].TotalPnL != -200 || rows[0].Quantity != 5 {
		t.Errorf("Row values wrong: %+v", rows[0])
	}

	// Appending must not duplicate the header line.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Read raw journal: %v", err)
	}
	if n := strings.Count(string(raw), "date,"); n != 1 {
		t.Errorf("Expected exactly one header, found %d in:\n%s", n, raw)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Errorf("Expected header plus 2 rows, got %d lines", len(lines))
	}
}

// fakePutter records uploads instead of hitting S3.
type fakePutter struct {
	inputs []*s3.PutObjectInput
	err    error
}

func (f *fakePutter) PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, input)
	return &s3.PutObjectOutput{}, nil
}

func TestArchiverUploadsJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	if err := os.WriteFile(path, []byte("date,total_pnl\n2025-08-25,-200\n"), 0644); err != nil {
		t.Fatalf("Write journal: %v", err)
	}

	putter := &fakePutter{}
	a := &Archiver{client: putter, bucket: "orb-journal", prefix: "prod/"}

	key, err := a.ArchiveJournal(context.Background(), path, time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ArchiveJournal: %v", err)
	}
	if key != "prod/journal-2025-08-25.csv" {
		t.Errorf("Unexpected key: %s", key)
	}
	if len(putter.inputs) != 1 {
		t.Fatalf("Expected 1 upload, got %d", len(putter.inputs))
	}
	input := putter.inputs[0]
	if aws.StringValue(input.Bucket) != "orb-journal" {
		t.Errorf("Unexpected bucket: %s", aws.StringValue(input.Bucket))
	}
	if aws.StringValue(input.Key) != key {
		t.Errorf("Key mismatch: %s vs %s", aws.StringValue(input.Key), key)
	}
	if aws.StringValue(input.ContentType) != "text/csv" {
		t.Errorf("Unexpected content type: %s", aws.StringValue(input.ContentType))
	}
}

func TestArchiverKeyWithoutPrefix(t *testing.T) {
	a := &Archiver{bucket: "orb-journal"}
	key := a.objectKey(time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC))
	if key != "journal-2025-08-25.csv" {
		t.Errorf("Unexpected key: %s", key)
	}
}

func TestArchiverMissingFile(t *testing.T) {
	a := &Archiver{client: &fakePutter{}, bucket: "orb-journal"}
	_, err := a.ArchiveJournal(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), time.Now())
	if err == nil {
		t.Error("Expected error for missing journal file")
	}
}
