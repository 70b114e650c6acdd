package export

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shrimpsizemoose/trekker/logger"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/overdue/internal/app"
	"github.com/shrimpsizemoose/overdue/internal/models"
)

// sheetWriter is the slice of the Sheets API the exporter needs.
type sheetWriter interface {
	Update(sheetID, writeRange string, values [][]interface{}) error
}

type sheetsWriter struct {
	svc *sheets.Service
}

func (w *sheetsWriter) Update(sheetID, writeRange string, values [][]interface{}) error {
	_, err := w.svc.Spreadsheets.Values.Update(sheetID, writeRange,
		&sheets.ValueRange{Values: values}).ValueInputOption("RAW").Do()
	return err
}

// GSheetExporter periodically writes lateness reports into Google Sheets.
type GSheetExporter struct {
	service   *app.Service
	scheduler *gocron.Scheduler
	writers   map[string]sheetWriter
	now       func() time.Time
}

func NewGSheetExporter(service *app.Service) (*GSheetExporter, error) {
	ctx := context.Background()
	e := &GSheetExporter{
		service:   service,
		scheduler: gocron.NewScheduler(time.UTC),
		writers:   make(map[string]sheetWriter),
		now:       time.Now,
	}

	for assessment, cfg := range service.Config.GSheet {
		svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets service: %w", err)
		}
		e.writers[assessment] = &sheetsWriter{svc: svc}

		_, err = e.scheduler.Cron(cfg.Schedule).Do(func() {
			if err := e.Export(assessment, cfg); err != nil {
				logger.Error.Printf("Export of %s failed: %v", assessment, err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule export of %s: %w", assessment, err)
		}
		logger.Info.Printf("Scheduled export of %s to %s (%s)", assessment, cfg.SheetName, cfg.Schedule)
	}

	e.scheduler.StartAsync()
	return e, nil
}

func (e *GSheetExporter) Stop() {
	e.scheduler.Stop()
}

var reportHeader = []interface{}{"user", "submission", "finished", "raw score", "adjusted score", "late", "penalty %"}

// reportValues lays the report out as sheet rows, header first.
func reportValues(rows []models.LatenessRow, formatTime func(int64) string) [][]interface{} {
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, reportHeader)
	for _, row := range rows {
		var adjusted interface{} = ""
		if row.AdjustedScore != nil {
			adjusted = *row.AdjustedScore
		}
		values = append(values, []interface{}{
			row.UserID,
			row.SubmissionID,
			formatTime(row.FinishedAt),
			row.RawScore,
			adjusted,
			row.Late,
			row.Penalty,
		})
	}
	return values
}

func (e *GSheetExporter) Export(assessment string, cfg app.GSheetConfig) error {
	writer, ok := e.writers[assessment]
	if !ok {
		return fmt.Errorf("no sheet configured for %s", assessment)
	}

	rows, err := e.service.LatenessReport(assessment)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	reportRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.ReportRange)
	if err := writer.Update(cfg.SheetID, reportRange, reportValues(rows, e.service.FormatTime)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	emoji := ""
	if variants := e.service.Config.EmojiVariants; len(variants) > 0 {
		emoji = variants[rand.Intn(len(variants))]
	}
	timestamp := fmt.Sprintf("UPD: %s %s", e.now().In(e.service.Grader.Calendar().Location()).Format("2 January 15:04"), emoji)

	timestampRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.TimestampRange)
	if err := writer.Update(cfg.SheetID, timestampRange, [][]interface{}{{timestamp}}); err != nil {
		return fmt.Errorf("failed to write timestamp: %w", err)
	}

	logger.Debug.Printf("Exported %d rows of %s", len(rows), assessment)
	return nil
}
