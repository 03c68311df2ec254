package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dyike/BriefCast/internal/models"
)

// ReadCalendarCSV reads an id,est_date,title calendar file. Columns are
// located by header name so extra columns are ignored.
func ReadCalendarCSV(path string) ([]models.CalendarRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	get := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []models.CalendarRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rows = append(rows, models.CalendarRow{
			ID:      get(record, "id"),
			ESTDate: get(record, "est_date"),
			Title:   get(record, "title"),
		})
	}
	return rows, nil
}

// WriteCalendarCSV writes rows with the id,est_date,title header.
func WriteCalendarCSV(path string, rows []models.CalendarRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"id", "est_date", "title"}); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write([]string{r.ID, r.ESTDate, r.Title}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
