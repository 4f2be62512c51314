package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"wisefido-vitaldrift/internal/models"

	"github.com/xuri/excelize/v2"
)

const alarmSheetName = "Drift Alarms"

// AlarmExportHeader 漂移报警导出表头
var AlarmExportHeader = []string{
	"Event ID",
	"Device ID",
	"Triggered At",
	"Alarm Level",
	"Alarm Status",
	"Triggered By",
	"HR Short",
	"HR Long",
	"RR Short",
	"RR Long",
}

var alarmColumnWidths = []float64{38, 18, 20, 12, 12, 24, 10, 10, 10, 10}

// GenerateAlarmEventsExport 生成漂移报警导出 Excel 文件，events 为空时只有表头
func GenerateAlarmEventsExport(events []models.AlarmEvent) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(alarmSheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FDE9E7"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range AlarmExportHeader {
		if err := setCellValue(f, col+1, 1, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header: %w", err)
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(alarmSheetName, name, name, alarmColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(AlarmExportHeader), 1)
	if err := f.SetCellStyle(alarmSheetName, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, event := range events {
		row := i + 2
		for col, value := range alarmRow(event) {
			if value == nil {
				continue
			}
			if err := setCellValue(f, col+1, row, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell at row %d: %w", row, err)
			}
		}
	}

	if err := f.SetPanes(alarmSheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// alarmRow 按表头顺序展开一条报警；trigger_data 无法解析时信号列留空
func alarmRow(event models.AlarmEvent) []any {
	row := []any{
		event.EventID,
		event.DeviceID,
		event.TriggeredAt.Format("2006-01-02 15:04:05"),
		event.AlarmLevel,
		event.AlarmStatus,
		nil, nil, nil, nil, nil,
	}

	var trigger models.DriftTriggerData
	if len(event.TriggerData) == 0 || json.Unmarshal(event.TriggerData, &trigger) != nil {
		return row
	}
	names := make([]string, 0, len(trigger.TriggeredBy))
	for _, sig := range trigger.TriggeredBy {
		names = append(names, string(sig))
	}
	row[5] = strings.Join(names, ",")

	col := 6
	for _, sig := range models.Signals {
		snap, ok := trigger.Signals[sig]
		if ok && snap.ShortWindow != nil {
			row[col] = *snap.ShortWindow
		}
		if ok && snap.LongWindow != nil {
			row[col+1] = *snap.LongWindow
		}
		col += 2
	}
	return row
}

func setCellValue(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(alarmSheetName, cell, value)
}
