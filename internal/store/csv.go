package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseFluxValues 解析 InfluxDB 返回的（带或不带注解的）CSV，提取 _value 列。
// 无法解析为有限数值的单元格直接丢弃。
func parseFluxValues(body []byte) ([]float64, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	var (
		valueIdx = -1
		errIdx   = -1
		values   []float64
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed csv response: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		if strings.HasPrefix(record[0], "#") {
			valueIdx, errIdx = -1, -1
			continue
		}
		if idx, ok := headerIndex(record); ok {
			valueIdx = idx
			errIdx = -1
			continue
		}
		if idx := indexOf(record, "error"); idx >= 0 && indexOf(record, "reference") >= 0 {
			valueIdx, errIdx = -1, idx
			continue
		}
		if errIdx >= 0 && errIdx < len(record) {
			return nil, fmt.Errorf("query error: %s", record[errIdx])
		}
		if valueIdx < 0 || valueIdx >= len(record) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[valueIdx]), 64)
		if err != nil || !usable(v) {
			continue
		}
		values = append(values, v)
	}

	return values, nil
}

// headerIndex 表头行包含 _value 列
func headerIndex(record []string) (int, bool) {
	idx := indexOf(record, "_value")
	if idx < 0 {
		return -1, false
	}
	return idx, indexOf(record, "result") >= 0 || indexOf(record, "table") >= 0
}

func indexOf(record []string, name string) int {
	for i, h := range record {
		if h == name {
			return i
		}
	}
	return -1
}
