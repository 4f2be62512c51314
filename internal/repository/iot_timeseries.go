package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-vitaldrift/internal/models"
	"wisefido-vitaldrift/internal/store"

	"go.uber.org/zap"
)

// signalColumns 信号 -> iot_timeseries 列名（固定白名单，不接受外部输入）
var signalColumns = map[models.Signal]string{
	models.SignalHeartRate:   "heart_rate",
	models.SignalRespiration: "respiratory_rate",
}

// IoTTimeSeriesRepository IoT 时序数据仓库（实现 store.SampleStore）
type IoTTimeSeriesRepository struct {
	db       *sql.DB
	tenantID string
	window   store.WindowSpec
	logger   *zap.Logger
	now      func() time.Time
}

// NewIoTTimeSeriesRepository 创建 IoT 时序数据仓库
func NewIoTTimeSeriesRepository(db *sql.DB, tenantID string, window store.WindowSpec, logger *zap.Logger) *IoTTimeSeriesRepository {
	return &IoTTimeSeriesRepository{
		db:       db,
		tenantID: tenantID,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
}

// QuerySeries 读取回看范围内的原始采样，并按移动平均窗口平滑
func (r *IoTTimeSeriesRepository) QuerySeries(ctx context.Context, signal models.Signal, deviceID string) ([]float64, error) {
	column, ok := signalColumns[signal]
	if !ok {
		return nil, fmt.Errorf("unknown signal: %s", signal)
	}

	query := fmt.Sprintf(`
		SELECT timestamp, %[1]s::float8
		FROM iot_timeseries
		WHERE tenant_id = $1
		  AND device_id = $2
		  AND timestamp >= $3
		  AND %[1]s IS NOT NULL
		  AND %[1]s <> 0
		ORDER BY timestamp ASC
	`, column)

	since := r.now().Add(-r.window.Lookback)
	rows, err := r.db.QueryContext(ctx, query, r.tenantID, deviceID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query iot_timeseries: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var points []store.Point
	for rows.Next() {
		var (
			ts    time.Time
			value sql.NullFloat64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			r.logger.Warn("Skipping malformed iot_timeseries row",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			continue
		}
		if !value.Valid {
			continue
		}
		points = append(points, store.Point{Time: ts, Value: value.Float64})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate iot_timeseries: %v", store.ErrUnavailable, err)
	}

	return store.TimedMovingAverage(points, r.window.Every, r.window.Period), nil
}

// QueryScalar 最近 PointWindow 内的均值；无数据返回 nil
func (r *IoTTimeSeriesRepository) QueryScalar(ctx context.Context, signal models.Signal, deviceID string) (*float64, error) {
	column, ok := signalColumns[signal]
	if !ok {
		return nil, fmt.Errorf("unknown signal: %s", signal)
	}

	query := fmt.Sprintf(`
		SELECT AVG(%[1]s)::float8
		FROM iot_timeseries
		WHERE tenant_id = $1
		  AND device_id = $2
		  AND timestamp >= $3
		  AND %[1]s IS NOT NULL
		  AND %[1]s <> 0
	`, column)

	since := r.now().Add(-r.window.PointWindow)
	var mean sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, query, r.tenantID, deviceID, since).Scan(&mean); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query iot_timeseries mean: %v", store.ErrUnavailable, err)
	}
	if !mean.Valid {
		return nil, nil
	}

	v := mean.Float64
	return &v, nil
}
