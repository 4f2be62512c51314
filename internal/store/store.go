// Package store 定义检测周期使用的时序数据查询接口及其实现。
package store

import (
	"context"
	"errors"
	"math"
	"time"

	"wisefido-vitaldrift/internal/models"
)

// ErrUnavailable 时序存储不可用（连接、传输、查询或响应解析失败）。
// 与"无数据"不同：调用方不得将其视为离线。
var ErrUnavailable = errors.New("sample store unavailable")

// SampleStore 时序数据查询接口
type SampleStore interface {
	// QuerySeries 返回短窗口平滑序列（可能为空）
	QuerySeries(ctx context.Context, signal models.Signal, deviceID string) ([]float64, error)
	// QueryScalar 返回长窗口均值，无数据时返回 nil
	QueryScalar(ctx context.Context, signal models.Signal, deviceID string) (*float64, error)
}

// WindowSpec 查询窗口参数
type WindowSpec struct {
	Lookback    time.Duration // 序列回看范围，如 12h
	Every       time.Duration // 移动平均步长，如 5m
	Period      time.Duration // 移动平均窗口，如 10m
	PointWindow time.Duration // 长窗口均值范围，如 2m
}

// DefaultWindowSpec 默认窗口参数
func DefaultWindowSpec() WindowSpec {
	return WindowSpec{
		Lookback:    12 * time.Hour,
		Every:       5 * time.Minute,
		Period:      10 * time.Minute,
		PointWindow: 2 * time.Minute,
	}
}

// usable 可参与计算的采样值：有限且非零（0 表示传感器未上报）
func usable(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
