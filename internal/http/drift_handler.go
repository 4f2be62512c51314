package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"wisefido-vitaldrift/internal/consumer"
	"wisefido-vitaldrift/internal/evaluator"
	"wisefido-vitaldrift/internal/models"
	"wisefido-vitaldrift/internal/store"

	"go.uber.org/zap"
)

// DeviceRunner 立即执行一个设备的检测周期（由 consumer.Poller 实现）
type DeviceRunner interface {
	RunDevice(ctx context.Context, deviceID string) (*models.CycleResult, error)
}

// AlarmEventLister 报警事件查询（由 repository.AlarmEventsRepository 实现）
type AlarmEventLister interface {
	ListRecentByDevice(ctx context.Context, tenantID, deviceID, eventType string, limit int) ([]models.AlarmEvent, error)
}

// DeviceStatus 设备当前计数
type DeviceStatus struct {
	DeviceID string                `json:"device_id"`
	Counters map[models.Signal]int `json:"counters"`
	Trigger  int                   `json:"trigger"`
}

// DriftHandler 漂移检测 Handler
type DriftHandler struct {
	tenantID string
	devices  []string
	runner   DeviceRunner
	samples  store.SampleStore
	states   consumer.StateStore
	alarms   AlarmEventLister // 未启用数据库时为 nil
	logger   *zap.Logger
}

// NewDriftHandler 创建漂移检测 Handler
func NewDriftHandler(
	tenantID string,
	devices []string,
	runner DeviceRunner,
	samples store.SampleStore,
	states consumer.StateStore,
	alarms AlarmEventLister,
	logger *zap.Logger,
) *DriftHandler {
	return &DriftHandler{
		tenantID: tenantID,
		devices:  devices,
		runner:   runner,
		samples:  samples,
		states:   states,
		alarms:   alarms,
		logger:   logger,
	}
}

// ListDevices 已配置设备及其计数
func (h *DriftHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	out := make([]DeviceStatus, 0, len(h.devices))
	for _, id := range h.devices {
		status, err := h.status(r.Context(), id)
		if err != nil {
			h.logger.Error("Failed to load device state", zap.String("device_id", id), zap.Error(err))
			writeFail(w, http.StatusServiceUnavailable, "state store unavailable")
			return
		}
		out = append(out, status)
	}
	writeOk(w, out)
}

// GetState 单个设备的计数
func (h *DriftHandler) GetState(w http.ResponseWriter, r *http.Request, deviceID string) {
	if !h.known(deviceID) {
		writeFail(w, http.StatusNotFound, "unknown device")
		return
	}

	status, err := h.status(r.Context(), deviceID)
	if err != nil {
		h.logger.Error("Failed to load device state", zap.String("device_id", deviceID), zap.Error(err))
		writeFail(w, http.StatusServiceUnavailable, "state store unavailable")
		return
	}
	writeOk(w, status)
}

// Evaluate 立即执行一次检测周期
func (h *DriftHandler) Evaluate(w http.ResponseWriter, r *http.Request, deviceID string) {
	if !h.known(deviceID) {
		writeFail(w, http.StatusNotFound, "unknown device")
		return
	}

	result, err := h.runner.RunDevice(r.Context(), deviceID)
	switch {
	case err == nil:
		writeOk(w, result)
	case errors.Is(err, evaluator.ErrCycleInProgress):
		writeFail(w, http.StatusConflict, "detection cycle already in progress")
	case errors.Is(err, store.ErrUnavailable):
		writeFail(w, http.StatusServiceUnavailable, "sample store unavailable: "+err.Error())
	case errors.Is(err, consumer.ErrStateUnavailable):
		writeFail(w, http.StatusServiceUnavailable, "state store unavailable: "+err.Error())
	default:
		writeFail(w, http.StatusInternalServerError, err.Error())
	}
}

// ListAlarms 设备最近的漂移报警事件
func (h *DriftHandler) ListAlarms(w http.ResponseWriter, r *http.Request, deviceID string) {
	if !h.known(deviceID) {
		writeFail(w, http.StatusNotFound, "unknown device")
		return
	}
	if h.alarms == nil {
		writeFail(w, http.StatusServiceUnavailable, "alarm events are not enabled")
		return
	}

	limit := queryLimit(r, 50)
	events, err := h.alarms.ListRecentByDevice(r.Context(), h.tenantID, deviceID, models.EventTypeVitalSignDrift, limit)
	if err != nil {
		h.logger.Error("Failed to list alarm events", zap.String("device_id", deviceID), zap.Error(err))
		writeFail(w, http.StatusInternalServerError, "failed to list alarm events")
		return
	}
	if events == nil {
		events = []models.AlarmEvent{}
	}

	if r.URL.Query().Get("format") == "xlsx" {
		data, err := GenerateAlarmEventsExport(events)
		if err != nil {
			h.logger.Error("Failed to export alarm events", zap.String("device_id", deviceID), zap.Error(err))
			writeFail(w, http.StatusInternalServerError, "failed to export alarm events")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=drift-alarms-%s.xlsx", deviceID))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	writeOk(w, events)
}

const (
	WindowModeSeries = "series"
	WindowModeScalar = "scalar"
)

// windowModes 窗口查询模式；tma2m / mean5m 为旧查询接口的模式名
var windowModes = map[string]string{
	WindowModeSeries: WindowModeSeries,
	WindowModeScalar: WindowModeScalar,
	"tma2m":          WindowModeSeries,
	"mean5m":         WindowModeScalar,
}

// WindowValues 单个信号的窗口查询结果：series 模式返回 values，scalar 模式返回 value
type WindowValues struct {
	DeviceID string        `json:"device_id"`
	Signal   models.Signal `json:"signal"`
	Mode     string        `json:"mode"`
	Values   []float64     `json:"values"`
	Value    *float64      `json:"value"`
}

// GetWindows 直接查询时序存储中某信号的平滑序列或长窗口均值
func (h *DriftHandler) GetWindows(w http.ResponseWriter, r *http.Request, deviceID string) {
	if !h.known(deviceID) {
		writeFail(w, http.StatusNotFound, "unknown device")
		return
	}
	if h.samples == nil {
		writeFail(w, http.StatusServiceUnavailable, "sample store is not configured")
		return
	}

	q := r.URL.Query()
	signal := models.Signal(q.Get("signal"))
	if !slices.Contains(models.Signals, signal) {
		writeFail(w, http.StatusBadRequest, fmt.Sprintf("invalid signal %q", q.Get("signal")))
		return
	}
	mode := WindowModeSeries
	if raw := q.Get("mode"); raw != "" {
		m, ok := windowModes[raw]
		if !ok {
			writeFail(w, http.StatusBadRequest, fmt.Sprintf("invalid mode %q", raw))
			return
		}
		mode = m
	}

	out := WindowValues{DeviceID: deviceID, Signal: signal, Mode: mode}
	var err error
	if mode == WindowModeSeries {
		out.Values, err = h.samples.QuerySeries(r.Context(), signal, deviceID)
		if out.Values == nil {
			out.Values = []float64{}
		}
	} else {
		out.Value, err = h.samples.QueryScalar(r.Context(), signal, deviceID)
	}
	if err != nil {
		h.logger.Error("Failed to query sample window",
			zap.String("device_id", deviceID),
			zap.String("signal", string(signal)),
			zap.String("mode", mode),
			zap.Error(err),
		)
		if errors.Is(err, store.ErrUnavailable) {
			writeFail(w, http.StatusServiceUnavailable, "sample store unavailable: "+err.Error())
			return
		}
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOk(w, out)
}

func (h *DriftHandler) status(ctx context.Context, deviceID string) (DeviceStatus, error) {
	st, err := h.states.Load(ctx, deviceID)
	if err != nil {
		return DeviceStatus{}, err
	}
	return DeviceStatus{
		DeviceID: deviceID,
		Counters: st.Counters(),
		Trigger:  st.HeartRate.Trigger,
	}, nil
}

func (h *DriftHandler) known(deviceID string) bool {
	return slices.Contains(h.devices, deviceID)
}
