package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const devicesPath = "/drift/api/v1/devices"

// Router 基于标准库 http.ServeMux，附带访问日志与 panic 恢复
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Handler panic",
				zap.String("path", req.URL.Path),
				zap.Any("panic", p),
				zap.Bool("response_started", rec.wroteHeader),
			)
			// 已发出响应头时无法再改写状态码
			if !rec.wroteHeader {
				writeFail(rec, http.StatusInternalServerError, "internal error")
			}
		}
		r.logger.Debug("HTTP request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	}()
	r.mux.ServeHTTP(rec, req)
}

// RegisterHealthRoutes 注册 /healthz 与 /metrics
func (r *Router) RegisterHealthRoutes(metrics http.Handler) {
	r.Handle("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOk(w, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.HandleHandler("/metrics", metrics)
	}
}

// RegisterDriftRoutes 注册设备状态、手动评估、窗口查询与报警查询路由
func (r *Router) RegisterDriftRoutes(h *DriftHandler) {
	r.Handle(devicesPath, allow(http.MethodGet, h.ListDevices))

	// devices/{id}/{action}
	actions := map[string]struct {
		method  string
		handler func(http.ResponseWriter, *http.Request, string)
	}{
		"state":    {http.MethodGet, h.GetState},
		"evaluate": {http.MethodPost, h.Evaluate},
		"alarms":   {http.MethodGet, h.ListAlarms},
		"windows":  {http.MethodGet, h.GetWindows},
	}
	r.Handle(devicesPath+"/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, devicesPath+"/")
		deviceID, action, ok := strings.Cut(rest, "/")
		route, known := actions[action]
		if !ok || deviceID == "" || !known {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != route.method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		route.handler(w, req, deviceID)
	})
}

func allow(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.wroteHeader {
		return
	}
	s.status = status
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	return s.ResponseWriter.Write(b)
}
