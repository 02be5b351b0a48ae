package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shouni/go-web-bundle/internal/pipeline"
	"github.com/shouni/go-web-bundle/pkg/archive"
	"github.com/shouni/go-web-bundle/pkg/report"
	"github.com/shouni/go-web-bundle/pkg/types"
	"github.com/shouni/go-web-bundle/pkg/urlnorm"
)

const (
	// MaxRequestBody は、POST /bundle で受け付けるリクエストボディの最大サイズです。
	MaxRequestBody = 1 << 20
	// RequestTimeout は、1リクエストあたりの処理時間の上限です。
	RequestTimeout = 5 * time.Minute

	headerPagesRetrieved = "X-Pages-Retrieved"
	headerRunID          = "X-Run-ID"
)

// PipelineFactory は、リクエストごとの通知先を受け取って Pipeline を生成します。
type PipelineFactory func(notifier report.Notifier) *pipeline.Pipeline

// BundleRequest は、JSON形式のリクエストボディです。
type BundleRequest struct {
	URLs []string `json:"urls"`
}

// ErrorResponse は、エラー時のレスポンスボディです。
type ErrorResponse struct {
	Error  string        `json:"error"`
	RunID  string        `json:"run_id,omitempty"`
	Events []types.Event `json:"events,omitempty"`
}

// Server は、ブラウザやHTTPクライアントからアーカイブ生成を受け付けるフロントエンドです。
type Server struct {
	newPipeline PipelineFactory
	logger      *zap.Logger
}

// New は Server を生成します。
func New(factory PipelineFactory, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{newPipeline: factory, logger: logger}
}

// Routes は、HTTPハンドラーを返します。
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Post("/bundle", s.handleBundle)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	lines, err := readLines(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	rec := &report.Recorder{}
	log := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
	p := s.newPipeline(report.Multi(rec, report.NewLogNotifier(log)))

	res, err := p.Run(r.Context(), lines)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrNoPagesRetrieved) {
			status = http.StatusUnprocessableEntity
		} else {
			log.Error("アーカイブの生成に失敗しました", zap.Error(err))
		}
		writeJSON(w, status, ErrorResponse{Error: err.Error(), RunID: res.RunID, Events: rec.Events()})
		return
	}

	w.Header().Set("Content-Type", archive.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, archive.DefaultFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Archive)))
	w.Header().Set(headerPagesRetrieved, strconv.Itoa(len(res.Entries)))
	w.Header().Set(headerRunID, res.RunID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Archive); err != nil {
		log.Warn("レスポンスの書き込みに失敗しました", zap.Error(err))
	}
}

// readLines は、リクエストボディから入力行を読み取ります。
// application/json の場合は {"urls": [...]}、それ以外は1行1URLのテキストとして扱います。
func readLines(w http.ResponseWriter, r *http.Request) ([]string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBody))
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの読み込みに失敗しました: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return urlnorm.SplitLines(string(body)), nil
	}

	var req BundleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("JSONのパースに失敗しました: %w", err)
	}
	return req.URLs, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
