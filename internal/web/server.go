// Package web — HTTP-поверхность Bot API: разбор /bot<token>/<method>,
// конверсия query/form/JSON/multipart-входа в botapi.Query, ожидание ответа
// актора и сериализация конверта. Здесь же отдача скачанных файлов по
// /file/bot<token>/... и эндпоинт статистики.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/app"
	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/infra/config"
)

const (
	// answerTimeout — потолок ожидания ответа актора; заведомо больше максимального
	// long-poll таймаута getUpdates.
	answerTimeout = 90 * time.Second

	// maxUploadSize — потолок тела запроса вне локального режима.
	maxUploadSize      = int64(50) << 20
	maxLocalUploadSize = int64(2) << 30

	// multipartMemory — сколько multipart держится в памяти до выгрузки на диск.
	multipartMemory = 32 << 20
)

// Server — HTTP-сервер шлюза.
type Server struct {
	env     config.EnvConfig
	manager *app.Manager
	log     *zap.Logger
	tmpDir  string

	httpServer *http.Server
}

// New создаёт сервер. tmpDir — каталог временных файлов multipart-загрузок.
func New(env config.EnvConfig, manager *app.Manager, log *zap.Logger) *Server {
	s := &Server{
		env:     env,
		manager: manager,
		log:     log,
		tmpDir:  filepath.Join(env.DataDir, "tmp"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/stats", s.handleStats)

	s.httpServer = &http.Server{
		Addr:              env.ListenAddress,
		Handler:           s.logging(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// WriteTimeout обязан переживать long-poll getUpdates (до 50 секунд).
		WriteTimeout: answerTimeout + 10*time.Second,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

// Run поднимает сервер и блокируется до отмены контекста.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.tmpDir, 0o750); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("address", s.env.ListenAddress))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// logging — access-лог на уровне debug.
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lw, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", redactToken(r.URL.Path)),
			zap.Int("status", lw.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type loggingWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// redactToken прячет секретную часть токена в пути для логов.
func redactToken(path string) string {
	const prefix = "/bot"
	for _, p := range []string{prefix, "/file" + prefix} {
		if strings.HasPrefix(path, p) {
			rest := path[len(p):]
			colon := strings.IndexByte(rest, ':')
			slash := strings.IndexByte(rest, '/')
			if colon >= 0 && (slash < 0 || colon < slash) {
				if slash < 0 {
					slash = len(rest)
				}
				return p + rest[:colon] + ":***" + rest[slash:]
			}
		}
	}
	return path
}

// handleRoot — вход /bot<token>/<method> и /file/bot<token>/<path>.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/file/bot"):
		s.handleFile(w, r)
	case strings.HasPrefix(r.URL.Path, "/bot"):
		s.handleMethod(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleMethod разбирает токен и имя метода, собирает Query и ждёт ответа.
func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request) {
	token, method, ok := splitBotPath(strings.TrimPrefix(r.URL.Path, "/bot"))
	if !ok {
		botapi.WriteAnswer(w, botapi.Answer{Err: botapi.NotFound("Not Found")})
		return
	}

	limit := maxUploadSize
	if s.env.LocalMode {
		limit = maxLocalUploadSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	args, files, err := s.parseArgs(r)
	if err != nil {
		botapi.WriteAnswer(w, botapi.Answer{Err: err})
		return
	}
	defer removeFiles(files)

	q := botapi.NewQuery(method, args, files)
	s.manager.Execute(token, q)

	ctx, cancel := context.WithTimeout(r.Context(), answerTimeout)
	defer cancel()
	botapi.WriteAnswer(w, q.Await(ctx))
}

// splitBotPath делит "<token>/<method>" на токен и метод.
func splitBotPath(rest string) (token, method string, ok bool) {
	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	token, method = rest[:i], rest[i+1:]
	if strings.ContainsRune(method, '/') || method == "" {
		return "", "", false
	}
	return token, method, true
}

// parseArgs собирает аргументы из query, формы, JSON-тела и multipart.
func (s *Server) parseArgs(r *http.Request) (map[string]string, map[string]botapi.UploadedFile, *botapi.Error) {
	args := map[string]string{}
	files := map[string]botapi.UploadedFile{}

	for name, vals := range r.URL.Query() {
		if len(vals) > 0 {
			args[name] = vals[0]
		}
	}

	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "application/json"):
		if err := parseJSONBody(r.Body, args); err != nil {
			return nil, nil, err
		}
	case strings.HasPrefix(ct, "multipart/form-data"):
		if err := s.parseMultipart(r, args, files); err != nil {
			removeFiles(files)
			return nil, nil, err
		}
	case strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return nil, nil, botapi.BadRequest("failed to parse request body")
		}
		for name, vals := range r.PostForm {
			if len(vals) > 0 {
				args[name] = vals[0]
			}
		}
	}
	return args, files, nil
}

// parseJSONBody разворачивает JSON-объект верхнего уровня в строковые аргументы:
// строки — как есть, остальное — сырым JSON.
func parseJSONBody(body io.Reader, args map[string]string) *botapi.Error {
	var m map[string]json.RawMessage
	dec := json.NewDecoder(body)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return botapi.BadRequest("failed to parse JSON request body")
	}
	for name, raw := range m {
		var str string
		if json.Unmarshal(raw, &str) == nil {
			args[name] = str
			continue
		}
		args[name] = string(raw)
	}
	return nil
}

// parseMultipart разбирает multipart-форму, выгружая файлы во временный каталог.
func (s *Server) parseMultipart(r *http.Request, args map[string]string, files map[string]botapi.UploadedFile) *botapi.Error {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return botapi.BadRequest("failed to parse multipart form")
	}
	for name, vals := range r.MultipartForm.Value {
		if len(vals) > 0 {
			args[name] = vals[0]
		}
	}
	for field, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		src, err := fh.Open()
		if err != nil {
			return botapi.BadRequest("failed to read uploaded file")
		}
		tmp, err := os.CreateTemp(s.tmpDir, "upload-*")
		if err != nil {
			src.Close()
			s.log.Error("create upload temp file", zap.Error(err))
			return botapi.Internal("failed to store uploaded file")
		}
		size, err := io.Copy(tmp, src)
		src.Close()
		tmp.Close()
		if err != nil {
			os.Remove(tmp.Name())
			return botapi.BadRequest("failed to read uploaded file")
		}
		files[field] = botapi.UploadedFile{
			FieldName: field,
			FileName:  fh.Filename,
			Path:      tmp.Name(),
			Size:      size,
		}
	}
	return nil
}

// removeFiles удаляет временные файлы запроса после ответа.
func removeFiles(files map[string]botapi.UploadedFile) {
	for _, f := range files {
		_ = os.Remove(f.Path)
	}
}

// handleFile отдаёт скачанный файл по пути из getFile. Путь обязан лежать в
// каталоге данных шлюза; в локальном режиме эндпоинт не нужен (getFile отдаёт
// абсолютные пути), но продолжает работать.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/file/bot")
	i := strings.IndexByte(rest, '/')
	if i <= 0 {
		http.NotFound(w, r)
		return
	}
	token, filePath := rest[:i], rest[i+1:]
	if _, ok := splitToken(token); !ok {
		botapi.WriteAnswer(w, botapi.Answer{Err: botapi.Unauthorized("Unauthorized")})
		return
	}

	dataDir, err := filepath.Abs(s.env.DataDir)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	full := filePath
	if !filepath.IsAbs(full) {
		full = filepath.Join(dataDir, filePath)
	}
	full = filepath.Clean(full)
	if !strings.HasPrefix(full, dataDir+string(os.PathSeparator)) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, full)
}

// splitToken — минимальная проверка формы токена для /file.
func splitToken(token string) (string, bool) {
	i := strings.IndexByte(token, ':')
	if i <= 0 || i == len(token)-1 {
		return "", false
	}
	return token[:i], true
}

// handleStats отдаёт статистику живых ботов. Доступ только с loopback.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || !net.ParseIP(host).IsLoopback() {
		http.NotFound(w, r)
		return
	}
	raw, err := json.Marshal(s.manager.Snapshot())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}
