package api

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/caffeineduck/codeserver/coordinator"
	"github.com/caffeineduck/codeserver/httpd"
	"github.com/caffeineduck/codeserver/language"
)

const defaultLanguage = "python"

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Server    string `json:"server"`
	Port      int    `json:"port"`
	Timestamp int64  `json:"timestamp"`
}

type executeResponse struct {
	ProcessID string `json:"processId"`
	Language  string `json:"language"`
	Success   bool   `json:"success"`
	Output    string `json:"output"`
	Error     string `json:"error,omitempty"`
}

type processesResponse struct {
	Processes []string `json:"processes"`
	Count     int      `json:"count"`
}

type stopResponse struct {
	ProcessID string `json:"processId"`
	Stopped   bool   `json:"stopped"`
}

func (rt *Router) status(req *httpd.Request) *httpd.Response {
	return writeJSON(httpd.StatusOK, statusResponse{
		Server:    "running",
		Port:      portOf(req.LocalAddr),
		Timestamp: rt.now().UnixMilli(),
	})
}

// execute runs {code, language} and blocks until the coordinator answers.
// Non-string scalars are coerced to strings.
func (rt *Router) execute(ctx context.Context, req *httpd.Request) *httpd.Response {
	if !gjson.ValidBytes(req.Body) {
		rt.logger.Error("execute: invalid request body", zap.Int("bytes", len(req.Body)))
		return errorJSON(httpd.StatusInternalServerError, "Internal server error")
	}
	body := gjson.ParseBytes(req.Body)
	if !body.IsObject() {
		rt.logger.Error("execute: request body is not an object", zap.Stringer("type", body.Type))
		return errorJSON(httpd.StatusInternalServerError, "Internal server error")
	}

	code := body.Get("code").String()
	if strings.TrimSpace(code) == "" {
		return errorJSON(httpd.StatusBadRequest, coordinator.CodeRequired)
	}

	lang := defaultLanguage
	if v := body.Get("language"); v.Exists() && v.Type != gjson.Null {
		lang = v.String()
	}
	kind, err := language.Parse(lang)
	if err != nil {
		rt.logger.Debug("execute: unsupported language", zap.String("language", lang))
		return errorJSON(httpd.StatusBadRequest, "Unsupported language: "+lang)
	}

	id := rt.newID()
	result := rt.exec.Submit(ctx, code, kind, id)
	if !result.Succeeded {
		rt.logger.Debug("execution failed",
			zap.String("process_id", id),
			zap.String("error", result.Error),
		)
	}

	return writeJSON(httpd.StatusOK, executeResponse{
		ProcessID: id,
		Language:  lang,
		Success:   result.Succeeded,
		Output:    result.Output,
		Error:     result.Error,
	})
}

func (rt *Router) processes() *httpd.Response {
	ids := rt.exec.List()
	if ids == nil {
		ids = []string{}
	}
	return writeJSON(httpd.StatusOK, processesResponse{Processes: ids, Count: len(ids)})
}

// stop cancels the execution named by the last path segment.
func (rt *Router) stop(path string) *httpd.Response {
	id := path[strings.LastIndex(path, "/")+1:]
	stopped := rt.exec.Cancel(id)
	if stopped {
		rt.logger.Info("execution stopped by client", zap.String("process_id", id))
	}
	return writeJSON(httpd.StatusOK, stopResponse{ProcessID: id, Stopped: stopped})
}
