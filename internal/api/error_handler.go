package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-simple-meetup/internal/application"
	"github.com/sanosuguru/go-simple-meetup/internal/domain/event"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusCode はエラーに対応するHTTPステータスを返す
func StatusCode(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, event.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, event.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, event.ErrDuplicateEvent),
		errors.Is(err, event.ErrInvalidState),
		errors.Is(err, event.ErrConcurrentModification),
		errors.Is(err, application.ErrEventBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
// ドメインエラーはステータスに変換し、重複イベントには既存イベントの Location を付ける
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := StatusCode(err)
	message := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	var dup *event.DuplicateEventError
	if errors.As(err, &dup) && dup.Existing != nil {
		c.Response().Header().Set(echo.HeaderLocation, EventPath(dup.Existing.Key()))
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
		// 内部エラーの詳細は返さない
		message = "内部サーバーエラー"
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{
			Error: message,
			Code:  code,
		})
	}
	if err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
