package logger

import (
	"log/slog"
	"os"
)

var base *slog.Logger

// Init は環境に応じてグローバルロガーを用意する。
// prod はJSON、それ以外はテキスト。
func Init(env string) {
	var handler slog.Handler
	if env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	base = slog.New(handler)
	slog.SetDefault(base)
}

func get() *slog.Logger {
	if base == nil {
		Init("dev")
	}
	return base
}

func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// Fatal はログを出してプロセスを終了する。
func Fatal(msg string, args ...any) {
	get().Error(msg, args...)
	os.Exit(1)
}
