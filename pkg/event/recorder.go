package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// Recorder はイベントの記録先を抽象化する。
type Recorder interface {
	// Record はイベントを1件記録する。
	Record(ctx context.Context, e *Event) error
}

// LogRecorder はイベントを1行のJSONとしてログに出力するRecorder。
type LogRecorder struct {
	// logger は出力先のロガー。
	logger *log.Logger
}

// NewLogRecorder は新しいLogRecorderを生成する。loggerがnilの場合は標準ロガーを使う。
func NewLogRecorder(logger *log.Logger) *LogRecorder {
	if logger == nil {
		logger = log.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record はイベントをJSONにシリアライズしてログに出力する。
func (r *LogRecorder) Record(_ context.Context, e *Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}
	r.logger.Printf("[Audit] %s", b)
	return nil
}

// NopRecorder は何も記録しないRecorder。
type NopRecorder struct{}

// Record は何もしない。
func (NopRecorder) Record(context.Context, *Event) error { return nil }

// MultiRecorder は複数のRecorderに順にイベントを記録する。
type MultiRecorder []Recorder

// Record はすべてのRecorderに記録する。一部が失敗しても残りには記録し、
// 失敗をまとめて返す。
func (m MultiRecorder) Record(ctx context.Context, e *Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
