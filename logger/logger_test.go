package logger_test

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/evdnx/govb/logger"
	"github.com/evdnx/govb/testutils"
)

func TestNewZapLogger(t *testing.T) {
	log, err := logger.NewZapLogger()
	if err != nil {
		t.Fatalf("logger construction failed: %v", err)
	}
	if log == nil {
		t.Fatal("got nil logger")
	}
	// Must not panic on any level.
	log.Info("info_probe", logger.String("k", "v"))
	log.Warn("warn_probe", logger.Int("n", 1))
	log.Error("error_probe", logger.Err(errors.New("probe")))
}

func TestFieldConstructors(t *testing.T) {
	cases := []struct {
		field logger.Field
		key   string
		typ   zapcore.FieldType
	}{
		{logger.String("s", "v"), "s", zapcore.StringType},
		{logger.Float64("f", 1.5), "f", zapcore.Float64Type},
		{logger.Int("i", 7), "i", zapcore.Int64Type},
		{logger.Bool("b", true), "b", zapcore.BoolType},
		{logger.Err(errors.New("x")), "error", zapcore.ErrorType},
	}
	for _, c := range cases {
		if c.field.Key != c.key || c.field.Type != c.typ {
			t.Fatalf("field %q: got key=%q type=%v", c.key, c.field.Key, c.field.Type)
		}
	}
}

func TestMockLoggerRecords(t *testing.T) {
	log := testutils.NewMockLogger()
	log.Info("first")
	log.Warn("second", logger.String("k", "v"))

	if got := log.LastMessage(); got != "second" {
		t.Fatalf("last message: want %q, got %q", "second", got)
	}
	msgs := log.Messages()
	if len(msgs) != 2 || msgs[0] != "first" {
		t.Fatalf("unexpected messages: %v", msgs)
	}
}
