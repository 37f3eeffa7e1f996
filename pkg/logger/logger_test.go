package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFieldsRenderToEvent(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)

	event := zl.Info()
	for _, f := range []Field{
		String("job", "train"),
		Int("attempts", 3),
		Int64("elapsed_ms", 1500),
		Float64("psi", 0.12),
		Bool("promoted", true),
		Duration("took_ms", 2*time.Second),
	} {
		f.AddTo(event)
	}
	event.Msg("done")

	line := buf.String()
	assert.Contains(t, line, `"job":"train"`)
	assert.Contains(t, line, `"attempts":3`)
	assert.Contains(t, line, `"elapsed_ms":1500`)
	assert.Contains(t, line, `"psi":0.12`)
	assert.Contains(t, line, `"promoted":true`)
	assert.Contains(t, line, `"took_ms":2000`)
}

func TestFieldKeyValues(t *testing.T) {
	key, value := Int64("elapsed_ms", 42).GetKeyValue()
	assert.Equal(t, "elapsed_ms", key)
	assert.Equal(t, int64(42), value)

	key, value = Strings("features", []string{"base_score", "market_vol"}).GetKeyValue()
	assert.Equal(t, "features", key)
	assert.Equal(t, "base_score, market_vol", value)
}
