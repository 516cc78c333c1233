package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// mapEncoder adapts a MapObjectEncoder to the zapcore.Encoder interface so
// field-level redaction can be asserted against captured values.
type mapEncoder struct {
	*zapcore.MapObjectEncoder
}

func (m mapEncoder) Clone() zapcore.Encoder { return m }
func (m mapEncoder) EncodeEntry(zapcore.Entry, []zapcore.Field) (*buffer.Buffer, error) {
	return nil, nil
}

func newMapRedactor(t *testing.T, cfg RedactionConfig) (*RedactingEncoder, *zapcore.MapObjectEncoder) {
	t.Helper()
	captured := zapcore.NewMapObjectEncoder()
	enc, err := NewRedactingEncoder(mapEncoder{captured}, cfg)
	require.NoError(t, err)
	return enc, captured
}

func TestRedactingEncoderAddString(t *testing.T) {
	cfg := RedactionConfig{
		Enabled: true,
		Fields:  []string{"api_key"},
		Patterns: []string{
			`(?i)bearer\s+\S+`,
		},
	}

	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"sensitive key", "api_key", "sk-12345678901234567890", "[REDACTED]"},
		{"sensitive key mixed case", "Api_Key", "whatever", "[REDACTED]"},
		{"bearer pattern in value", "note", "Bearer abc123token", "[REDACTED:pattern]"},
		{"plain value", "task", "summarize the report", "summarize the report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, captured := newMapRedactor(t, cfg)
			enc.AddString(tt.key, tt.val)
			assert.Equal(t, tt.want, captured.Fields[tt.key])
		})
	}
}

func TestRedactingEncoderByteString(t *testing.T) {
	enc, captured := newMapRedactor(t, RedactionConfig{
		Enabled: true,
		Fields:  []string{"token"},
	})

	enc.AddByteString("token", []byte("abc"))
	assert.Equal(t, "[REDACTED]", captured.Fields["token"])

	enc.AddByteString("body", []byte("hello"))
	assert.Equal(t, "hello", captured.Fields["body"])
}

func TestRedactingEncoderReflected(t *testing.T) {
	enc, captured := newMapRedactor(t, RedactionConfig{
		Enabled: true,
		Fields:  []string{"credential"},
	})

	require.NoError(t, enc.AddReflected("credential", map[string]string{"k": "v"}))
	assert.Equal(t, "[REDACTED]", captured.Fields["credential"])
}

func TestRedactingEncoderDisabled(t *testing.T) {
	enc, captured := newMapRedactor(t, RedactionConfig{Enabled: false})

	enc.AddString("api_key", "sk-visible-when-disabled")
	assert.Equal(t, "sk-visible-when-disabled", captured.Fields["api_key"])
}

func TestRedactingEncoderInvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{
		Enabled:  true,
		Patterns: []string{"(unclosed"},
	})
	assert.Error(t, err)
}

func TestRedactingEncoderClone(t *testing.T) {
	enc, _ := newMapRedactor(t, RedactionConfig{
		Enabled: true,
		Fields:  []string{"secret"},
	})

	clone, ok := enc.Clone().(*RedactingEncoder)
	require.True(t, ok)
	assert.True(t, clone.shouldRedactKey("secret"))
}
