package log

type Level int

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

// Fields are attached to every entry produced by a logger returned from WithFields
type Fields map[string]interface{}

type Logger interface {
	Log(level Level, v ...interface{})
	Logf(level Level, template string, args ...interface{})
	SetLevel(level Level)
	WithFields(fields Fields) Logger
}
