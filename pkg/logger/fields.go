package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// Field is a typed key/value pair attached to a log event. Value keeps
// the plain representation for the collector; add writes the zerolog
// typed form.
type Field struct {
	Key   string
	Value interface{}

	add func(*zerolog.Event)
}

// AddTo writes the field onto a zerolog event.
func (f Field) AddTo(event *zerolog.Event) {
	if f.add != nil {
		f.add(event)
	}
}

func String(key, value string) Field {
	return Field{Key: key, Value: value, add: func(e *zerolog.Event) { e.Str(key, value) }}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value, add: func(e *zerolog.Event) { e.Int(key, value) }}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value, add: func(e *zerolog.Event) { e.Int64(key, value) }}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value, add: func(e *zerolog.Event) { e.Float64(key, value) }}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value, add: func(e *zerolog.Event) { e.Bool(key, value) }}
}

// Duration logs a duration as integer milliseconds.
func Duration(key string, value time.Duration) Field {
	ms := value.Milliseconds()
	return Field{Key: key, Value: ms, add: func(e *zerolog.Event) { e.Int64(key, ms) }}
}

func Error(err error) Field {
	val := ""
	if err != nil {
		val = err.Error()
	}
	return Field{Key: "error", Value: val, add: func(e *zerolog.Event) { e.Err(err) }}
}

// Any logs an arbitrary value through reflection. Prefer the typed
// constructors on hot paths.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value, add: func(e *zerolog.Event) { e.Interface(key, value) }}
}
