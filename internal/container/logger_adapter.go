package container

import "go.uber.org/zap"

// zapLoggerAdapter satisfies the key/value Logger interfaces of the service
// and http packages on top of zap.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, kv ...interface{}) {
	a.logger.Info(msg, zapFields(kv)...)
}

func (a *zapLoggerAdapter) Warn(msg string, kv ...interface{}) {
	a.logger.Warn(msg, zapFields(kv)...)
}

func (a *zapLoggerAdapter) Error(msg string, kv ...interface{}) {
	a.logger.Error(msg, zapFields(kv)...)
}

// zapFields pairs up kv. Pairs with a non-string key and a trailing odd
// value are dropped; error values keep their message under the key.
func zapFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 1; i < len(kv); i += 2 {
		key, ok := kv[i-1].(string)
		if !ok {
			continue
		}
		switch v := kv[i].(type) {
		case error:
			fields = append(fields, zap.NamedError(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}
	return fields
}
