package logger

import "go.uber.org/zap"

// Log defaults to a no-op logger so library packages and tests can log
// without calling Init.
var Log = zap.NewNop()

func Init() {
	Log = zap.Must(zap.NewProduction())
}

func Sugar() *zap.SugaredLogger {
	return Log.Sugar()
}
