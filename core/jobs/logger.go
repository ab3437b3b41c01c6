package jobs

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/quizmaster/backend/core"
)

// cronLogger routes cron's internal logging through core.Logger.
type cronLogger struct {
	logger core.Logger
}

var _ cron.Logger = (*cronLogger)(nil)

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: " + msg + formatKV(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v%s", msg, err, formatKV(keysAndValues)), err)
}

func formatKV(kv []interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteString(" ")
		if i+1 < len(kv) {
			_, _ = fmt.Fprintf(&b, "%v=%v", kv[i], kv[i+1])
		} else {
			_, _ = fmt.Fprintf(&b, "%v", kv[i])
		}
	}
	return b.String()
}
