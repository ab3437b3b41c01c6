package logsvc_test

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quizmaster/backend/core/quiz"
	logsvc "github.com/quizmaster/backend/services/logger"
	"github.com/quizmaster/backend/tests"
)

func TestRollbarLogger(t *testing.T) {
	out := new(bytes.Buffer)
	logger := logsvc.NewRollbarLogger(log.New(out, "", 0), testutil.Config(t))
	logger.Enable(false)

	usr := quiz.User{ID: 3, FullName: "Ann", Username: "ann@quizmaster.test"}
	logger.Info("reminder sent", usr)
	logger.Error("sms channel: invalid number", errors.New("invalid number"), map[string]interface{}{"phone": "+1555"})

	assert.Equal(t,
		"[INFO] reminder sent\n"+
			"[ERROR] sms channel: invalid number\n"+
			"map[phone:+1555]\n",
		out.String(),
	)
}
