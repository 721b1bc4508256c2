package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMultiFansOut(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rec := &Recorder{}
	r := Multi(NewLogReporter(zap.New(core)), rec)

	r.NotifySuccess("Application created successfully!")
	r.NotifyError("Failed to load applications")
	r.Alert("You do not have permission to perform this action.")

	assert.Equal(t, []string{"Application created successfully!"}, rec.Messages(LevelSuccess))
	assert.Equal(t, []string{"Failed to load applications"}, rec.Messages(LevelError))
	assert.Equal(t, []string{"You do not have permission to perform this action."}, rec.Messages(LevelAlert))

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zap.InfoLevel, entries[0].Level)
		assert.Equal(t, zap.WarnLevel, entries[1].Level)
		assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	}
}

func TestRecorderNoticesIsACopy(t *testing.T) {
	rec := &Recorder{}
	rec.NotifyError("first")

	notices := rec.Notices()
	notices[0].Message = "changed"

	assert.Equal(t, []string{"first"}, rec.Messages(LevelError))
}

func TestWriterReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewWriterReporter(&buf)

	r.NotifySuccess("Application deleted successfully!")
	r.NotifyError("Failed to delete application")
	r.Alert("You do not have permission to perform this action.")

	assert.Equal(t, "Application deleted successfully!\n"+
		"error: Failed to delete application\n"+
		"!! You do not have permission to perform this action.\n", buf.String())
}
