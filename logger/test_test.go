package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger()

	assert.NotNil(t, logger)
	assert.Len(t, logger.Logs(), 0)
	assert.Nil(t, logger.metadata)
	assert.Nil(t, logger.child)
}

func TestTestLoggerMethods(t *testing.T) {
	logger := NewTestLogger()

	logger.Trace("Trace message %d", 1)
	logger.Debug("Debug message %d", 2)
	logger.Info("Info message %d", 3)
	logger.Warn("Warn message %d", 4)
	logger.Error("Error message %d", 5)

	logs := logger.Logs()
	assert.Len(t, logs, 5)
	assert.Equal(t, "TRACE", logs[0].Severity)
	assert.Equal(t, "Trace message 1", logs[0].Text())
	assert.Equal(t, "DEBUG", logs[1].Severity)
	assert.Equal(t, "INFO", logs[2].Severity)
	assert.Equal(t, "WARNING", logs[3].Severity)
	assert.Equal(t, []interface{}{4}, logs[3].Arguments)
	assert.Equal(t, "ERROR", logs[4].Severity)
}

func TestTestLoggerWithSharesRecord(t *testing.T) {
	logger := NewTestLogger()
	child := WithKV(logger, "key", "value")
	child.Warn("from child")
	logger.Info("from parent")

	logs := logger.Logs()
	assert.Len(t, logs, 2)
	assert.Equal(t, "value", logs[0].Metadata["key"])
	assert.Nil(t, logs[1].Metadata)
	assert.Len(t, logger.Find("WARNING", "child"), 1)
	assert.Empty(t, logger.Find("ERROR", "child"))
}

func TestTestLoggerConcurrent(t *testing.T) {
	logger := NewTestLogger()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.With(map[string]interface{}{"i": i}).Info("entry %d", i)
		}(i)
	}
	wg.Wait()
	assert.Len(t, logger.Logs(), 50)
}

func TestTestLoggerStack(t *testing.T) {
	first := NewTestLogger()
	second := NewTestLogger()
	stacked := first.Stack(second)
	stacked.Error("boom")
	assert.Len(t, first.Logs(), 1)
	assert.Len(t, second.Logs(), 1)
}
