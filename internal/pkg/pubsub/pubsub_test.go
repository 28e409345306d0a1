package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestStepProgress(t *testing.T) {
	// Verify all steps have progress values
	steps := []string{StepResolving, StepAnalyzing, StepNutrients, StepArchiving, StepDone}

	for _, step := range steps {
		progress, ok := StepProgress[step]
		assert.True(t, ok, "Step %s should have progress value", step)
		assert.Greater(t, progress, 0, "Progress for %s should be > 0", step)
		assert.LessOrEqual(t, progress, 100, "Progress for %s should be <= 100", step)
	}

	// Verify progress is monotonically increasing
	assert.Less(t, StepProgress[StepResolving], StepProgress[StepAnalyzing])
	assert.Less(t, StepProgress[StepAnalyzing], StepProgress[StepNutrients])
	assert.Less(t, StepProgress[StepNutrients], StepProgress[StepArchiving])
	assert.Less(t, StepProgress[StepArchiving], StepProgress[StepDone])
	assert.Equal(t, 100, StepProgress[StepDone])
}

func TestStepMessages(t *testing.T) {
	steps := []string{StepResolving, StepAnalyzing, StepNutrients, StepArchiving, StepDone}

	for _, step := range steps {
		msg, ok := StepMessages[step]
		assert.True(t, ok, "Step %s should have message", step)
		assert.NotEmpty(t, msg, "Message for %s should not be empty", step)
	}
}

func TestProgressMessage_JSON(t *testing.T) {
	msg := &ProgressMessage{
		Type:     "job_progress",
		JobID:    3,
		Status:   "processing",
		Step:     StepAnalyzing,
		Progress: 40,
		Message:  "正在识别图片",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	// Verify snake_case keys
	var raw map[string]interface{}
	err = json.Unmarshal(data, &raw)
	require.NoError(t, err)

	assert.Contains(t, raw, "job_id")
	assert.Contains(t, raw, "status")

	var decoded ProgressMessage
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, msg.JobID, decoded.JobID)
	assert.Equal(t, msg.Step, decoded.Step)
}

func TestProgressMessage_OmitEmpty(t *testing.T) {
	msg := &ProgressMessage{
		JobID:  1,
		Status: "processing",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	// Message and Error should be omitted when empty
	var raw map[string]interface{}
	err = json.Unmarshal(data, &raw)
	require.NoError(t, err)

	_, hasMessage := raw["message"]
	_, hasError := raw["error"]
	assert.False(t, hasMessage, "empty message should be omitted")
	assert.False(t, hasError, "empty error should be omitted")
}

func TestPublisherSubscriber(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	publisher := NewPublisher(client)
	subscriber := NewSubscriber(client)

	testCtx, testCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer testCancel()

	received := make(chan *ProgressMessage, 1)

	go func() {
		subscriber.SubscribeProgress(testCtx, func(msg *ProgressMessage) {
			received <- msg
		})
	}()

	// Give subscriber time to connect
	time.Sleep(100 * time.Millisecond)

	msg := &ProgressMessage{
		JobID:  789,
		Status: "processing",
		Step:   StepAnalyzing,
	}

	err := publisher.PublishProgress(testCtx, msg)
	require.NoError(t, err)

	select {
	case receivedMsg := <-received:
		assert.Equal(t, int64(789), receivedMsg.JobID)
		assert.Equal(t, "job_progress", receivedMsg.Type)
		assert.Equal(t, 40, receivedMsg.Progress) // Auto-filled from step
		assert.NotEmpty(t, receivedMsg.Message)   // Auto-filled from step
	case <-testCtx.Done():
		t.Fatal("Timeout waiting for message")
	}
}

func TestPublisher_AutoFill(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	publisher := NewPublisher(client)

	msg := &ProgressMessage{
		JobID: 1,
		Step:  StepNutrients,
	}

	err := publisher.PublishProgress(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, "job_progress", msg.Type)
	assert.Equal(t, 70, msg.Progress)
	assert.Equal(t, StepMessages[StepNutrients], msg.Message)
}

func TestPublisher_ExplicitValuesKept(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	publisher := NewPublisher(client)

	msg := &ProgressMessage{
		JobID:    1,
		Step:     StepDone,
		Progress: 95,
		Message:  "自定义消息",
	}

	err := publisher.PublishProgress(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, 95, msg.Progress)
	assert.Equal(t, "自定义消息", msg.Message)
}
