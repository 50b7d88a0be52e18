package redis_limiter

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestAcquireWithinLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRedisLimiter(db, 2, "model_concurrent:", 300*time.Second, quietLogger())

	mock.ExpectEvalSha(acquireScript.Hash(), []string{"model_concurrent:gpt"}, 2, 300).SetVal(int64(1))

	require.NoError(t, limiter.Acquire(context.Background(), "gpt"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireRejectsWhenFull(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRedisLimiter(db, 2, "model_concurrent:", 300*time.Second, quietLogger())

	mock.ExpectEvalSha(acquireScript.Hash(), []string{"model_concurrent:gpt"}, 2, 300).SetVal(int64(3))

	err := limiter.Acquire(context.Background(), "gpt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "并发限制已达到上限")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseAndCurrent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRedisLimiter(db, 2, "model_concurrent:", 60*time.Second, quietLogger())

	mock.ExpectEvalSha(releaseScript.Hash(), []string{"model_concurrent:gpt"}, 60).SetVal(int64(0))
	mock.ExpectGet("model_concurrent:gpt").RedisNil()

	limiter.Release(context.Background(), "gpt")
	current, err := limiter.GetCurrent(context.Background(), "gpt")
	require.NoError(t, err)
	assert.Equal(t, 0, current)
	assert.NoError(t, mock.ExpectationsWereMet())
}
