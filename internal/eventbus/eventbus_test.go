package eventbus

import (
	"context"
	"testing"

	"github.com/skillcore/skillcore/internal/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessBus_PublishAndConsume(t *testing.T) {
	bus := NewInProcessBus(4)
	rec := failure.Record{OperationName: "fetch"}

	require.NoError(t, bus.Publish(context.Background(), rec))

	select {
	case got := <-bus.Events():
		assert.Equal(t, "fetch", got.OperationName)
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestInProcessBus_DropsWhenFull(t *testing.T) {
	bus := NewInProcessBus(1)
	require.NoError(t, bus.Publish(context.Background(), failure.Record{OperationName: "a"}))
	err := bus.Publish(context.Background(), failure.Record{OperationName: "b"})
	assert.Error(t, err)
}
