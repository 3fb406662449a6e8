package keylock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/wms-platform/fulfillment/shared/pkg/testing"
)

func TestRedisLocker_Integration(t *testing.T) {
	testhelpers.SkipIfShort(t)

	ctx := context.Background()
	container, err := testhelpers.NewRedisContainer(ctx)
	require.NoError(t, err)
	defer func() { _ = container.Close(ctx) }()

	config := DefaultRedisConfig(container.Endpoint)
	config.AcquireTimeout = 50 * time.Millisecond
	locker := NewRedisLocker(config, nil)
	defer locker.Close()
	require.NoError(t, locker.Ping(ctx))

	unlock, err := locker.Lock(ctx, "PROD-1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "PROD-1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	other, err := locker.Lock(ctx, "PROD-2")
	require.NoError(t, err)
	other()

	unlock()
	unlock, err = locker.Lock(ctx, "PROD-1")
	require.NoError(t, err)
	unlock()
}
