package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKVClientContract runs a suite of tests to verify that a KVClient implementation
// adheres to the defined interface contract.
func RunKVClientContract(t *testing.T, client KVClient) {
	ctx := context.Background()
	key := "contract-kv-" + time.Now().Format("20060102150405.000000000")

	t.Run("Set and Get", func(t *testing.T) {
		err := client.Set(ctx, key, []byte("value-1"), time.Minute)
		require.NoError(t, err, "Set should not return error")

		val, found, err := client.Get(ctx, key)
		require.NoError(t, err, "Get should not return error")
		assert.True(t, found)
		assert.Equal(t, []byte("value-1"), val)
	})

	t.Run("Set overwrites", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, key, []byte("value-2"), time.Minute))

		val, found, err := client.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("value-2"), val)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		val, found, err := client.Get(ctx, "missing-"+key)
		require.NoError(t, err, "absence is not an error")
		assert.False(t, found)
		assert.Nil(t, val)
	})

	t.Run("Touch", func(t *testing.T) {
		require.NoError(t, client.Touch(ctx, key, time.Minute))

		err := client.Touch(ctx, "missing-"+key, time.Minute)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, client.Delete(ctx, key))

		_, found, err := client.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found, "Get after Delete should report not found")

		assert.NoError(t, client.Delete(ctx, key), "Delete should be idempotent")
	})
}

// RunSessionDataStorageContract runs a suite of tests to verify that a SessionDataStorage
// implementation adheres to the defined interface contract.
func RunSessionDataStorageContract(t *testing.T, storage SessionDataStorage) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		a := storage.Create()
		b := storage.Create()
		require.NotNil(t, a)
		assert.NotEmpty(t, a.ID())
		assert.NotEqual(t, a.ID(), b.ID(), "Create should generate unique IDs")
		assert.Equal(t, 0, a.Len())
	})

	t.Run("Save and Get", func(t *testing.T) {
		data := storage.Create()
		data.Put("foo", "bar")

		require.NoError(t, storage.Save(ctx, data), "Save should not return error")

		loaded, found, err := storage.Get(ctx, data.ID())
		require.NoError(t, err, "Get should not return error")
		require.True(t, found)
		assert.Equal(t, data.ID(), loaded.ID())
		v, _ := loaded.Get("foo")
		assert.Equal(t, "bar", v)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		loaded, found, err := storage.Get(ctx, "non-existent-"+storage.Create().ID())
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, loaded)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		data := storage.Create()
		data.Put("v", "first")
		require.NoError(t, storage.Save(ctx, data))

		data.Put("v", "second")
		require.NoError(t, storage.Save(ctx, data))

		loaded, found, err := storage.Get(ctx, data.ID())
		require.NoError(t, err)
		require.True(t, found)
		v, _ := loaded.Get("v")
		assert.Equal(t, "second", v)
	})

	t.Run("Delete", func(t *testing.T) {
		data := storage.Create()
		require.NoError(t, storage.Save(ctx, data))

		require.NoError(t, storage.Delete(ctx, data.ID()), "Delete should not return error")

		_, found, err := storage.Get(ctx, data.ID())
		require.NoError(t, err)
		assert.False(t, found, "Get after Delete should report not found")

		assert.NoError(t, storage.Delete(ctx, data.ID()), "Delete should be idempotent")
		assert.NoError(t, storage.Delete(ctx, "never-saved"))
	})
}
