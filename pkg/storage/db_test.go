package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getDBImplementations(t *testing.T) []ServiceStorage {
	var dbImpls []ServiceStorage

	bolt, err := NewStorage(Bolt, Option{ID: BoltDBFilePathOption, Option: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	dbImpls = append(dbImpls, bolt)

	mem, err := NewStorage(Memory)
	require.NoError(t, err)
	dbImpls = append(dbImpls, mem)

	server := miniredis.RunT(t)
	redisDB, err := NewStorage(Redis,
		Option{ID: RedisAddressOption, Option: server.Addr()},
		Option{ID: RedisFlushOption, Option: true},
	)
	require.NoError(t, err)
	dbImpls = append(dbImpls, redisDB)

	t.Cleanup(func() {
		for _, db := range dbImpls {
			_ = db.Close()
		}
	})
	return dbImpls
}

func TestNewStorage(t *testing.T) {
	t.Run("unsupported type", func(t *testing.T) {
		_, err := NewStorage("bad")
		assert.ErrorContains(t, err, "unsupported storage type")
	})

	t.Run("redis without address", func(t *testing.T) {
		_, err := NewStorage(Redis)
		assert.ErrorContains(t, err, "redis address option is required")
	})

	t.Run("available", func(t *testing.T) {
		assert.ElementsMatch(t, []Type{Bolt, Redis, Memory}, AvailableStorage())
	})
}

func TestDB(t *testing.T) {
	for _, db := range getDBImplementations(t) {
		db := db
		t.Run(string(db.Type()), func(t *testing.T) {
			ctx := context.Background()
			assert.True(t, db.IsOpen())
			assert.NotEmpty(t, db.URI())

			namespace := "credentials"
			team1 := "red-sox"
			players1 := []string{"John Henry", "Jason Varitek"}
			team2 := "yankees"
			players2 := []string{"Derek Jeter"}

			require.NoError(t, db.Write(ctx, namespace, team1, []byte(players1[0])))
			require.NoError(t, db.Write(ctx, namespace, team2, []byte(players2[0])))

			got, err := db.Read(ctx, namespace, team1)
			require.NoError(t, err)
			assert.Equal(t, players1[0], string(got))

			exists, err := db.Exists(ctx, namespace, team2)
			require.NoError(t, err)
			assert.True(t, exists)

			// overwrite
			require.NoError(t, db.Write(ctx, namespace, team1, []byte(players1[1])))
			got, err = db.Read(ctx, namespace, team1)
			require.NoError(t, err)
			assert.Equal(t, players1[1], string(got))

			// missing keys and namespaces read as nil
			missing, err := db.Read(ctx, namespace, "mets")
			require.NoError(t, err)
			assert.Nil(t, missing)
			missing, err = db.Read(ctx, "bad-namespace", team1)
			require.NoError(t, err)
			assert.Nil(t, missing)

			all, err := db.ReadAll(ctx, namespace)
			require.NoError(t, err)
			assert.Len(t, all, 2)
			assert.Equal(t, players2[0], string(all[team2]))

			keys, err := db.ReadAllKeys(ctx, namespace)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{team1, team2}, keys)

			require.NoError(t, db.Delete(ctx, namespace, team1))
			exists, err = db.Exists(ctx, namespace, team1)
			require.NoError(t, err)
			assert.False(t, exists)

			require.NoError(t, db.DeleteNamespace(ctx, namespace))
			all, err = db.ReadAll(ctx, namespace)
			require.NoError(t, err)
			assert.Empty(t, all)

			assert.Error(t, db.DeleteNamespace(ctx, namespace))
		})
	}
}

func TestEncryptedWrapper(t *testing.T) {
	ctx := context.Background()
	mem, err := NewStorage(Memory)
	require.NoError(t, err)

	t.Run("bad key", func(t *testing.T) {
		_, err := NewEncryptedWrapper(mem, []byte("short"))
		assert.ErrorContains(t, err, "encryption key must be 32 bytes")
	})

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	wrapper, err := NewEncryptedWrapper(mem, key)
	require.NoError(t, err)

	require.NoError(t, wrapper.Write(ctx, "ns", "k", []byte("secret")))

	raw, err := mem.Read(ctx, "ns", "k")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	got, err := wrapper.Read(ctx, "ns", "k")
	require.NoError(t, err)
	assert.Equal(t, "secret", string(got))

	all, err := wrapper.ReadAll(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, "secret", string(all["k"]))

	missing, err := wrapper.Read(ctx, "ns", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	other, err := NewEncryptedWrapper(mem, make([]byte, 32))
	require.NoError(t, err)
	_, err = other.Read(ctx, "ns", "k")
	assert.ErrorContains(t, err, "decrypting data")
}

func TestMakeNamespace(t *testing.T) {
	assert.Equal(t, "wallet-credentials", MakeNamespace("wallet", "credentials"))
}
