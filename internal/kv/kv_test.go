package kv

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) Store { return NewMemory() }},
		{"bolt", func(t *testing.T) Store {
			b, err := OpenBolt(filepath.Join(t.TempDir(), "checkout.db"))
			require.NoError(t, err)
			t.Cleanup(func() { b.Close() })
			return b
		}},
		{"redis", func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return NewRedis(client, 0)
		}},
		{"dynamo", func(t *testing.T) Store {
			return NewDynamo(newSimpleMock(), "checkout-state", 0)
		}},
	}
}

func TestStore_Contract(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "k", []byte("v1")))
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			require.NoError(t, s.Set(ctx, "k", []byte("v2")))
			got, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			created, err := s.SetIfAbsent(ctx, "k", []byte("v3"))
			require.NoError(t, err)
			assert.False(t, created)
			got, _ = s.Get(ctx, "k")
			assert.Equal(t, []byte("v2"), got)

			created, err = s.SetIfAbsent(ctx, "fresh", []byte("f"))
			require.NoError(t, err)
			assert.True(t, created)

			swapped, err := s.CompareAndSwap(ctx, "k", []byte("stale"), []byte("v4"))
			require.NoError(t, err)
			assert.False(t, swapped)
			swapped, err = s.CompareAndSwap(ctx, "k", []byte("v2"), []byte("v4"))
			require.NoError(t, err)
			assert.True(t, swapped)
			got, _ = s.Get(ctx, "k")
			assert.Equal(t, []byte("v4"), got)
			swapped, err = s.CompareAndSwap(ctx, "k", []byte("v2"), []byte("v5"))
			require.NoError(t, err)
			assert.False(t, swapped, "old value no longer matches")
			swapped, err = s.CompareAndSwap(ctx, "missing", []byte("v2"), []byte("v5"))
			require.NoError(t, err)
			assert.False(t, swapped)

			require.NoError(t, s.Delete(ctx, "k"))
			_, err = s.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, s.Delete(ctx, "k"), "deleting a missing key is not an error")
		})
	}
}

func TestNamespace_IsolatesClients(t *testing.T) {
	ctx := context.Background()
	shared := NewMemory()
	a := Namespace(shared, ClientPrefix("a"))
	b := Namespace(shared, ClientPrefix("b"))

	require.NoError(t, a.Set(ctx, "cart", []byte("apples")))
	_, err := b.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)

	raw, err := shared.Get(ctx, "client:a:cart")
	require.NoError(t, err)
	assert.Equal(t, []byte("apples"), raw)

	created, err := b.SetIfAbsent(ctx, "cart", []byte("pears"))
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, a.Delete(ctx, "cart"))
	assert.Equal(t, 1, shared.Len())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	type rec struct {
		Name string `json:"name"`
	}
	var out rec
	found, err := GetJSON(ctx, s, "r", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, PutJSON(ctx, s, "r", rec{Name: "basket"}))
	found, err = GetJSON(ctx, s, "r", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "basket", out.Name)

	require.NoError(t, s.Set(ctx, "bad", []byte("{")))
	_, err = GetJSON(ctx, s, "bad", &out)
	assert.Error(t, err)
}

func TestRedis_TTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedis(client, time.Hour)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	assert.Equal(t, time.Hour, mr.TTL("k"))

	mr.FastForward(2 * time.Hour)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedis(client, 0)
	mr.Close()

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestDynamo_ExpiredItems(t *testing.T) {
	ctx := context.Background()
	mock := newSimpleMock()
	d := NewDynamo(mock, "checkout-state", time.Minute)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	d.nowFunc = func() time.Time { return now }

	require.NoError(t, d.Set(ctx, "k", []byte("v")))
	item := mock.table["k"]
	require.NotNil(t, item)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1740823260"}, item["expires_at"])

	created, err := d.SetIfAbsent(ctx, "k", []byte("other"))
	require.NoError(t, err)
	assert.False(t, created)

	now = now.Add(2 * time.Minute)
	_, err = d.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound, "expired items read as missing")

	created, err = d.SetIfAbsent(ctx, "k", []byte("other"))
	require.NoError(t, err)
	assert.True(t, created, "expired items can be claimed again")
}

func TestDynamo_Errors(t *testing.T) {
	ctx := context.Background()
	mock := newSimpleMock()
	mock.failWith = errors.New("throttled")
	d := NewDynamo(mock, "checkout-state", 0)

	_, err := d.Get(ctx, "k")
	assert.ErrorContains(t, err, "throttled")
	_, err = d.SetIfAbsent(ctx, "k", []byte("v"))
	assert.ErrorContains(t, err, "throttled")
	assert.ErrorContains(t, d.Delete(ctx, "k"), "throttled")
	assert.Equal(t, 1, mock.deleteCalls)
}
