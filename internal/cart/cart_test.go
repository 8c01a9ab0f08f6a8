package cart

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-grocery-checkout/internal/apperr"
	"github.com/imrishuroy/go-grocery-checkout/internal/kv"
)

var (
	apples = Product{ProductID: 1, ProductName: "Apples", UnitType: Discrete, UnitPrice: d("100"), UnitsAvailable: d("5")}
	rice   = Product{ProductID: 2, ProductName: "Rice", UnitType: Weight, UnitPrice: d("4.20"), UnitsAvailable: d("10")}
)

func TestCart_Add(t *testing.T) {
	c := &Cart{}
	require.NoError(t, c.Add(apples, d("2")))
	require.NoError(t, c.Add(rice, d("1.257")))
	require.Len(t, c.Lines, 2)
	assert.Equal(t, "1.26", c.Lines[1].Units.String())

	// Adding again replaces the units.
	require.NoError(t, c.Add(apples, d("4")))
	require.Len(t, c.Lines, 2)
	assert.Equal(t, "4", c.Lines[0].Units.String())

	err := c.Add(apples, d("0"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = c.Add(apples, d("6"))
	assert.Equal(t, apperr.KindStock, apperr.KindOf(err))

	err = c.Add(Product{ProductID: 0, UnitType: Discrete, UnitPrice: d("1"), UnitsAvailable: d("1")}, d("1"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCart_UpdateUnits(t *testing.T) {
	c := &Cart{}
	require.NoError(t, c.Add(apples, d("2")))
	require.NoError(t, c.Add(rice, d("1")))

	require.NoError(t, c.UpdateUnits(1, d("9")))
	assert.Equal(t, "5", c.Lines[0].Units.String(), "capped at stock")

	require.NoError(t, c.UpdateUnits(2, d("0.1")))
	assert.Equal(t, "0.25", c.Lines[1].Units.String())

	require.NoError(t, c.UpdateUnits(1, d("0")))
	require.Len(t, c.Lines, 1)
	assert.Equal(t, int64(2), c.Lines[0].ProductID)

	assert.Error(t, c.UpdateUnits(99, d("1")))
}

func TestSnapshot_IsFrozen(t *testing.T) {
	c := &Cart{}
	require.NoError(t, c.Add(apples, d("2")))
	snap := c.Snapshot(time.Now())

	require.NoError(t, c.UpdateUnits(1, d("4")))
	c.Remove(1)

	lines := snap.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "2", lines[0].Units.String())

	lines[0].Units = d("5")
	assert.Equal(t, "2", snap.Lines()[0].Units.String(), "accessor returns a copy")
	assert.Equal(t, "200", snap.Total().String())
}

func TestSnapshot_JSON(t *testing.T) {
	at := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	snap := NewSnapshot([]Line{apples.line(d("2"))}, at)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var back Snapshot
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, at.Equal(back.CapturedAt()))
	assert.Equal(t, 1, back.Len())
	assert.True(t, snap.Total().Equal(back.Total()))
}

func TestSnapshot_Finalized(t *testing.T) {
	snap := NewSnapshot([]Line{
		apples.line(d("2.6")),
		rice.line(d("0.1")),
	}, time.Now()).Finalized()

	lines := snap.Lines()
	assert.Equal(t, "3", lines[0].Units.String())
	assert.Equal(t, "0.25", lines[1].Units.String())
}

func TestWishlist_Toggle(t *testing.T) {
	w := &Wishlist{}
	assert.True(t, w.Toggle(apples))
	assert.True(t, w.Contains(1))
	assert.False(t, w.Toggle(apples))
	assert.False(t, w.Contains(1))
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	c, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	require.NoError(t, c.Add(apples, d("2")))
	require.NoError(t, s.Save(ctx, c))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1)
	assert.Equal(t, "200", loaded.Total().String())

	require.NoError(t, s.Clear(ctx))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.IsEmpty())
}

func TestStore_SaveForLater(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())
	c := &Cart{}
	require.NoError(t, c.Add(apples, d("2")))
	require.NoError(t, c.Add(rice, d("1")))
	require.NoError(t, s.Save(ctx, c))

	require.NoError(t, s.SaveForLater(ctx, 1))

	c, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, int64(2), c.Lines[0].ProductID)

	w, err := s.LoadWishlist(ctx)
	require.NoError(t, err)
	assert.True(t, w.Contains(1))

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(s.SaveForLater(ctx, 1)))
}
