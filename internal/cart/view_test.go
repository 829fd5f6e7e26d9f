package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shopfront/internal/models"
)

func line(id uint, name, price string, qty uint) models.CartLine {
	return models.CartLine{
		ID:       id,
		Item:     models.Item{ID: id, Name: name, Price: decimal.RequireFromString(price)},
		Quantity: qty,
	}
}

func TestBuildViewTotals(t *testing.T) {
	v := buildView([]models.CartLine{
		line(1, "Dune", "19.90", 2),
		line(2, "Mug", "7.00", 3),
	})

	require.Equal(t, 2, v.Count)
	require.True(t, v.Lines[0].Total.Equal(decimal.RequireFromString("39.80")))
	require.True(t, v.Lines[1].Total.Equal(decimal.RequireFromString("21.00")))
	require.True(t, v.GrandTotal.Equal(decimal.RequireFromString("60.80")))
}

func TestBuildViewEmpty(t *testing.T) {
	v := buildView(nil)
	require.Equal(t, 0, v.Count)
	require.Empty(t, v.Lines)
	require.True(t, v.GrandTotal.IsZero())
}

func TestBuildViewUsesServerPrice(t *testing.T) {
	// The total comes from the payload's price, never from any earlier
	// catalog fetch.
	v := buildView([]models.CartLine{line(1, "Dune", "25.00", 2)})
	require.True(t, v.GrandTotal.Equal(decimal.NewFromInt(50)))
}
