package cart

import (
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shopfront/internal/models"
)

// State reports how trustworthy the current view is.
type State int

const (
	// StateEmpty: nothing fetched yet this session.
	StateEmpty State = iota
	// StateLoaded: the view mirrors the last successful server fetch.
	StateLoaded
	// StateStale: the last reload failed; the view is the previous mirror
	// and must not be presented as current.
	StateStale
	// StateUnauthenticated: no token; the view is forced empty and no
	// server call is attempted.
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateStale:
		return "stale"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "empty"
	}
}

// Line is a cart line plus its computed total.
type Line struct {
	models.CartLine
	Total decimal.Decimal
}

// View is derived wholesale from one server payload. It is never patched
// in place, so totals cannot drift from what the server last confirmed.
type View struct {
	Lines      []Line
	GrandTotal decimal.Decimal
	Count      int
}

func buildView(lines []models.CartLine) View {
	v := View{
		Lines:      make([]Line, 0, len(lines)),
		GrandTotal: decimal.Zero,
		Count:      len(lines),
	}
	for _, cl := range lines {
		total := cl.Item.Price.Mul(decimal.NewFromInt(int64(cl.Quantity)))
		v.Lines = append(v.Lines, Line{CartLine: cl, Total: total})
		v.GrandTotal = v.GrandTotal.Add(total)
	}
	return v
}

func emptyView() View {
	return View{Lines: []Line{}, GrandTotal: decimal.Zero}
}
