// Package render is the UI boundary. The synchronizer hands it derived
// views; it never reaches back into cart state.
package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Skotchmaster/shopfront/internal/cart"
	"github.com/Skotchmaster/shopfront/internal/models"
)

type Renderer interface {
	RenderItems(items []models.Item) error
	RenderCart(v cart.View, st cart.State) error
	PromptAuth(reason string)
}

// Terminal writes plain tables to an io.Writer.
type Terminal struct {
	Out io.Writer
}

func (t *Terminal) RenderItems(items []models.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(t.Out, "no items found")
		return err
	}
	w := tabwriter.NewWriter(t.Out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE")
	for _, it := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", it.ID, it.Name, it.Category, it.Price.StringFixed(2))
	}
	return w.Flush()
}

func (t *Terminal) RenderCart(v cart.View, st cart.State) error {
	switch st {
	case cart.StateUnauthenticated:
		_, err := fmt.Fprintln(t.Out, "sign in to view your cart")
		return err
	case cart.StateStale:
		fmt.Fprintln(t.Out, "warning: showing last known cart, server unreachable")
	}

	if len(v.Lines) == 0 {
		_, err := fmt.Fprintln(t.Out, "cart is empty")
		return err
	}

	w := tabwriter.NewWriter(t.Out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tPRICE\tQTY\tTOTAL")
	for _, line := range v.Lines {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			line.Item.Name, line.Item.Price.StringFixed(2), line.Quantity, line.Total.StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t\t----\n")
	fmt.Fprintf(w, "%d line(s)\t\t\t%s\n", v.Count, v.GrandTotal.StringFixed(2))
	return w.Flush()
}

func (t *Terminal) PromptAuth(reason string) {
	fmt.Fprintf(t.Out, "please log in: %s\n", reason)
}
