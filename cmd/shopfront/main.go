package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/shopfront/internal/apierror"
	"github.com/Skotchmaster/shopfront/internal/auth"
	"github.com/Skotchmaster/shopfront/internal/cart"
	"github.com/Skotchmaster/shopfront/internal/catalog"
	"github.com/Skotchmaster/shopfront/internal/config"
	"github.com/Skotchmaster/shopfront/internal/credstore"
	"github.com/Skotchmaster/shopfront/internal/gateway"
	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
	"github.com/Skotchmaster/shopfront/internal/render"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(os.Stderr, configuration.LOG_LEVEL)

	creds, err := credstore.Open(configuration.CRED_DB_PATH)
	if err != nil {
		log.Fatalf("credential store error: %v", err)
	}

	gw := gateway.NewClient(configuration.BASE_URL, creds, configuration.HTTP_TIMEOUT, logger)
	authClient := &auth.Client{GW: gw, Creds: creds, Log: logger}
	items := &catalog.Client{GW: gw}
	sync := cart.NewSynchronizer(gw, creds, logger)
	defer sync.Close()
	ui := &render.Terminal{Out: os.Stdout}

	// A returning user may already have a server-side cart; fetch it so the
	// banner count is real instead of the zero-valued mirror.
	if creds.Access() != "" {
		if err := sync.Reload(context.Background()); err != nil {
			logger.Warn("initial cart reload failed", "error", err)
		}
	}

	fmt.Printf("shopfront connected to %s (cart: %d line(s)). Type 'help'.\n",
		configuration.BASE_URL, sync.Count())

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		args := strings.Fields(sc.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		ctx := logging.IntoContext(context.Background(), logger.With("command", args[0]))
		runCommand(ctx, args, authClient, items, sync, ui)
	}
}

func runCommand(ctx context.Context, args []string, authClient *auth.Client, items *catalog.Client, sync *cart.Synchronizer, ui *render.Terminal) {
	var err error
	switch args[0] {
	case "help":
		usage()

	case "register":
		if len(args) != 4 {
			fmt.Println("usage: register <username> <email> <password>")
			return
		}
		if err = authClient.Register(ctx, args[1], args[2], args[3]); err == nil {
			fmt.Println("registered, now log in")
		}

	case "login":
		if len(args) != 3 {
			fmt.Println("usage: login <username> <password>")
			return
		}
		if err = authClient.Login(ctx, args[1], args[2]); err == nil {
			err = sync.Reload(ctx)
			fmt.Printf("signed in, %d line(s) in cart\n", sync.Count())
		}

	case "logout":
		if err = authClient.Logout(); err == nil {
			fmt.Println("signed out")
		}

	case "refresh":
		if err = authClient.Refresh(ctx); err == nil {
			fmt.Println("token refreshed")
		}

	case "items":
		filter, ferr := parseFilter(args[1:])
		if ferr != nil {
			fmt.Println(ferr)
			return
		}
		var list []models.Item
		list, err = items.Search(ctx, filter)
		if err == nil {
			err = ui.RenderItems(list)
		}

	case "cart":
		if err = sync.Reload(ctx); err == nil {
			v, st := sync.Snapshot()
			err = ui.RenderCart(v, st)
		}

	case "add", "set":
		if len(args) < 2 {
			fmt.Printf("usage: %s <item-id> [quantity]\n", args[0])
			return
		}
		itemID, qty, perr := parseItemQty(args)
		if perr != nil {
			fmt.Println(perr)
			return
		}
		if args[0] == "add" {
			err = sync.Add(ctx, itemID, qty)
		} else {
			err = sync.SetQuantity(ctx, itemID, qty)
		}
		if err == nil {
			v, st := sync.Snapshot()
			err = ui.RenderCart(v, st)
		}

	case "rm":
		if len(args) != 2 {
			fmt.Println("usage: rm <item-id>")
			return
		}
		var itemID uint64
		itemID, err = strconv.ParseUint(args[1], 10, 32)
		if err == nil {
			err = sync.Remove(ctx, uint(itemID))
		}
		if err == nil {
			v, st := sync.Snapshot()
			err = ui.RenderCart(v, st)
		}

	case "count":
		fmt.Printf("%d line(s) in cart\n", sync.Count())

	default:
		fmt.Printf("unknown command %q, try 'help'\n", args[0])
	}

	if err != nil {
		report(err, ui)
	}
}

func parseFilter(args []string) (catalog.Filter, error) {
	var f catalog.Filter
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return f, fmt.Errorf("bad filter %q, expected key=value", arg)
		}
		switch key {
		case "q":
			f.Text = value
		case "category":
			f.Category = value
		case "min", "max":
			d, err := decimal.NewFromString(value)
			if err != nil {
				return f, fmt.Errorf("bad price bound %q", value)
			}
			if key == "min" {
				f.PriceMin = &d
			} else {
				f.PriceMax = &d
			}
		default:
			return f, fmt.Errorf("unknown filter %q (q, category, min, max)", key)
		}
	}
	return f, nil
}

func parseItemQty(args []string) (uint, uint, error) {
	itemID, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("bad item id %q", args[1])
	}
	qty := uint64(1)
	if len(args) > 2 {
		qty, err = strconv.ParseUint(args[2], 10, 32)
		if err != nil || qty < 1 {
			return 0, 0, fmt.Errorf("bad quantity %q", args[2])
		}
	}
	return uint(itemID), uint(qty), nil
}

func report(err error, ui *render.Terminal) {
	switch {
	case errors.Is(err, apierror.ErrAuthRequired):
		ui.PromptAuth("this action needs an account")
	case errors.Is(err, apierror.ErrAuthRejected):
		ui.PromptAuth("session expired, log in again (or try 'refresh')")
	default:
		fmt.Printf("error: %v\n", err)
	}
}

func usage() {
	fmt.Println(`commands:
  register <username> <email> <password>
  login <username> <password>
  logout | refresh
  items [q=text] [category=name] [min=price] [max=price]
  cart | count
  add <item-id> [quantity]
  set <item-id> <quantity>
  rm <item-id>
  quit`)
}
