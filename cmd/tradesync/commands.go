package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/betbot/tradesync/internal/api"
	"github.com/betbot/tradesync/internal/app"
)

type command func(ctx context.Context, a *app.App, args []string) error

var commands = map[string]command{
	"login":     cmdLogin,
	"logout":    cmdLogout,
	"whoami":    cmdWhoami,
	"status":    cmdStatus,
	"start":     cmdStart,
	"stop":      cmdStop,
	"positions": cmdPositions,
	"symbols":   cmdSymbols,
	"market":    cmdMarket,
	"form":      cmdForm,
}

func cmdLogin(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", os.Getenv("TRADESYNC_USERNAME"), "username")
	password := fs.String("p", os.Getenv("TRADESYNC_PASSWORD"), "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("username and password are required")
	}
	resp, err := a.Auth.Login(ctx, *username, *password)
	if err != nil {
		return errors.New(errorText(err))
	}
	if !resp.Success {
		return errors.New(orDefault(resp.Error, "Login failed"))
	}
	fmt.Printf("logged in as %s\n", resp.User.Username)
	return nil
}

func cmdLogout(ctx context.Context, a *app.App, _ []string) error {
	if err := a.Auth.Logout(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logout request failed (%s), local session cleared\n", errorText(err))
		return nil
	}
	fmt.Println("logged out")
	return nil
}

func cmdWhoami(_ context.Context, a *app.App, _ []string) error {
	u, ok := a.Auth.User()
	if !ok {
		return errors.New("not logged in")
	}
	fmt.Println(renderUser(u))
	return nil
}

func cmdStatus(ctx context.Context, a *app.App, _ []string) error {
	s := a.Stores.Status
	s.Fetch(ctx)
	st := s.Get()
	if st.Error != "" {
		return errors.New(st.Error)
	}
	fmt.Println(renderStatus(st.Data))
	return nil
}

func cmdStart(ctx context.Context, a *app.App, args []string) error {
	form := a.Form.Get()
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	symbols := fs.String("symbols", strings.Join(form.Symbols, ","), "comma separated symbols")
	timeframe := fs.String("timeframe", form.Timeframe, "timeframe")
	leverage := fs.Int("leverage", form.Leverage, "leverage")
	save := fs.Bool("save", false, "remember these values")
	if err := fs.Parse(args); err != nil {
		return err
	}
	form.Symbols = splitSymbols(*symbols)
	form.Timeframe = *timeframe
	form.Leverage = *leverage
	form.APIKey = os.Getenv("TRADESYNC_EXCHANGE_API_KEY")
	form.APISecret = os.Getenv("TRADESYNC_EXCHANGE_API_SECRET")
	form.Passphrase = os.Getenv("TRADESYNC_EXCHANGE_PASSPHRASE")

	if *save {
		if err := a.Form.Set(form); err != nil {
			return err
		}
	}

	out := a.Stores.Status.Start(ctx, form)
	if !out.Success {
		return errors.New(out.Error)
	}
	fmt.Printf("trading started: %s\n", strings.Join(form.Symbols, ", "))
	return nil
}

func cmdStop(ctx context.Context, a *app.App, _ []string) error {
	out := a.Stores.Status.Stop(ctx)
	if !out.Success {
		return errors.New(out.Error)
	}
	fmt.Println("trading stopped")
	return nil
}

func cmdPositions(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("positions", flag.ContinueOnError)
	status := fs.String("status", "", "open|closed")
	symbol := fs.String("symbol", "", "symbol")
	limit := fs.Int("limit", 0, "max rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a.Stores.Positions.Fetch(ctx, &api.PositionFilters{Status: *status, Symbol: *symbol, Limit: *limit})
	st := a.Stores.Positions.Get()
	if st.Error != "" {
		return errors.New(st.Error)
	}
	fmt.Println(renderPositions(st.Data))
	fmt.Printf("open: %d  closed: %d  total P/L: %s\n",
		len(a.Views.OpenPositions.Get()),
		len(a.Views.ClosedPositions.Get()),
		a.Views.TotalProfitLoss.Get().StringFixed(2))
	return nil
}

func cmdSymbols(ctx context.Context, a *app.App, _ []string) error {
	a.Stores.Symbols.Fetch(ctx)
	st := a.Stores.Symbols.Get()
	if st.Error != "" {
		return errors.New(st.Error)
	}
	for _, s := range st.Data {
		fmt.Println(s)
	}
	return nil
}

func cmdMarket(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("market", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "symbol (default BTCUSDT)")
	timeframe := fs.String("timeframe", "", "timeframe (default 15m)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a.Stores.Market.Fetch(ctx, strings.ToUpper(*symbol), *timeframe)
	st := a.Stores.Market.Get()
	if st.Error != "" {
		return errors.New(st.Error)
	}
	fmt.Println(renderCandles(st.Data, 20))
	return nil
}

func cmdForm(_ context.Context, a *app.App, args []string) error {
	action := "show"
	if len(args) > 0 {
		action = args[0]
	}
	switch action {
	case "show":
		fmt.Println(renderForm(a.Form.Get()))
		return nil
	case "reset":
		if err := a.Form.Reset(); err != nil {
			return err
		}
		fmt.Println(renderForm(a.Form.Get()))
		return nil
	default:
		return fmt.Errorf("unknown form action %q", action)
	}
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
