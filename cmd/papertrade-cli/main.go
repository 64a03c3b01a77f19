// papertrade-cli is the operator surface for the trading ledger: account
// management, market and limit orders, portfolio valuation, quotes, charts,
// and news. It works directly against the SQLite ledger, so run it on the
// same host as papertrade-server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/domain"
	"papertrade/internal/engine"
	"papertrade/internal/ledger"
	"papertrade/internal/quote"
	"papertrade/internal/util"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: papertrade-cli <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                              Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  adduser NAME                         Create a user with the configured starting cash\n")
		fmt.Fprintf(os.Stderr, "  deposit USER AMOUNT                  Add funds\n")
		fmt.Fprintf(os.Stderr, "  withdraw USER AMOUNT                 Withdraw funds\n")
		fmt.Fprintf(os.Stderr, "  buy USER SYMBOL QTY                  Market buy\n")
		fmt.Fprintf(os.Stderr, "  sell USER SYMBOL QTY                 Market sell\n")
		fmt.Fprintf(os.Stderr, "  order USER SYMBOL BUY|SELL PRICE QTY Place a limit order\n")
		fmt.Fprintf(os.Stderr, "  cancel USER ORDER                    Cancel a pending limit order\n")
		fmt.Fprintf(os.Stderr, "  orders USER                          List limit orders\n")
		fmt.Fprintf(os.Stderr, "  portfolio USER                       Value the portfolio at current prices\n")
		fmt.Fprintf(os.Stderr, "  history USER                         List transactions\n")
		fmt.Fprintf(os.Stderr, "  watch USER SYMBOL                    Add a symbol to the watchlist\n")
		fmt.Fprintf(os.Stderr, "  unwatch USER SYMBOL                  Remove a symbol from the watchlist\n")
		fmt.Fprintf(os.Stderr, "  watchlist USER                       Show priced watchlist\n")
		fmt.Fprintf(os.Stderr, "  quote SYMBOL                         Show price and day change\n")
		fmt.Fprintf(os.Stderr, "  chart SYMBOL [DAYS]                  Daily closes with SMA-20 and RSI-14\n")
		fmt.Fprintf(os.Stderr, "  news SYMBOL                          Latest headlines\n")
		fmt.Fprintf(os.Stderr, "\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}
	if args[0] == "version" {
		fmt.Printf("papertrade-cli %s\n", version)
		return
	}

	cfgPath := "config/papertrade.yaml"
	if p := os.Getenv("PAPERTRADE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fail("loading config: %v", err)
	}
	util.SetDefault(util.NewLogger("warn", "text"))

	l, err := ledger.NewSQLiteLedger(cfg.Storage.SQLitePath)
	if err != nil {
		fail("opening ledger: %v", err)
	}
	defer l.Close()

	oracle := quote.NewAlpacaOracle(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		time.Duration(cfg.Engine.PriceTimeoutSec)*time.Second,
		cfg.Engine.RateLimitPerMin,
	)
	exec := engine.NewExecutor(l, oracle)
	valuator := engine.NewValuator(l, oracle)

	ctx := context.Background()

	switch args[0] {
	case "adduser":
		name := arg(args, 1, "NAME")
		u, err := l.CreateUser(ctx, name, cfg.Trading.StartingCash)
		if err != nil {
			fail("creating user: %v", err)
		}
		fmt.Printf("created user %d (%s) with %.2f cash\n", u.ID, u.Username, u.Cash)

	case "deposit":
		userID, amount := argID(args, 1), argFloat(args, 2, "AMOUNT")
		if err := exec.AddFunds(ctx, userID, amount); err != nil {
			fail("deposit: %v", err)
		}
		printBalance(ctx, l, userID)

	case "withdraw":
		userID, amount := argID(args, 1), argFloat(args, 2, "AMOUNT")
		if err := exec.WithdrawFunds(ctx, userID, amount); err != nil {
			fail("withdraw: %v", err)
		}
		printBalance(ctx, l, userID)

	case "buy", "sell":
		userID := argID(args, 1)
		symbol := arg(args, 2, "SYMBOL")
		qty := argInt(args, 3, "QTY")
		side := domain.SideBuy
		if args[0] == "sell" {
			side = domain.SideSell
		}
		tx, err := exec.Execute(ctx, userID, symbol, side, qty)
		if err != nil {
			fail("%s: %v", args[0], err)
		}
		fmt.Printf("executed: %s %d %s @ %.2f (tx %d)\n", tx.Side, tx.Quantity, tx.Symbol, tx.Price, tx.ID)

	case "order":
		userID := argID(args, 1)
		symbol := arg(args, 2, "SYMBOL")
		side := domain.Side(strings.ToUpper(arg(args, 3, "SIDE")))
		target := argFloat(args, 4, "PRICE")
		qty := argInt(args, 5, "QTY")
		o, err := exec.PlaceLimitOrder(ctx, userID, symbol, side, target, qty)
		if err != nil {
			fail("placing order: %v", err)
		}
		fmt.Printf("placed order %d: %s %d %s @ %.2f (%s)\n",
			o.ID, o.Side, o.Quantity, o.Symbol, o.TargetPrice, o.Status)

	case "cancel":
		userID, orderID := argID(args, 1), argID(args, 2)
		if err := exec.CancelLimitOrder(ctx, userID, orderID); err != nil {
			fail("cancelling: %v", err)
		}
		o, err := l.GetLimitOrder(ctx, orderID)
		if err != nil {
			fail("reading order: %v", err)
		}
		fmt.Printf("order %d is now %s\n", o.ID, o.Status)

	case "orders":
		userID := argID(args, 1)
		orders, err := l.ListLimitOrders(ctx, userID)
		if err != nil {
			fail("listing orders: %v", err)
		}
		for _, o := range orders {
			fmt.Printf("#%-5d %-4s %6d %-6s @ %10.2f  %-9s %s\n",
				o.ID, o.Side, o.Quantity, o.Symbol, o.TargetPrice, o.Status,
				o.CreatedAt.Format("2006-01-02 15:04"))
		}

	case "portfolio":
		userID := argID(args, 1)
		p, err := valuator.Value(ctx, userID)
		if err != nil {
			fail("valuing: %v", err)
		}
		fmt.Printf("cash: %.2f\n", p.Cash)
		for _, h := range p.Holdings {
			fmt.Printf("  %-6s %6d @ %10.2f = %12.2f (%+.2f%%)\n",
				h.Symbol, h.Quantity, h.Price, h.Value, h.ChangePercent)
		}
		fmt.Printf("total: %.2f\n", p.Total)

	case "history":
		userID := argID(args, 1)
		txs, err := l.ListTransactions(ctx, userID)
		if err != nil {
			fail("listing transactions: %v", err)
		}
		for _, tx := range txs {
			fmt.Printf("#%-5d %-4s %6d %-6s @ %10.2f  %s\n",
				tx.ID, tx.Side, tx.Quantity, tx.Symbol, tx.Price,
				tx.Timestamp.Format("2006-01-02 15:04:05"))
		}

	case "watch":
		userID, symbol := argID(args, 1), arg(args, 2, "SYMBOL")
		if err := l.AddWatch(ctx, userID, strings.ToUpper(symbol)); err != nil {
			fail("watching: %v", err)
		}

	case "unwatch":
		userID, symbol := argID(args, 1), arg(args, 2, "SYMBOL")
		if err := l.RemoveWatch(ctx, userID, strings.ToUpper(symbol)); err != nil {
			fail("unwatching: %v", err)
		}

	case "watchlist":
		userID := argID(args, 1)
		quotes, err := valuator.Watchlist(ctx, userID)
		if err != nil {
			fail("pricing watchlist: %v", err)
		}
		for _, q := range quotes {
			fmt.Printf("%-6s %10.2f  %+8.2f (%+.2f%%)\n", q.Symbol, q.Price, q.Change, q.ChangePercent)
		}

	case "quote":
		symbol := strings.ToUpper(arg(args, 1, "SYMBOL"))
		q, err := oracle.Quote(ctx, symbol)
		if err != nil {
			fail("quoting: %v", err)
		}
		fmt.Printf("%s: %.2f  prev close %.2f  %+.2f (%+.2f%%)\n",
			q.Symbol, q.Price, q.PrevClose, q.Change, q.ChangePercent)

	case "chart":
		symbol := strings.ToUpper(arg(args, 1, "SYMBOL"))
		days := 90
		if len(args) > 2 {
			days = int(argInt(args, 2, "DAYS"))
		}
		bars, err := oracle.History(ctx, symbol, days)
		if err != nil {
			fail("fetching history: %v", err)
		}
		for _, p := range quote.Annotate(bars) {
			line := fmt.Sprintf("%s %10.2f", p.Time.Format("2006-01-02"), p.Close)
			if p.SMA20 != nil {
				line += fmt.Sprintf("  sma20=%.2f", *p.SMA20)
			}
			if p.RSI14 != nil {
				line += fmt.Sprintf("  rsi14=%.1f", *p.RSI14)
			}
			fmt.Println(line)
		}

	case "news":
		symbol := strings.ToUpper(arg(args, 1, "SYMBOL"))
		headlines, err := oracle.News(ctx, symbol, 5)
		if err != nil {
			fail("fetching news: %v", err)
		}
		for _, h := range headlines {
			fmt.Printf("%s [%s] %s\n    %s\n", h.Time.Format("2006-01-02 15:04"), h.Source, h.Title, h.URL)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
}

func printBalance(ctx context.Context, l ledger.Ledger, userID int64) {
	u, err := l.GetUser(ctx, userID)
	if err != nil {
		fail("reading user: %v", err)
	}
	fmt.Printf("user %d cash: %.2f\n", u.ID, u.Cash)
}

func arg(args []string, i int, name string) string {
	if len(args) <= i {
		fail("missing argument %s", name)
	}
	return args[i]
}

func argID(args []string, i int) int64 {
	return argInt(args, i, "USER/ORDER")
}

func argInt(args []string, i int, name string) int64 {
	v, err := strconv.ParseInt(arg(args, i, name), 10, 64)
	if err != nil {
		fail("invalid %s: %v", name, err)
	}
	return v
}

func argFloat(args []string, i int, name string) float64 {
	v, err := strconv.ParseFloat(arg(args, i, name), 64)
	if err != nil {
		fail("invalid %s: %v", name, err)
	}
	return v
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
