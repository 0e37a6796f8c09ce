// wsprobe connects to a coinfo websocket, subscribes and prints decoded
// server messages to the console.
// Usage: go run ./cmd/wsprobe --url ws://localhost:3003/ws --symbols KRW-BTC,KRW-ETH
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rickgao/coinfo/internal/connection"
	"github.com/rickgao/coinfo/internal/hub"
	"github.com/rickgao/coinfo/internal/model"
)

func main() {
	url := flag.String("url", "ws://localhost:3003/ws", "coinfo websocket URL")
	exchange := flag.String("exchange", "upbit", "exchange to subscribe on")
	symbols := flag.String("symbols", "KRW-BTC,KRW-ETH", "comma-separated symbols")
	verbose := flag.Bool("verbose", false, "print full messages as JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := connection.DefaultClientConfig()
	cfg.URL = *url
	cfg.BufferSize = 1000
	client := connection.NewClient(cfg, logger)

	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	sub, _ := json.Marshal(map[string]any{
		"type":     hub.TypeSubscribe,
		"exchange": *exchange,
		"symbols":  strings.Split(*symbols, ","),
	})
	if err := client.Send(sub); err != nil {
		logger.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}

	// Ping so the round trip shows up in the output.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = client.Send([]byte(`{"type":"ping"}`))
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "url", *url)

	var batches, tickers int
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown complete", "batches", batches, "tickers", tickers)
			return

		case err := <-client.Errors():
			logger.Error("connection error", "error", err)
			return

		case msg := <-client.Messages():
			n, err := printMessage(msg, *verbose)
			if err != nil {
				logger.Warn("failed to decode message", "error", err, "bytes", len(msg.Data))
				continue
			}
			if n > 0 {
				batches++
				tickers += n
			}
		}
	}
}

// printMessage decodes one server message and returns how many tickers it carried.
func printMessage(msg connection.TimestampedMessage, verbose bool) (int, error) {
	var m map[string]any
	if err := msgpack.Unmarshal(msg.Data, &m); err != nil {
		return 0, err
	}

	if verbose {
		data, _ := json.MarshalIndent(m, "", "  ")
		fmt.Printf("[%s] %s\n", m["t"], data)
	}

	switch m["t"] {
	case hub.TagTickers:
		raw, _ := m["d"].([]any)
		for _, r := range raw {
			tuple, _ := r.([]any)
			tk, err := model.DecodeCompact(tuple)
			if err != nil {
				return 0, err
			}
			if !verbose {
				fmt.Printf("[TICKER] %s:%s price=%v dir=%s change=%.2f%% vol24h=%d\n",
					tk.Exchange, tk.Symbol, tk.Price, tk.Direction, tk.Change24h, tk.Volume24h)
			}
		}
		return len(raw), nil

	case hub.TagError:
		fmt.Printf("[ERROR] code=%v message=%v\n", m["code"], m["message"])
	default:
		if !verbose {
			fmt.Printf("[%s] %v\n", m["t"], m)
		}
	}
	return 0, nil
}
