// chatprobe connects to a running relay and streams decoded frames to
// the console. Useful for watching a room live or for smoke-testing a
// deployment without a browser.
// Usage: go run ./cmd/chatprobe --url ws://localhost:8080/ws --user probe --send "hello"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "relay WebSocket URL")
	user := flag.String("user", "probe", "display name to announce")
	send := flag.String("send", "", "chat message to send after connecting")
	typing := flag.Bool("typing", false, "send a typing pulse after connecting")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, *url, nil)
	if err != nil {
		logger.Error("dial failed", "url", *url, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("connected", "url", *url)

	// The server pings on its heartbeat; gorilla answers with a pong
	// automatically, so the probe stays alive as long as it reads.

	if *send != "" {
		out, _ := json.Marshal(map[string]string{
			"type": "send",
			"user": *user,
			"text": *send,
		})
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			logger.Error("send failed", "error", err)
			os.Exit(1)
		}
	}

	if *typing {
		out, _ := json.Marshal(map[string]any{
			"type":   "typing",
			"user":   *user,
			"active": true,
		})
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			logger.Error("typing send failed", "error", err)
			os.Exit(1)
		}
	}

	// Close the socket when the context ends so the read loop unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("streaming frames - press Ctrl+C to stop")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				logger.Info("probe stopped")
				return
			default:
				logger.Error("read failed", "error", err)
				os.Exit(1)
			}
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			fmt.Printf("[RAW] %s\n", data)
			continue
		}

		if *verbose {
			pretty, _ := json.MarshalIndent(f, "", "  ")
			fmt.Printf("[%s] %s\n", f.Type, pretty)
			continue
		}

		switch f.Type {
		case "self-id":
			var self struct {
				ID string `json:"id"`
			}
			json.Unmarshal(f.Data, &self)
			fmt.Printf("[SELF-ID] %s\n", self.ID)
		case "message":
			var m struct {
				User string `json:"user"`
				Text string `json:"text"`
				TS   int64  `json:"ts"`
			}
			json.Unmarshal(f.Data, &m)
			fmt.Printf("[MESSAGE] %s: %s (ts=%d)\n", m.User, m.Text, m.TS)
		case "typing":
			var ty struct {
				User   string `json:"user"`
				Active bool   `json:"active"`
			}
			json.Unmarshal(f.Data, &ty)
			fmt.Printf("[TYPING] %s active=%t\n", ty.User, ty.Active)
		case "voice-peers":
			fmt.Printf("[VOICE-PEERS] %s\n", f.Data)
		default:
			fmt.Printf("[%s] %s\n", f.Type, f.Data)
		}
	}
}
