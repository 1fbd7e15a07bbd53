// Command chatclient is a line-oriented chat client. Plain lines are sent to
// the current partner; commands start with a slash:
//
//	/join <user>   switch partner and join the room
//	/seen          mark everything from the partner read
//	/retry <id>    re-send a message in error state
//	/list          print the timeline
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"matchchat/internal/client"
	"matchchat/internal/infrastructure/logging"
)

type cliConfig struct {
	url          string
	user         string
	token        string
	partner      string
	pingInterval time.Duration
	ackTimeout   time.Duration
	logLevel     string
}

func parseFlags() cliConfig {
	var cfg cliConfig
	flag.StringVar(&cfg.url, "url", "ws://localhost:8080/api/v1/chat/ws", "Websocket endpoint")
	flag.StringVar(&cfg.user, "user", "", "Your user id")
	flag.StringVar(&cfg.token, "token", "", "Bearer token (when the server verifies JWTs)")
	flag.StringVar(&cfg.partner, "to", "", "Partner to join on start")
	flag.DurationVar(&cfg.pingInterval, "ping", 25*time.Second, "Keep-alive interval")
	flag.DurationVar(&cfg.ackTimeout, "ack-timeout", 10*time.Second, "Time before an unacked message turns to error")
	flag.StringVar(&cfg.logLevel, "log-level", "warn", "Log level")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}
	log := logging.New(cfg.logLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Options{
		URL:          cfg.url,
		UserID:       cfg.user,
		Token:        cfg.token,
		PingInterval: cfg.pingInterval,
		AckTimeout:   cfg.ackTimeout,
		Log:          log,
		OnFrame:      printFrame,
	})
	partner := cfg.partner
	if partner != "" {
		_ = c.Join(partner)
	}
	go func() {
		if err := c.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("client stopped")
		}
	}()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line := <-lines:
			partner = handleLine(c, log, partner, strings.TrimSpace(line))
		}
	}
}

func handleLine(c *client.Client, log logrus.FieldLogger, partner, line string) string {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "":
	case "/join":
		if arg == "" {
			fmt.Println("usage: /join <user>")
			break
		}
		if partner != "" && partner != arg {
			_ = c.Leave(partner)
		}
		partner = arg
		_ = c.Join(partner)
	case "/seen":
		if err := c.Seen(partner, ""); err != nil {
			log.WithError(err).Warn("seen not sent")
		}
	case "/retry":
		if err := c.Retry(arg); err != nil {
			fmt.Println("retry:", err)
		}
	case "/list":
		for _, e := range c.Timeline().Entries() {
			fmt.Printf("%-9s %s %s: %s\n", e.Status, e.Message.ID, e.Message.SenderID, e.Message.Content)
		}
	default:
		if partner == "" {
			fmt.Println("join a partner first: /join <user>")
			break
		}
		m, err := c.Send(partner, line)
		if err != nil {
			fmt.Println("send:", err)
			break
		}
		fmt.Printf("[sending %s]\n", m.ID)
	}
	return partner
}

func printFrame(f client.Frame) {
	switch f.Type {
	case "message":
		if f.Message != nil {
			fmt.Printf("%s: %s\n", f.Message.SenderID, f.Message.Content)
		}
	case "presence":
		fmt.Printf("* %s is %s\n", f.UserID, f.Status)
	case "typing":
		fmt.Printf("* %s is typing\n", f.Sender)
	case "error":
		fmt.Printf("! %s: %s %s\n", f.Code, f.Error, f.MessageID)
	}
}
