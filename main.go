package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agar/client"
	"agar/server"
)

const defaultURL = "ws://localhost:4242"

// Usage:
//
//	agar server [address]
//	agar bot [url] [player id]
func main() {
	log.SetFlags(log.LstdFlags | log.Llongfile)

	if len(os.Args) > 1 && os.Args[1] == "server" {
		if err := server.Run(os.Args[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	url := defaultURL
	if len(os.Args) > 2 {
		url = os.Args[2]
	}
	var ID string
	if len(os.Args) > 3 {
		ID = os.Args[3]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	c, err := client.Dial(dialCtx, url, &client.Options{Timeout: 5 * time.Second})
	cancel()
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	bot := client.NewBot(c, client.BotConfig{ID: ID})
	if err := bot.Join(ctx); err != nil {
		log.Fatal(err)
	}
	log.Printf("bot %s joined %s", bot.ID(), url)

	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
