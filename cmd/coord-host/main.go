// Command coord-host is the line-delimited JSON-RPC stdio tool host.
// It resolves the caller's identity fail-fast, registers presence (the
// first datastore command, which opens the connection), and serves
// coordination broker operations until stdin closes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/jb-8200/asdlc-coord/internal/broker"
	"github.com/jb-8200/asdlc-coord/internal/config"
	"github.com/jb-8200/asdlc-coord/internal/identity"
	"github.com/jb-8200/asdlc-coord/internal/kvstore"
	"github.com/jb-8200/asdlc-coord/internal/message"
	"github.com/jb-8200/asdlc-coord/internal/rpchost"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "coord-host: getting current directory:", err)
		return 1
	}

	self, err := identity.Resolve(context.Background(), cwd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "coord-host:", err)
		return 1
	}
	log = log.With().Str("instance", self).Logger()

	cfg := config.FromEnv("coord.toml")
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		log = log.Level(level)
	}

	adapter := kvstore.NewRedis(cfg.RedisAddr(), cfg.RedisDB)
	defer adapter.Close()

	client := broker.New(adapter, cfg, self, log)
	host := rpchost.New(client, cfg, self, log)

	if err := client.Register(context.Background(), self, ""); err != nil {
		log.Warn().Err(err).Msg("initial presence registration failed")
	}

	serveCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchLiveNotifications(serveCtx, client, log)

	if err := host.Serve(serveCtx, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("serve loop exited with error")
		return 1
	}
	return 0
}

// watchLiveNotifications drains the instance's live pub/sub channels
// for the life of the process. The JSON-RPC stdio transport has no
// side channel to push these to the caller; logging them keeps the
// real-time fan-out path observable until a caller polls
// get_notifications for the durable copy.
func watchLiveNotifications(ctx context.Context, client *broker.Client, log zerolog.Logger) {
	sub, err := client.Subscribe(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("live notification subscribe failed")
		return
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var event message.NotificationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("undecodable live notification payload")
				continue
			}
			log.Info().
				Str("channel", msg.Channel).
				Str("message_id", event.MessageID).
				Str("from", event.From).
				Str("type", string(event.Type)).
				Msg("live notification received")
		}
	}
}
