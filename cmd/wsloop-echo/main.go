// Command wsloop-echo is a minimal WebSocket echo server built on the
// websocket package: it accepts TCP connections, performs the handshake,
// and echoes every text message back to its sender until the peer closes
// the connection.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/coregx/wsloop/websocket"
)

const configFileName = "wsloop.toml"

func main() {
	cmd := &cli.Command{
		Name:   "wsloop-echo",
		Usage:  "example TCP server that echoes WebSocket text messages",
		Flags:  flags(configPathFromArgs(os.Args)),
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "wsloop-echo: %v\n", err)
		os.Exit(1)
	}
}

// configPathFromArgs scans the raw command-line arguments for "--config"
// ahead of flag parsing, since the TOML value sources built in flags()
// must already know which file to read before cli.Command parses them.
// Falls back to configFileName if the flag is absent.
func configPathFromArgs(args []string) string {
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if rest, ok := strings.CutPrefix(a, "--config="); ok {
			return rest
		}
	}
	return configFileName
}

func flags(configFile string) []cli.Flag {
	configPath := altsrc.StringSourcer(configFile)

	return []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "TCP address to accept WebSocket connections on",
			Value: "localhost:8765",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSLOOP_LISTEN"),
				toml.TOML("wsloop.listen", configPath),
			),
		},
		&cli.StringSliceFlag{
			Name:  "allowed-origin",
			Usage: "exact Origin value to accept (repeatable); empty means allow any origin",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSLOOP_ALLOWED_ORIGINS"),
				toml.TOML("wsloop.allowed_origins", configPath),
			),
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to a TOML configuration file",
			Value: configFileName,
		},
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging, instead of JSON",
		},
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.Bool("pretty-log"))

	var allowed websocket.OriginAllowList
	for _, o := range cmd.StringSlice("allowed-origin") {
		allowed = append(allowed, websocket.Exact(o))
	}

	ln, err := net.Listen("tcp", cmd.String("listen"))
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cmd.String("listen"), err)
	}
	defer ln.Close()

	logger.Info().Str("addr", ln.Addr().String()).Msg("wsloop-echo listening")

	hub := websocket.NewHub()
	go hub.Run(ctx)
	defer hub.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logger.Error().Err(err).Msg("accept failed")
				continue
			}
		}

		connID := shortuuid.New()
		connLogger := logger.With().Str("conn_id", connID).Logger()
		stream := websocket.NewNetByteStream(conn)

		go websocket.Serve(ctx, stream, allowed, echoHandler(hub, connLogger), connLogger)
	}
}

// echoHandler registers each connection with the hub (so it can also
// receive broadcasts) and echoes every message it receives back to its
// sender.
//
// TODO: add a ping/idle timeout once this example is promoted beyond a
// single-process demo; the library itself intentionally leaves connection
// liveness policy to the embedding application.
func echoHandler(hub *websocket.Hub, logger zerolog.Logger) websocket.Handler {
	return func(ctx context.Context, ms *websocket.MessageStream) {
		hub.Register(ms)
		defer hub.Unregister(ms)

		for {
			msg, err := ms.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			if err := ms.SendMessage(ctx, msg); err != nil {
				logger.Debug().Err(err).Msg("send failed")
				return
			}
		}
	}
}

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
