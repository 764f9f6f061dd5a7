package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/avolkov/devchat/backend/auth"
	"github.com/avolkov/devchat/backend/registry"
	"github.com/avolkov/devchat/backend/relay"
	"github.com/avolkov/devchat/backend/rooms"
	httpServer "github.com/avolkov/devchat/backend/server/http"
	websocketServer "github.com/avolkov/devchat/backend/server/websocket"
	"github.com/avolkov/devchat/backend/session"
	store "github.com/avolkov/devchat/backend/storage/badger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// Env carries the settings that should not live on the command line.
type Env struct {
	JWTSecret      string        `envconfig:"JWT_SECRET" default:"devchat-insecure-dev-secret"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	DataDir        string        `envconfig:"DATA_DIR" default:"devchat-data"`
	ParticipantCap int           `envconfig:"PARTICIPANT_CAP" default:"2"`
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err == nil {
		logger.Debug().Msg("loaded .env")
	}

	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", ":8080", "auth api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", ":8888", "websocket chat listen address")
		logLevel      = fs.StringP("log-level", "l", "debug", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	var env Env
	if err = envconfig.Process("devchat", &env); err != nil {
		logger.Fatal().Err(err).Msg("failed to process environment config")
	}

	db, err := store.NewStore(env.DataDir, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open message store")
	}
	defer func() {
		if cErr := db.Close(); cErr != nil {
			logger.Error().Err(cErr).Msg("failed to close message store")
		}
	}()

	reg := registry.New(&logger)
	router := relay.NewRouter(relay.Config{
		Logger:   &logger,
		Registry: reg,
		Rooms: rooms.NewManager(rooms.Config{
			Logger:   &logger,
			Registry: reg,
			History:  db,
			Sender:   reg,
		}),
		Sessions: session.NewManager(session.Config{
			Logger:         &logger,
			Sender:         reg,
			ParticipantCap: env.ParticipantCap,
		}),
	})

	tokens := auth.NewTokenIssuer(env.JWTSecret, env.TokenTTL)
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger: &logger,
		AuthService: auth.NewService(auth.Config{
			Logger: &logger,
			Users:  db,
			Tokens: tokens,
		}),
		ListenAddr: *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:     &logger,
		Relay:      router,
		Tokens:     tokens,
		ListenAddr: *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(3)
	go router.Run(ctx, wg)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
