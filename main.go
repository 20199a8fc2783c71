package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alimasry/coedit/auth"
	"github.com/alimasry/coedit/changelog"
	"github.com/alimasry/coedit/server"
	"github.com/alimasry/coedit/store"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	logFile := flag.String("log-file", "", "rotating log file (stdout if empty)")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "session token lifetime")
	flushInterval := flag.Duration("flush-interval", 30*time.Second, "write-behind flush interval for the Firestore cache (0 writes through)")
	flag.Parse()

	logger := newLogger(*logFile)
	ctx := context.Background()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Error("JWT_SECRET is not set")
		os.Exit(1)
	}
	authSvc := auth.NewService([]byte(secret), *tokenTTL)

	var (
		docs  store.DocumentStore
		users store.UserStore
		clog  changelog.Log = changelog.NewMemoryLog()
	)
	if project := os.Getenv("FIRESTORE_PROJECT"); project != "" {
		client, err := firestore.NewClient(ctx, project)
		if err != nil {
			logger.Error("firestore client failed", "project", project, "err", err)
			os.Exit(1)
		}
		defer client.Close()

		fs := store.NewFirestoreStore(client)
		docs, users = fs, fs
		clog = changelog.NewFirestoreLog(client)
		if *flushInterval > 0 {
			cached := store.NewCachedStore(fs, *flushInterval, logger)
			defer cached.Close()
			docs = cached
		}
		logger.Info("using firestore store", "project", project)
	} else {
		mem := store.NewMemoryStore()
		docs, users = mem, mem
		logger.Info("using in-memory store")
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		clog = changelog.NewRedisLog(redis.NewClient(&redis.Options{Addr: redisAddr}))
		logger.Info("using redis change log", "addr", redisAddr)
	}

	registry := server.NewRegistry(logger)
	coordinator := server.NewCoordinator(docs, clog, registry, logger)
	srv := server.NewServer(registry, coordinator, docs, users, authSvc, logger)

	logger.Info("starting server", "addr", *addr)
	if err := http.ListenAndServe(*addr, srv.Handler()); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func newLogger(path string) *slog.Logger {
	var w io.Writer = os.Stdout
	if path != "" {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
		}
	}
	return slog.New(slog.NewTextHandler(w, nil))
}
