// README: Entry point; loads config, wires the store, identity, services and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"newber/internal/config"
	"newber/internal/docstore"
	httptransport "newber/internal/http"
	"newber/internal/infra"
	"newber/internal/logger"
	"newber/internal/maps"
	"newber/internal/modules/identity"
	"newber/internal/modules/pricing"
	"newber/internal/modules/rating"
	"newber/internal/modules/ride"
	"newber/internal/modules/settlement"
	"newber/internal/modules/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("newber-api stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	var (
		db  docstore.Store
		idp identity.Provider
	)
	switch cfg.Store.Backend {
	case config.BackendFirestore:
		app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
		fs, err := infra.NewFirestore(ctx, app)
		if err != nil {
			return err
		}
		defer fs.Close()
		db = docstore.NewFirestore(fs, log)
		if idp, err = identity.NewFirebase(ctx, app, cfg.Firebase.APIKey); err != nil {
			return err
		}
	case config.BackendMemory:
		log.Warn("using the in-memory store and identity provider; nothing survives a restart")
		db = docstore.NewMemory()
		idp = identity.NewMemory()
	}

	var events ride.EventLog = ride.NewMemoryEventLog()
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		events = ride.NewPGEventLog(pool)
	}

	users := user.NewStore(db)
	var names user.UsernameRegistry = user.NewStoreRegistry(users)
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		names = user.NewRedisRegistry(rdb)
	}

	var geocoder ride.Geocoder
	if cfg.Maps.APIKey != "" {
		g, err := maps.NewGeocoder(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		geocoder = g
	}

	fares := pricing.NewService(pricing.Rate{
		CostPerMile: decimal.NewFromFloat(cfg.Fare.CostPerMile),
		FlatFee:     decimal.NewFromFloat(cfg.Fare.FlatFee),
		Currency:    cfg.Fare.Currency,
	})
	ratingStore := rating.NewStore(db)
	ratings := rating.NewService(ratingStore)
	settler := settlement.NewService(db, users, ratings, log)
	rides := ride.NewService(db, users, fares, settler, events, geocoder, log)

	server := httptransport.NewServer(cfg.HTTP.Addr, httptransport.ServerDeps{
		Users:    user.NewService(db, users, ratingStore, idp, names, fares.Currency(), log),
		Ratings:  ratings,
		Pricing:  fares,
		Rides:    rides,
		Verifier: idp,
		Log:      log,
	})
	log.WithFields(logrus.Fields{
		"backend":   cfg.Store.Backend,
		"event_log": cfg.DB.DSN != "",
		"redis":     cfg.Redis.Addr != "",
		"geocoding": geocoder != nil,
	}).Info("newber-api starting")
	return server.Run(ctx)
}
