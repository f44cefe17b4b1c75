package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/picword/broadcast"
	"github.com/wfunc/picword/catalog"
	"github.com/wfunc/picword/config"
	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/monitor"
	"github.com/wfunc/picword/persistence"
	"github.com/wfunc/picword/room"
	"github.com/wfunc/picword/router"
	"github.com/wfunc/picword/rpc"
	"github.com/wfunc/picword/server"
	"github.com/wfunc/picword/services"
	"github.com/wfunc/picword/session"
	"github.com/wfunc/picword/timer"
)

func main() {
	configDir := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("info", false); err != nil {
		panic(err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		logger.Log.Fatalf("Failed to configure logger: %v", err)
	}
	defer logger.Sync()

	// Initialize score store
	store, gormStore, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to open %s ledger: %v", cfg.Ledger.Backend, err)
	}
	logger.Log.Infof("Ledger backend: %s", cfg.Ledger.Backend)

	// Round catalog
	var source catalog.Catalog = catalog.NewFileCatalog(cfg.Catalog.Path)
	if cfg.Catalog.Source == "database" {
		seedRounds(gormStore, cfg.Catalog.Path)
		source = gormStore
	}
	cat := catalog.Selector{Source: source, Limit: cfg.Game.RoundsPerGame, Shuffle: cfg.Game.ShuffleRounds}

	policy, err := room.ParseClosingPolicy(cfg.Game.ClosingPolicy)
	if err != nil {
		logger.Log.Fatalf("Invalid closing policy: %v", err)
	}

	timers := timer.NewTimerManager(100 * time.Millisecond)
	mon := monitor.NewMonitor("picword")
	sessions := session.NewManager()
	ledger := persistence.NewAsyncLedger(store, cfg.Ledger.Workers, cfg.Ledger.QueueSize, mon)

	notifiers := room.Fanout{
		broadcast.NewRoomBroadcaster(sessions),
		persistence.NewGameRecorder(store, mon),
		mon,
	}
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := broadcast.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			logger.Log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		notifiers = append(notifiers, broadcast.NewRedisPublisher(client, cfg.Redis.ChannelPrefix))
	}
	// 推送、Redis 和落库都在分发协程里完成，房间操作不等待网络
	events := room.NewDispatcher(notifiers)

	rooms := room.NewRoomManager(
		room.ManagerConfig{MinCapacity: cfg.Game.MinCapacity, MaxCapacity: cfg.Game.MaxCapacity},
		room.WithClosingPolicy(policy),
		room.WithHostOnlyStart(cfg.Game.HostOnlyStart),
		room.WithScheduler(timers),
		room.WithLedger(ledger),
		room.WithNotifier(events),
	)

	// 过期倒计时兜底 + 清理空房间
	sweepID := timers.AddTimer(cfg.Game.SweepInterval, cfg.Game.SweepInterval, func() {
		if removed := rooms.Sweep(cfg.Game.IdleRoomTTL); len(removed) > 0 {
			logger.Log.Infof("Swept %d idle rooms", len(removed))
		}
	})

	rt := router.New(rooms, cat,
		router.WithDefaultCapacity(cfg.Game.DefaultCapacity),
		router.WithObserver(mon),
	)

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, rt, sessions, server.Options{
		Heartbeat:      cfg.Server.Heartbeat,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Conns:          mon,
	})

	// Admin RPC
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to start RPC server: %v", err)
	}
	if err := rpcServer.Register(rpc.NewAdminService(rooms, services.NewScoreService(store))); err != nil {
		logger.Log.Fatalf("Failed to register admin service: %v", err)
	}
	go rpcServer.Start()

	healthServer, err := rpc.NewHealthServer(cfg.Server.GRPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to start health server: %v", err)
	}
	go func() {
		if err := healthServer.Start(); err != nil {
			logger.Log.Errorf("Health server stopped: %v", err)
		}
	}()

	mon.StartServer(cfg.Server.MetricsAddress)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- gameServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Log.Infof("Received %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Log.Errorf("Game server failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	healthServer.Stop()
	if err := gameServer.Shutdown(ctx); err != nil {
		logger.Log.Warnf("HTTP shutdown: %v", err)
	}
	rpcServer.Stop()
	timers.RemoveTimer(sweepID)
	rooms.Shutdown()
	if err := events.Close(ctx); err != nil {
		logger.Log.Warnf("Event delivery incomplete: %v", err)
	}
	if err := ledger.Close(ctx); err != nil {
		logger.Log.Warnf("Ledger drain incomplete: %v", err)
	}
	if err := store.Close(); err != nil {
		logger.Log.Warnf("Closing store: %v", err)
	}
	if err := mon.Shutdown(ctx); err != nil {
		logger.Log.Warnf("Metrics shutdown: %v", err)
	}
	timers.Stop()
	logger.Log.Info("Server stopped")
}

// openStore returns the configured ledger store. The gorm store is also
// returned on its own because it doubles as the database round catalog.
func openStore(cfg *config.Config) (persistence.ScoreStore, *persistence.GormPostgreSQL, error) {
	pg := cfg.Database.Postgres
	switch cfg.Ledger.Backend {
	case "gorm":
		s, err := persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		return s, s, err
	case "postgres":
		s, err := persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		return s, nil, err
	case "sqlite":
		s, err := persistence.NewSQLite(cfg.Ledger.Path)
		return s, nil, err
	case "xml":
		s, err := persistence.NewXMLStore(cfg.Ledger.Path)
		return s, nil, err
	default:
		return persistence.NopStore{}, nil, nil
	}
}

// seedRounds fills an empty rounds table from the catalog file.
func seedRounds(store *persistence.GormPostgreSQL, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rounds, err := catalog.NewFileCatalog(path).LoadRounds(ctx)
	if err != nil {
		logger.Log.Warnf("Not seeding rounds from %s: %v", path, err)
		return
	}
	n, err := store.SeedRounds(ctx, rounds)
	if err != nil {
		logger.Log.Fatalf("Seeding rounds failed: %v", err)
	}
	if n > 0 {
		logger.Log.Infof("Seeded %d rounds from %s", n, path)
	}
}
