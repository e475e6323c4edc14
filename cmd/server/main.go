package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/turf-slot-booking/internal/config"
	"github.com/iliyamo/turf-slot-booking/internal/database"
	"github.com/iliyamo/turf-slot-booking/internal/handler"
	"github.com/iliyamo/turf-slot-booking/internal/middleware"
	"github.com/iliyamo/turf-slot-booking/internal/model"
	"github.com/iliyamo/turf-slot-booking/internal/obs"
	"github.com/iliyamo/turf-slot-booking/internal/queue"
	"github.com/iliyamo/turf-slot-booking/internal/realtime"
	"github.com/iliyamo/turf-slot-booking/internal/repository"
	"github.com/iliyamo/turf-slot-booking/internal/repository/memory"
	"github.com/iliyamo/turf-slot-booking/internal/router"
	"github.com/iliyamo/turf-slot-booking/internal/service"
	"github.com/iliyamo/turf-slot-booking/internal/utils"
)

const (
	serviceName    = "turf-api"
	devTokenTTL    = 24 * time.Hour
	shutdownPeriod = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	shutdownTracer, err := obs.InitTracer(cfg.OTLPEndpoint, serviceName, cfg.Env)
	if err != nil {
		log.Printf("otel: tracing disabled: %v", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	deps := map[string]handler.Pinger{}
	store, closeStore := openStore(cfg, deps)
	defer closeStore()

	// Redis backs the change feed, the rate limiter and the cache; without
	// it the feed stays in-process and the other two are disabled.
	rdb := config.NewRedisClient(cfg.Redis)
	var feed service.ChangeFeed
	if rdb != nil {
		defer rdb.Close()
		feed = realtime.NewRedisFeed(rdb)
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		log.Printf("redis: unavailable, using in-process change feed")
		feed = realtime.NewLocalFeed()
	}

	var dispatcher service.Dispatcher = queue.LogDispatcher{}
	if pub, err := queue.NewPublisher(cfg.RabbitURL, cfg.NotifyExchange); err != nil {
		log.Printf("rabbitmq: unavailable, owner notifications go to the log: %v", err)
	} else {
		defer pub.Close()
		dispatcher = pub
	}

	svcCfg := service.Config{HoldTTL: cfg.HoldTTL, CancelLeadTime: cfg.CancelLeadTime, Location: cfg.Location()}
	slots := service.NewAvailabilityService(store, svcCfg, time.Now)
	holds := service.NewHoldManager(store, feed, svcCfg, time.Now)
	bookings := service.NewBookingService(store, feed, holds, dispatcher, utils.NewTicketSigner(cfg.TicketSecret), svcCfg, time.Now)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.HoldSweepInterval > 0 {
		go holds.RunSweeper(ctx, cfg.HoldSweepInterval)
	}

	e := newServer(cfg, rdb, deps, slots, holds, bookings, feed)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreDriver)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	bookings.Drain()
	if err := shutdownTracer(sctx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
}

func newServer(cfg config.Config, rdb *redis.Client, deps map[string]handler.Pinger,
	slots *service.AvailabilityService, holds *service.HoldManager, bookings *service.BookingService, feed service.ChangeFeed) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(obs.Middleware(serviceName))

	limiter := middleware.NewTokenBucket(cfg.RateLimit, rdb)
	cache := middleware.NewRedisCache(cfg.Cache, rdb)
	bookingHandler := handler.NewBookingHandler(bookings)

	router.RegisterRoutes(e, deps)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg.JWTSecret, devTokenTTL), cfg.JWTSecret, cfg.Env == "dev")
	router.RegisterPublic(e, handler.NewTurfHandler(slots, feed), bookingHandler, cfg.JWTSecret, limiter, cache)
	router.RegisterCustomer(e, handler.NewHoldHandler(holds, time.Now), bookingHandler, cfg.JWTSecret, limiter)
	return e
}

// openStore connects the configured store.  The memory driver is seeded
// with a demo turf so the API can be exercised without a database.
func openStore(cfg config.Config, deps map[string]handler.Pinger) (service.Store, func()) {
	if cfg.StoreDriver == "memory" {
		st := memory.New(time.Now)
		seedDemo(st)
		log.Printf("store: in-memory (demo turf %q)", demoTurfID)
		return st, func() {}
	}
	db, err := database.Open(cfg.StoreDriver, cfg.DB)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	deps["db"] = db
	return repository.New(db), func() { db.Close() }
}

const demoTurfID = "demo-turf"

func seedDemo(st *memory.Store) {
	price2h := decimal.NewFromInt(1800)
	peak := decimal.NewFromInt(1500)
	st.AddTurf(model.Turf{
		ID: demoTurfID, OwnerID: "demo-owner", Name: "Demo Five-a-side", IsPublic: true,
		OpenTime: "06:00", CloseTime: "00:00",
		BasePrice: decimal.NewFromInt(1000), Price2h: &price2h, PeakHourPrice: &peak,
		CreatedAt: time.Now().UTC(),
	})
	st.AddFirstBookingOffer(model.FirstBookingOffer{
		ID: "demo-first", OwnerID: "demo-owner", BookingNumber: 1,
		DiscountType: model.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
		IsActive: true, Revenue: decimal.Zero, CreatedAt: time.Now().UTC(),
	})
	st.AddPromoCode(model.PromoCode{
		ID: "demo-save50", OwnerID: "demo-owner", Code: "SAVE50",
		DiscountType: model.DiscountFixed, DiscountValue: decimal.NewFromInt(50),
		MinAmount: decimal.NewFromInt(500), IsActive: true, CreatedAt: time.Now().UTC(),
	})
}
