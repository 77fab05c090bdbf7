package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"
	"github.com/joho/godotenv"

	"github.com/appetiteclub/storefront/services/storefront/internal/admin"
	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/cart"
	"github.com/appetiteclub/storefront/services/storefront/internal/catalog"
	"github.com/appetiteclub/storefront/services/storefront/internal/checkout"
	"github.com/appetiteclub/storefront/services/storefront/internal/notice"
	"github.com/appetiteclub/storefront/services/storefront/internal/realtime"
	"github.com/appetiteclub/storefront/services/storefront/internal/session"
	"github.com/appetiteclub/storefront/services/storefront/internal/storage"
	"github.com/appetiteclub/storefront/services/storefront/internal/storefront"
	"github.com/appetiteclub/storefront/services/storefront/internal/tracking"
	"github.com/appetiteclub/storefront/services/storefront/internal/ui"
)

const (
	appNamespace = "STOREFRONT"
	appName      = "storefront"
	appVersion   = "0.1.0"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := aqm.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	backend, err := storage.FromProperties(ctx, config, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot start client state storage: %v", appName, appVersion, err)
	}
	logger.Info("client state storage ready", "backend", backend.Name)
	store := backend.Store

	apiClient, err := api.NewClient(config, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot create api client: %v", appName, appVersion, err)
	}

	categories := api.NewCategories(apiClient)
	menuItems := api.NewMenuItems(apiClient)
	coupons := api.NewCoupons(apiClient)
	orders := api.NewOrders(apiClient)
	payments := api.NewPayments(apiClient)

	notices := notice.NewFeed()

	sess := session.New(store, api.NewAuth(apiClient), notices, logger)
	apiClient.SetCredentials(sess)

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")
	attempts, err := strconv.Atoi(config.GetStringOrDef("realtime.reconnect.attempts", strconv.Itoa(realtime.DefaultAttempts)))
	if err != nil {
		log.Fatalf("%s(%s) invalid realtime.reconnect.attempts: %v", appName, appVersion, err)
	}
	channel := realtime.NewChannel(realtime.Options{
		Prefix:   config.GetStringOrDef("realtime.prefix", "dessy"),
		Attempts: attempts,
		Dial:     realtime.NATSDialer(natsURL, appName, attempts, realtime.DefaultTimeout),
		Logger:   logger,
	})

	ttl, err := time.ParseDuration(config.GetStringOrDef("catalog.ttl", catalog.DefaultTTL.String()))
	if err != nil {
		log.Fatalf("%s(%s) invalid catalog.ttl: %v", appName, appVersion, err)
	}
	catalogCache := catalog.NewCache(categories, menuItems, ttl, logger)

	shopCart := cart.New(store, notices, logger)
	uiStore := ui.NewStore(store, func(theme ui.Theme) {
		logger.Debug("theme applied", "theme", theme)
	}, logger)

	for name, load := range map[string]func(context.Context) error{
		"cart":    shopCart.Load,
		"ui":      uiStore.Load,
		"session": sess.Load,
	} {
		if err := load(ctx); err != nil {
			logger.Error("cannot restore client state", "state", name, "error", err)
		}
	}

	widget := checkout.NewHostedWidget()
	orchestrator := checkout.New(checkout.Deps{
		Cart:     shopCart,
		UI:       uiStore,
		Coupons:  coupons,
		Orders:   orders,
		Payments: payments,
		Notices:  notices,
	}, checkout.Merchant{
		Key:         config.GetStringOrDef("payment.key", ""),
		Name:        config.GetStringOrDef("payment.merchant.name", ""),
		Description: config.GetStringOrDef("payment.merchant.description", ""),
	}, logger)

	registry := tracking.NewRegistry(channel, orders, logger)

	granted := config.GetStringOrDef("admin.notifications.granted", "false") == "true"
	aggregator := admin.NewAggregator(channel, admin.LogNotifier{Logger: logger}, granted, logger)
	dashboard := admin.NewDashboard(orders, notices, logger)
	aggregator.OnRefresh(dashboard.Invalidate)

	sess.OnSignOut(func(ctx context.Context) {
		if err := aggregator.Stop(ctx); err != nil {
			logger.Error("cannot leave admin room", "error", err)
		}
		dashboard.Invalidate()
	})

	hd := storefront.HandlerDeps{
		Catalog:  catalogCache,
		Cart:     shopCart,
		UI:       uiStore,
		Session:  sess,
		Notices:  notices,
		Checkout: orchestrator,
		Widget:   widget,
		Tracking: registry,
		Admin: storefront.AdminDeps{
			Aggregator: aggregator,
			Dashboard:  dashboard,
			Orders:     orders,
			Categories: categories,
			MenuItems:  menuItems,
			Coupons:    coupons,
		},
	}

	handler := storefront.NewHandler(hd, config, logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger: logger,
	})

	catalogLifecycle := aqm.LifecycleHooks{
		OnStart: func(context.Context) error {
			catalogCache.Watch(channel)
			return nil
		},
		OnStop: func(context.Context) error {
			catalogCache.Unwatch(channel)
			return nil
		},
	}

	adminLifecycle := aqm.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			if !sess.IsAdmin() {
				return nil
			}
			// Joining waits for the broker, so a restored admin session
			// does not hold up startup.
			go func() {
				if err := aggregator.Start(ctx); err != nil {
					logger.Error("cannot join admin room", "error", err)
				}
			}()
			return nil
		},
		OnStop: aggregator.Stop,
	}

	lifecycles := []interface{}{
		aqm.LifecycleHooks{OnStop: backend.Stop},
		channel,
		catalogLifecycle,
		adminLifecycle,
		aqm.LifecycleHooks{OnStop: registry.Stop},
	}

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	err = ms.Run(ctx)
	if err != nil {
		_ = backend.Stop(context.Background())
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
