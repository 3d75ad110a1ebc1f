package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chatcommerce/internal/catalog"
	"chatcommerce/internal/config"
	"chatcommerce/internal/conversation"
	"chatcommerce/internal/db"
	"chatcommerce/internal/httpserver"
	"chatcommerce/internal/kv"
	"chatcommerce/internal/lock"
	"chatcommerce/internal/payment"
	cartrepo "chatcommerce/internal/repository/cart"
	discountrepo "chatcommerce/internal/repository/discount"
	orderrepo "chatcommerce/internal/repository/order"
	reminderrepo "chatcommerce/internal/repository/reminder"
	staterepo "chatcommerce/internal/repository/state"
	cartsvc "chatcommerce/internal/service/cart"
	discountsvc "chatcommerce/internal/service/discount"
	ordersvc "chatcommerce/internal/service/order"
	remindersvc "chatcommerce/internal/service/reminder"
	"chatcommerce/internal/telemetry"
	"chatcommerce/internal/whatsapp"
)

func main() {
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("load .env: %v", err)
	}
	cfg := config.FromEnv()

	loc, err := cfg.Location()
	if err != nil {
		logger.Printf("unknown timezone %q, using UTC: %v", cfg.Timezone, err)
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, "chatcommerce", cfg.OTelExporter, os.Stdout)
	if err != nil {
		logger.Fatalf("init tracing: %v", err)
	}

	directory, err := catalog.Load(cfg.BrandFile)
	if err != nil {
		logger.Fatalf("load brand file: %v", err)
	}
	if cfg.CatalogCSV != "" {
		if err := importCSV(directory, cfg.CatalogCSV); err != nil {
			logger.Fatalf("import catalog csv: %v", err)
		}
	}
	logger.Printf("loaded brand %s: %d branches, %d products", directory.Name, len(directory.Branches()), len(directory.Products()))

	store, closeStore, err := kv.Open(ctx, kv.Options{
		Driver:   cfg.KVDriver,
		RedisURL: cfg.RedisURL,
		DSN:      cfg.DBConnString,
		Pool:     db.Options{MaxConns: int32(cfg.DBMaxConns)},
	})
	if err != nil {
		logger.Fatalf("open kv store: %v", err)
	}
	defer closeStore()

	keys := kv.Keys{Brand: cfg.BrandID}
	stateRepo := staterepo.NewStore(store, keys)
	cartRepo := cartrepo.NewStore(store, keys)
	orderRepo := orderrepo.NewStore(store, keys)
	reminderRepo := reminderrepo.NewStore(store, keys)
	discountRepo := discountrepo.NewStore(store, keys)

	var sender whatsapp.Sender = whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken)
	sender = whatsapp.NewRetrying(sender, uint(cfg.NotifyMaxAttempts), logger)
	gateway := payment.NewClient(cfg.RazorpayAPIURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayCallbackURL)

	locks := lock.NewKeyed()
	cartService := cartsvc.New(cartRepo, directory, logger)
	discountService := discountsvc.New(discountRepo, logger)
	orderService := ordersvc.New(ordersvc.Deps{
		Orders:    orderRepo,
		Carts:     cartService,
		States:    stateRepo,
		Discounts: discountService,
		Reminders: reminderRepo,
		Directory: directory,
		Messenger: sender,
		Payments:  gateway,
		Locks:     locks,
		Logger:    logger,
	}, ordersvc.Config{
		DeliveryRadiusKm: directory.DeliveryRadiusKm,
		ReminderDelay:    cfg.ReminderDelay,
		Location:         loc,
		Brand:            directory.Name,
	})

	var thumbnail string
	if products := directory.Products(); len(products) > 0 {
		thumbnail = products[0].ID
	}
	router := conversation.New(conversation.Deps{
		States:    stateRepo,
		Carts:     cartService,
		Orders:    orderService,
		Discounts: discountService,
		Directory: directory,
		Sender:    sender,
		Locks:     locks,
		Logger:    logger,
	}, conversation.Config{
		Greeting:           directory.Greeting,
		CatalogThumbnailID: thumbnail,
		BulkOrderContact:   directory.BulkOrderContact,
		DeliveryRadiusKm:   directory.DeliveryRadiusKm,
		StaffNumbers:       cfg.StaffNumbers,
		AdminNumbers:       cfg.AdminNumbers,
	})

	sweeper := remindersvc.New(reminderRepo, orderRepo, store, logger, remindersvc.Config{
		Interval:  cfg.SweepInterval,
		DailyTime: cfg.DailyReminderTime,
		Location:  loc,
	})
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(sweepCtx)
	}()

	srv := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Store:     store,
		Events:    router,
		Orders:    orderService,
		Discounts: discountService,
	}, httpserver.Config{
		VerifyToken:          cfg.WhatsAppVerifyToken,
		PaymentWebhookSecret: cfg.RazorpayWebhookSecret,
		AdminAPIKey:          cfg.AdminAPIKey,
		CORSOrigins:          cfg.CORSOrigins,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}

	stopSweeper()
	<-sweepDone

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("flush traces: %v", err)
	}
}

func importCSV(directory *catalog.Directory, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	products, err := catalog.ImportProductsCSV(f)
	if err != nil {
		return err
	}
	directory.AddProducts(products...)
	return nil
}
