package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"chatcommerce/internal/catalog"
	"chatcommerce/internal/config"
	"chatcommerce/internal/db"
	"chatcommerce/internal/kv"
	"chatcommerce/internal/payment"
	cartrepo "chatcommerce/internal/repository/cart"
	discountrepo "chatcommerce/internal/repository/discount"
	orderrepo "chatcommerce/internal/repository/order"
	reminderrepo "chatcommerce/internal/repository/reminder"
	staterepo "chatcommerce/internal/repository/state"
	cartsvc "chatcommerce/internal/service/cart"
	discountsvc "chatcommerce/internal/service/discount"
	ordersvc "chatcommerce/internal/service/order"
	"chatcommerce/internal/whatsapp"
)

var logger = log.New(os.Stderr, "[storectl] ", log.LstdFlags|log.LUTC|log.Lshortfile)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("load .env: %v", err)
	}

	rootCmd := &cobra.Command{
		Use:          "storectl",
		Short:        "Operate the order engine's store: discounts, orders and catalog",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(discountCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(catalogCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// services holds the handles a subcommand needs; close releases the store.
type services struct {
	discounts *discountsvc.Service
	orders    *ordersvc.Service
	close     func()
}

func openServices(ctx context.Context) (*services, error) {
	cfg := config.FromEnv()
	store, closeStore, err := kv.Open(ctx, kv.Options{
		Driver:   cfg.KVDriver,
		RedisURL: cfg.RedisURL,
		DSN:      cfg.DBConnString,
		Pool:     db.Options{ApplicationName: "storectl", MaxConns: 2},
	})
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	if cfg.KVDriver == "" || cfg.KVDriver == "memory" {
		logger.Printf("KV_DRIVER is memory; changes will not outlive this process")
	}

	directory, err := catalog.Load(cfg.BrandFile)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("load brand file: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Printf("unknown timezone %q, using UTC", cfg.Timezone)
	}

	keys := kv.Keys{Brand: cfg.BrandID}
	discounts := discountsvc.New(discountrepo.NewStore(store, keys), logger)
	carts := cartsvc.New(cartrepo.NewStore(store, keys), directory, logger)
	sender := whatsapp.NewRetrying(
		whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken),
		uint(cfg.NotifyMaxAttempts), logger)

	orders := ordersvc.New(ordersvc.Deps{
		Orders:    orderrepo.NewStore(store, keys),
		Carts:     carts,
		States:    staterepo.NewStore(store, keys),
		Discounts: discounts,
		Reminders: reminderrepo.NewStore(store, keys),
		Directory: directory,
		Messenger: sender,
		Payments:  payment.NewClient(cfg.RazorpayAPIURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayCallbackURL),
		Logger:    logger,
	}, ordersvc.Config{
		DeliveryRadiusKm: directory.DeliveryRadiusKm,
		ReminderDelay:    cfg.ReminderDelay,
		Location:         loc,
		Brand:            directory.Name,
	})

	return &services{discounts: discounts, orders: orders, close: closeStore}, nil
}
