package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/config"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/discount"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/gateway"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/handlers"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/invoice"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/payment"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/store/postgres"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/subscription"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/webhook"
	"github.com/wlker-mk/ai-elearning-platform-backend-sub000/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet.
		panic(err)
	}

	var log *zap.Logger
	if cfg.IsProduction() {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("service exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = postgres.EnsureSchema(ctx, db)
	cancel()
	if err != nil {
		return err
	}

	paymentStore := postgres.NewPaymentStore(db)
	txStore := postgres.NewTransactionStore(db)
	subscriptionStore := postgres.NewSubscriptionStore(db)
	discountStore := postgres.NewDiscountStore(db)
	invoiceStore := postgres.NewInvoiceStore(db)

	card := gateway.NewCardGateway(cfg.StripeSecretKey, log)
	wallet := gateway.NewWalletGateway(cfg.WalletBaseURL, cfg.WalletClientID, cfg.WalletClientSecret, log)

	factory := gateway.NewFactory()
	factory.Register(gateway.MethodCreditCard, card)
	factory.Register(gateway.MethodDebitCard, card)
	factory.Register(gateway.MethodCard, card)
	factory.Register(gateway.MethodApplePay, card)
	factory.Register(gateway.MethodGooglePay, card)
	factory.Register(gateway.MethodWallet, wallet)
	factory.Register(gateway.MethodPayPal, wallet)
	factory.Register(gateway.MethodMobileMoney, wallet)

	payments := payment.NewLedger(paymentStore, txStore, factory, log)
	subscriptions := subscription.NewManager(subscriptionStore, log)
	discounts := discount.NewLedger(discountStore, log)
	invoices := invoice.NewManager(invoiceStore, log)

	reconciler := webhook.NewReconciler(payments, subscriptions, invoices, log)
	cardHook := webhook.NewCardProcessor(cfg.StripeWebhookSecret, log)
	walletHook := webhook.NewWalletProcessor(cfg.WalletWebhookSecret, log)

	maintenance := worker.NewMaintenance(payments, subscriptions, invoices, nil, log)
	runner, err := worker.NewRunner(maintenance, worker.DefaultSchedule(), log)
	if err != nil {
		return err
	}
	runner.Start()
	defer runner.Stop()

	server := handlers.NewServer(payments, subscriptions, discounts, invoices,
		reconciler, cardHook, walletHook, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("payments service listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
