package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	ddEcho "gopkg.in/DataDog/dd-trace-go.v1/contrib/labstack/echo.v4"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/memopay/invoicehub/ledger"
	"github.com/memopay/invoicehub/lib"
	"github.com/memopay/invoicehub/lib/service"
	"github.com/memopay/invoicehub/lib/transport"
	"github.com/memopay/invoicehub/registry"
)

func main() {
	c := &service.Config{}

	// Load configuration from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configured log file
	logger := lib.Logger(c.LogFilePath)

	// Setup exception tracking with Sentry if configured
	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			IgnoreErrors:     []string{"401"},
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
	}

	// Init the ledger RPC client and the registry client on top of it
	ledgerClient := ledger.NewRPCClient(c.LedgerRPCUrl, c.TokenAddress, logger)
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	head, err := ledgerClient.BlockNumber(startupCtx)
	startupCancel()
	if err != nil {
		logger.Fatalf("Error connecting to ledger rpc at %s: %v", c.LedgerRPCUrl, err)
	}
	logger.Infof("Connected to ledger rpc at %s, chain head %d", c.LedgerRPCUrl, head)

	registryClient := registry.NewClient(
		ledgerClient,
		c.RegistryAddress,
		c.OwnerAddress,
		time.Duration(c.ConfirmationTimeout)*time.Second,
		logger,
	)

	svc := &service.InvoicehubService{
		Config:        c,
		Ledger:        ledgerClient,
		Registry:      registryClient,
		Logger:        logger,
		Projection:    service.NewProjection(),
		InvoicePubSub: service.NewPubsub(),
	}

	// init echo server
	e := transport.InitEcho(c, logger)
	// if Datadog is configured, add datadog middleware
	if c.DatadogAgentUrl != "" {
		tracer.Start(tracer.WithAgentAddr(c.DatadogAgentUrl))
		defer tracer.Stop()
		e.Use(ddEcho.Middleware(ddEcho.WithServiceName("invoicehub")))
	}

	logMw := transport.CreateLoggingMiddleware(logger)
	// strict rate limit for mutating requests
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)
	adminMw := transport.AdminTokenMiddleware(c.AdminToken)

	transport.RegisterEndpoints(svc, e, strictRateLimitMiddleware, adminMw, logMw)

	var backgroundWg sync.WaitGroup
	backGroundCtx, _ := signal.NotifyContext(context.Background(), os.Interrupt)

	// Subscribe to transfer events in the background
	backgroundWg.Add(1)
	go func() {
		err = svc.StartTransferRoutine(backGroundCtx)
		if err != nil {
			sentry.CaptureException(err)
			// we want to restart in case of an error here
			svc.Logger.Fatal(err)
		}
		svc.Logger.Info("Transfer routine done")
		backgroundWg.Done()
	}()

	// Rebuild the projection and catch up on missed settlements
	backgroundWg.Add(1)
	go func() {
		err = svc.StartBackfillRoutine(backGroundCtx)
		if err != nil {
			sentry.CaptureException(err)
			// in case of an error here no restart is necessary
			svc.Logger.Error(err)
		}
		svc.Logger.Info("Backfill routine done")
		backgroundWg.Done()
	}()

	// Start webhook subscription
	if svc.Config.WebhookUrl != "" {
		backgroundWg.Add(1)
		go func() {
			svc.StartWebhookSubscription(backGroundCtx)
			svc.Logger.Info("Webhook routine done")
			backgroundWg.Done()
		}()
	}

	// Start rabbit publisher
	if svc.Config.RabbitMQUri != "" {
		backgroundWg.Add(1)
		go func() {
			err = svc.StartRabbitMqPublisher(backGroundCtx)
			if err != nil {
				svc.Logger.Error(err)
				sentry.CaptureException(err)
			}
			svc.Logger.Info("Rabbit invoice publisher done")
			backgroundWg.Done()
		}()
	}

	// Start Prometheus server if necessary
	if svc.Config.EnablePrometheus {
		go transport.StartPrometheusEcho(logger, svc, e)
	}

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backGroundCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
	// Wait for graceful shutdown of background routines
	backgroundWg.Wait()
	svc.Logger.Info("Invoicehub exiting gracefully. Goodbye.")
}
