package main

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/androidpublisher/v3"

	"github.com/code-payments/flipchat-billing/billing"
	"github.com/code-payments/flipchat-billing/billing/cache"
	"github.com/code-payments/flipchat-billing/billing/memory"
	"github.com/code-payments/flipchat-billing/billing/play"
	"github.com/code-payments/flipchat-billing/billing/signature"
	"github.com/code-payments/flipchat-billing/flags"
	"github.com/code-payments/flipchat-billing/httpapi"
	"github.com/code-payments/flipchat-billing/session"
)

type config struct {
	httpAddr           string
	catalogFile        string
	productCacheTTL    time.Duration
	playPackageName    string
	serviceAccountJSON string
	licenseKey         string
	autoComplete       bool
}

func loadConfig() (*config, error) {
	cfg := &config{
		httpAddr:           ":8080",
		catalogFile:        os.Getenv("BILLING_CATALOG_FILE"),
		productCacheTTL:    flags.DefaultProductCacheTTL,
		playPackageName:    os.Getenv("PLAY_PACKAGE_NAME"),
		serviceAccountJSON: os.Getenv("PLAY_SERVICE_ACCOUNT_JSON"),
		licenseKey:         os.Getenv("PLAY_LICENSE_KEY"),
		autoComplete:       true,
	}

	if addr := os.Getenv("BILLING_HTTP_ADDR"); addr != "" {
		cfg.httpAddr = addr
	}
	if ttl := os.Getenv("BILLING_PRODUCT_CACHE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, errors.Wrap(err, "invalid BILLING_PRODUCT_CACHE_TTL")
		}
		cfg.productCacheTTL = d
	}
	if v := os.Getenv("BILLING_AUTO_COMPLETE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid BILLING_AUTO_COMPLETE")
		}
		cfg.autoComplete = b
	}
	return cfg, nil
}

func main() {
	log := zap.Must(zap.NewDevelopment())
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded", zap.Error(err))
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	if err := run(log, cfg); err != nil {
		log.Fatal("Failed to run", zap.Error(err))
	}
}

func run(log *zap.Logger, cfg *config) error {
	ctx := context.Background()

	var svc *androidpublisher.Service
	if cfg.serviceAccountJSON != "" {
		if cfg.playPackageName == "" {
			return errors.New("PLAY_PACKAGE_NAME is required with PLAY_SERVICE_ACCOUNT_JSON")
		}

		credentials, err := os.ReadFile(cfg.serviceAccountJSON)
		if err != nil {
			return errors.Wrap(err, "error reading service account")
		}
		svc, err = play.NewService(ctx, credentials)
		if err != nil {
			return err
		}
	}

	catalog, err := loadCatalog(cfg, svc)
	if err != nil {
		return err
	}

	clientOpts := []memory.Option{
		memory.WithLogger(log.Named("billing")),
		memory.WithCatalog(catalog),
	}
	if cfg.playPackageName != "" {
		clientOpts = append(clientOpts, memory.WithPackageName(cfg.playPackageName))
	}
	if cfg.autoComplete {
		clientOpts = append(clientOpts, memory.WithAutoComplete())
	}

	verifier, signer, err := loadVerifier(log, cfg, svc)
	if err != nil {
		return err
	}
	if signer != nil {
		clientOpts = append(clientOpts, memory.WithSigner(signer))
	}

	client := cache.NewClient(memory.NewClient(clientOpts...), cfg.productCacheTTL)
	defer client.Close()

	manager := session.New(
		client,
		session.WithLogger(log.Named("session")),
		session.WithVerifier(verifier),
	)
	defer manager.Shutdown()

	server := httpapi.NewServer(log.Named("http"), manager, flags.DefaultWaitTimeout)

	if err := manager.Connect(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.httpAddr,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: flags.DefaultWaitTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.httpAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return errors.Wrap(err, "error serving http")
	}

	log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadCatalog(cfg *config, svc *androidpublisher.Service) (memory.Catalog, error) {
	if cfg.catalogFile != "" {
		f, err := os.Open(cfg.catalogFile)
		if err != nil {
			return nil, errors.Wrap(err, "error opening catalog")
		}
		defer f.Close()

		return memory.LoadCatalog(f)
	}

	if svc != nil {
		return play.NewCatalog(svc, cfg.playPackageName, "en-US"), nil
	}

	return nil, errors.New("either BILLING_CATALOG_FILE or PLAY_SERVICE_ACCOUNT_JSON is required")
}

// loadVerifier picks the purchase verifiers from config. Without any vendor
// credentials the simulated client signs purchases with a fresh key, which is
// returned as the signer.
func loadVerifier(log *zap.Logger, cfg *config, svc *androidpublisher.Service) (billing.Verifier, ed25519.PrivateKey, error) {
	var chain billing.Chain

	if cfg.licenseKey != "" {
		v, err := signature.NewVerifier(cfg.licenseKey)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, v)
	}
	if svc != nil {
		chain = append(chain, play.NewVerifier(log.Named("play"), svc, cfg.playPackageName))
	}
	if len(chain) > 0 {
		return chain, nil, nil
	}

	pub, priv, err := memory.GenerateKeyPair()
	if err != nil {
		return nil, nil, errors.Wrap(err, "error generating signing key")
	}
	verifier, err := memory.NewVerifier(pub)
	if err != nil {
		return nil, nil, err
	}
	return verifier, priv, nil
}
