package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/operandhq/lpr/internal/api"
	"github.com/operandhq/lpr/internal/config"
	"github.com/operandhq/lpr/internal/core"
	"github.com/operandhq/lpr/internal/enforcer"
	"github.com/operandhq/lpr/internal/issuer"
	"github.com/operandhq/lpr/internal/ledger"
	"github.com/operandhq/lpr/internal/logging"
	"github.com/operandhq/lpr/internal/obs"
	"github.com/operandhq/lpr/internal/revocation"
	"github.com/operandhq/lpr/internal/service"
	"github.com/operandhq/lpr/internal/session"
	"github.com/operandhq/lpr/internal/signer"
	"github.com/operandhq/lpr/internal/store"
	"github.com/operandhq/lpr/internal/tasks"
	"github.com/operandhq/lpr/internal/verifier"
)

var serveConfig string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the LPR server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		keys := make(map[string][]byte, len(cfg.Signing.Keys))
		for version, key := range cfg.Signing.Keys {
			keys[version] = []byte(key)
		}
		keySet, err := signer.NewKeySet(cfg.Signing.Active, keys)
		if err != nil {
			return fmt.Errorf("building key set: %w", err)
		}
		codec := signer.NewCodec(keySet)

		tokenStore := store.NewInMemoryTokenStore()

		log.Info().Str("type", cfg.Revocation.Type).Msg("initializing revocation registry")
		revoked, err := buildRevocation(cfg.Revocation)
		if err != nil {
			return fmt.Errorf("building revocation registry: %w", err)
		}

		log.Info().Str("type", cfg.RateLimit.Type).Msg("initializing rate limiter")
		limiter, memLimiter, err := buildLimiter(cfg.RateLimit)
		if err != nil {
			return fmt.Errorf("building rate limiter: %w", err)
		}

		log.Info().Str("type", cfg.Ledger.Type).Msg("opening audit ledger")
		auditLedger, err := buildLedger(cfg.Ledger)
		if err != nil {
			return fmt.Errorf("opening audit ledger: %w", err)
		}
		defer func() {
			if err := auditLedger.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close audit ledger")
			}
		}()

		directory := session.NewDirectory()
		driver := session.NewStaticDriver(directory, cfg.Sessions.Subjects, cfg.Issuance.SessionTTL)

		iss := issuer.New(codec, keySet, tokenStore, revoked, directory, auditLedger, cfg.Issuance.MaxTTL)
		ver := verifier.New(codec, tokenStore, revoked, limiter, enforcer.NewSingleFlight(), auditLedger)
		svc := service.New(iss, ver, tokenStore, revoked, auditLedger)

		obs.Init()

		manager := tasks.NewManager()
		defer manager.Stop()
		manager.Register("expire-sweep", cfg.Tasks.ExpireSweepInterval,
			func(ctx context.Context, logger logging.InternalLogger) error {
				n, err := svc.SweepExpired(ctx)
				if err != nil {
					return err
				}
				logger.Info("swept %d expired tokens", n)
				return nil
			})
		if memLimiter != nil {
			manager.Register("bucket-gc", cfg.Tasks.BucketGCInterval,
				func(ctx context.Context, logger logging.InternalLogger) error {
					n := memLimiter.RemoveIdle(time.Now().Add(-30 * time.Minute))
					logger.Info("removed %d idle rate buckets", n)
					return nil
				})
		}

		srv := api.NewServer(svc, driver, manager)
		server := &http.Server{
			Addr: cfg.ListenAddr,
			Handler: srv.Routes(api.RoutesOptions{
				AdminSigningKey: []byte(cfg.AdminSigningKey),
				IPLimitRPS:      cfg.APILimit.RPS,
				IPLimitBurst:    cfg.APILimit.Burst,
			}),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", cfg.ListenAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func buildRevocation(cfg config.BackendConfig) (core.RevocationStore, error) {
	switch cfg.Type {
	case "redis":
		rc, err := cfg.Redis()
		if err != nil {
			return nil, err
		}
		return revocation.NewRedis(redisClient(rc), 0), nil
	default:
		return revocation.NewMemory(), nil
	}
}

// buildLimiter returns the configured limiter, and the in-memory instance
// separately when there is one so the bucket-gc task can reach it.
func buildLimiter(cfg config.BackendConfig) (core.RateLimiter, *enforcer.Memory, error) {
	switch cfg.Type {
	case "redis":
		rc, err := cfg.Redis()
		if err != nil {
			return nil, nil, err
		}
		return enforcer.NewRedis(redisClient(rc)), nil, nil
	default:
		mem := enforcer.NewMemory()
		return mem, mem, nil
	}
}

func buildLedger(cfg config.LedgerConfig) (core.Ledger, error) {
	switch cfg.Type {
	case "file":
		return ledger.OpenFile(cfg.Path)
	default:
		return ledger.NewMemory(), nil
	}
}

func redisClient(rc config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "lpr.yaml", "Server configuration file")
}
