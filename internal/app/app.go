package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/AhmedNaeem5575/insta-story/internal/artifacts"
	"github.com/AhmedNaeem5575/insta-story/internal/browser"
	"github.com/AhmedNaeem5575/insta-story/internal/browser/browserimpl"
	"github.com/AhmedNaeem5575/insta-story/internal/fetch"
	"github.com/AhmedNaeem5575/insta-story/internal/media"
	_ "github.com/AhmedNaeem5575/insta-story/internal/migrations"
	"github.com/AhmedNaeem5575/insta-story/internal/notify"
	"github.com/AhmedNaeem5575/insta-story/internal/notify/telegramimpl"
	"github.com/AhmedNaeem5575/insta-story/internal/reconcile"
	"github.com/AhmedNaeem5575/insta-story/internal/repositories/ledger"
	"github.com/AhmedNaeem5575/insta-story/internal/scraper"
	"github.com/AhmedNaeem5575/insta-story/internal/scraper/scraperimpl"
	"github.com/AhmedNaeem5575/insta-story/internal/server"
	"github.com/AhmedNaeem5575/insta-story/internal/walker"
	"github.com/AhmedNaeem5575/insta-story/pkg/config"
	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
	),
	fx.Provide(
		fx.Annotate(
			browserimpl.New,
			fx.As(new(browser.Session)),
		),
		fx.Annotate(
			scraperimpl.New,
			fx.As(new(scraper.Client)),
		),
		fx.Annotate(
			telegramimpl.New,
			fx.As(new(notify.Notifier)),
		),
	),
	fx.Provide(
		newArtifactStore,
		newInterceptor,
		newFetcher,
		newPipeline,
		newWalker,
		newServer,
	),
	ledger.Module,
	fx.Invoke(migrate),
	fx.Invoke(run),
)

func newArtifactStore(cfg *config.Config) (*artifacts.Store, error) {
	return artifacts.NewStore(cfg.Storage.ArtifactDir)
}

func newInterceptor(log logger.Logger, session browser.Session) *media.Interceptor {
	interceptor := media.NewInterceptor(log)
	interceptor.Attach(session)
	return interceptor
}

func newFetcher(session browser.Session) fetch.Fetcher {
	return fetch.NewSessionFetcher(session)
}

func newPipeline(store *artifacts.Store, fetcher fetch.Fetcher, log logger.Logger, cfg *config.Config) *reconcile.Pipeline {
	return reconcile.New(store, fetcher, log, cfg.Storage.FfmpegPath)
}

func newWalker(session browser.Session, interceptor *media.Interceptor, pipeline *reconcile.Pipeline, log logger.Logger, cfg *config.Config) *walker.Walker {
	return walker.New(session, interceptor, pipeline, log, cfg.Browser.SettleInterval)
}

func newServer(store *artifacts.Store, log logger.Logger, scrClient scraper.Client) *server.Server {
	return server.New(store, log, scrClient.Resume)
}

// migrate applies ledger migrations when the postgres backend is selected;
// the file backend needs no schema.
func migrate(cfg *config.Config, log logger.Logger) error {
	if cfg.Storage.LedgerDriver != "postgres" {
		return nil
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	if err := goose.Up(db, filepath.Join(wd, "internal", "migrations")); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Ledger migrations applied")
	return nil
}

func run(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, srv *server.Server,
	scrClient scraper.Client, notifier notify.Notifier) {

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info(fmt.Sprintf("Starting media server on :%d", cfg.App.Port))
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("Media server failed", "error", err)
				}
			}()

			go func() {
				if err := scrClient.Login(runCtx); err != nil {
					log.Error("Instagram login error", "error", err)
					if nErr := notifier.NotifyError("Instagram login error: " + err.Error()); nErr != nil {
						log.Error("Failed to notify login error", "error", nErr)
					}
					return
				}

				if err := scrClient.ScheduleScrapes(runCtx); err != nil {
					log.Error("Failed to schedule scrapes", "error", err)
					if nErr := notifier.NotifyError("Schedule error: " + err.Error()); nErr != nil {
						log.Error("Failed to notify schedule error", "error", nErr)
					}
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return httpServer.Shutdown(ctx)
		},
	})
}
