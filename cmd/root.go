package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamal-hamza/tagbox/internal/adapters/blob"
	"github.com/kamal-hamza/tagbox/internal/adapters/fetcher"
	"github.com/kamal-hamza/tagbox/internal/adapters/repository"
	"github.com/kamal-hamza/tagbox/internal/adapters/source"
	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/internal/core/services"
	"github.com/kamal-hamza/tagbox/internal/logging"
	"github.com/kamal-hamza/tagbox/pkg/config"
	"github.com/kamal-hamza/tagbox/pkg/ui"
	"github.com/kamal-hamza/tagbox/pkg/vault"
)

var (
	// Global vault and config instances
	appVault  *vault.Vault
	appConfig *config.Config
	appLog    logging.Logger
	appDB     *sql.DB
	appCtx    = context.Background()

	// Repositories
	sessionRepo  *repository.FileSessionRepository
	categoryRepo *repository.CategoryRepository
	contentRepo  *repository.ContentRepository
	quotaRepo    *repository.QuotaRepository
	attemptRepo  *repository.AttemptRepository

	// Adapters
	shareStore   *source.ShareIntentStore
	sideChannel  *source.FileSideChannel
	blobStore    ports.BlobStore
	imageFetcher *fetcher.HTTPFetcher

	// Services
	materializer  *services.Materializer
	manualService *services.ManualSaveService
)

// commands that run without an initialized vault
var skipInit = map[string]bool{
	"init":       true,
	"version":    true,
	"help":       true,
	"completion": true,
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tagbox",
	Short: "tagbox - save shared links and screenshots into your library",
	Long: ui.StyleTitle.Render("tagbox") + " - shared-content inbox\n\n" +
		"Stage links, text and screenshots the way a share sheet would, then let\n" +
		"tagbox decide where they belong. Anything it cannot place on its own\n" +
		"opens a short form instead.",
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  initializeApp,
	PersistentPostRunE: closeApp,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	appCtx = ctx

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.FormatError(err.Error()))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// initializeApp wires configuration, storage and services
func initializeApp(cmd *cobra.Command, args []string) error {
	if skipInit[cmd.Name()] {
		return nil
	}

	v, err := vault.New()
	if err != nil {
		return fmt.Errorf("failed to initialize vault: %w", err)
	}
	appVault = v

	if !appVault.Exists() {
		fmt.Println(ui.FormatError("Library not initialized"))
		fmt.Println(ui.FormatInfo("Run 'tagbox init' to create it"))
		os.Exit(1)
	}

	if err := config.LoadEnv(appVault.EnvPath()); err != nil {
		return err
	}
	cfg, err := config.Load(appVault.ConfigPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	appConfig = cfg
	ui.SetTheme(cfg.ColorTheme)

	appLog = logging.New(os.Stderr, cfg.LogLevel)
	domain.DevMode = cfg.DevMode

	db, err := repository.OpenDB(appVault.DatabasePath())
	if err != nil {
		return err
	}
	appDB = db

	blobStore, err = blob.New(getContext(), cfg, appVault)
	if err != nil {
		return err
	}

	// Repositories
	sessionRepo = repository.NewFileSessionRepository(appVault.SessionPath())
	categoryRepo = repository.NewCategoryRepository(db)
	quotaRepo = repository.NewQuotaRepository(db, cfg.Plan.MaxScreenshots, cfg.MaxStorageBytes())
	contentRepo = repository.NewContentRepository(db, blobStore, quotaRepo)
	attemptRepo = repository.NewAttemptRepository(db)

	// Adapters
	shareStore = source.NewShareIntentStore(appVault)
	sideChannel = source.NewFileSideChannel(appVault.SharePath)
	imageFetcher = fetcher.NewHTTPFetcher(nil, fetcher.Config{
		Timeout:          time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxBytes:         int64(cfg.Fetch.MaxBytesMB) * 1024 * 1024,
		FailureThreshold: uint32(cfg.Fetch.BreakerFailures),
		Cooldown:         time.Duration(cfg.Fetch.BreakerCooldownS) * time.Second,
	}, appLog)

	// Services
	compressor := services.NewCompressor(services.CompressionOptions{
		MaxBytes:     cfg.MaxUploadBytes(),
		MinQuality:   cfg.Compression.MinQuality,
		QualityStep:  cfg.Compression.QualityStep,
		MinDimension: cfg.Compression.MinDimension,
		MaxPixels:    int64(cfg.Compression.MaxMegapixels) * 1_000_000,
	}, appLog)
	materializer = services.NewMaterializer(sideChannel, imageFetcher, compressor, appLog)
	materializer.SetMaxBase64Size(cfg.MaxShareBase64Bytes())
	manualService = services.NewManualSaveService(pipelineDeps())

	return nil
}

// pipelineDeps assembles the ingestion collaborators. extra sources join the
// share-intent store, e.g. the clipboard or a query hand-off.
func pipelineDeps(extra ...ports.PayloadSource) services.IngestorDeps {
	sources := append([]ports.PayloadSource{shareStore}, extra...)
	return services.IngestorDeps{
		Sources:      services.NewSourceChain(appLog, sources...),
		SideChannel:  sideChannel,
		Materializer: materializer,
		Session:      sessionRepo,
		Categories:   categoryRepo,
		Preferences:  categoryRepo,
		Content:      contentRepo,
		Quota:        quotaRepo,
		Attempts:     attemptRepo,
		Log:          appLog,
	}
}

func closeApp(cmd *cobra.Command, args []string) error {
	if appDB != nil {
		return appDB.Close()
	}
	return nil
}

// getContext returns a context for operations, cancelled on Ctrl+C
func getContext() context.Context {
	return appCtx
}

// requireUser returns the signed-in user or a hint to log in
func requireUser(ctx context.Context) (*domain.User, error) {
	user, err := sessionRepo.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("not signed in, run 'tagbox login <name>' first")
	}
	return user, nil
}
