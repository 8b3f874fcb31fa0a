package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"car_intake/internal/config"
	"car_intake/internal/model"
	intake_ps "car_intake/internal/repository/postgres"
	"car_intake/internal/service/intake_sync"
	"car_intake/internal/service/sheet"
	"car_intake/internal/service/tg"
	pkg_config "car_intake/pkg/config"
	"car_intake/pkg/db"
	"car_intake/pkg/masker"
	"car_intake/pkg/tgbotapisfm"
	"car_intake/pkg/zaplogger"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "intakeBot",
	Short:         "Telegram bot for car service intake forms",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "optional .env file with configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", zaplogger.DefaultLevel, "log level: debug, info, warn, error")
	rootCmd.AddCommand(normalizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	logger, err := zaplogger.New(logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	loaded, err := pkg_config.LoadOptionalFile(envFile)
	if err != nil {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	if !loaded {
		logger.Info("env file not found, using environment variables", zap.String("path", envFile))
	}

	cfg := config.Config{}
	if err := pkg_config.LoadConfigs(&cfg); err != nil {
		return fmt.Errorf("load configs: %w", err)
	}
	if err := masker.LogConfigs(logger, &cfg); err != nil {
		return fmt.Errorf("log configs: %w", err)
	}

	dbGorm, err := db.NewGormConnection(cfg.DBConfig)
	if err != nil {
		return fmt.Errorf("create gorm connection: %w", err)
	}
	if err := dbGorm.AutoMigrate(&model.Intake{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	intakeRepo := intake_ps.NewIntakeRepository(dbGorm)

	sheetService, err := sheet.NewSheetService(
		cfg.GoogleSheetConfig.CredentialsBase64,
		cfg.GoogleSheetConfig.SheetID,
		cfg.GoogleSheetConfig.ClientListID,
		cfg.GoogleSheetConfig.PauseMs,
		sheet.CreateColumnMapFromOrder(cfg.GoogleSheetConfig.Columns),
	)
	if err != nil {
		return fmt.Errorf("create sheet service: %w", err)
	}

	forceUpdate := make(chan struct{}, 1)
	worker, err := intake_sync.NewWorker(sheetService, intakeRepo, logger, cfg.IntakeConfig.SyncSchedule, forceUpdate)
	if err != nil {
		return err
	}

	tgHandler := tg.NewTGHandler(nil, forceUpdate, intakeRepo,
		cfg.IntakeConfig.Branches, cfg.TelegramConfig.Admins, cfg.TelegramConfig.SessionTTL, logger)

	bot, err := tgbotapisfm.NewBot(tgbotapisfm.Config{
		Token:           cfg.TelegramConfig.BotToken,
		Expiration:      cfg.TelegramConfig.SessionTTL,
		CleanupInterval: time.Hour,
		States:          tgHandler.StatesMap(),
	}, nil, logger)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	tgHandler.SetBot(bot)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error {
		// Бот завершился сам: останавливаем и воркер
		defer stop()
		return bot.Run(gctx, 0, 30)
	})

	// Выгружаем то, что осталось с прошлого запуска
	worker.ForceUpdate()

	if err := g.Wait(); err != nil {
		logger.Error("stopped with error", zap.Error(err))
		return err
	}
	logger.Info("stopped")
	return nil
}
