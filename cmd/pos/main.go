package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fekuna/omnipos-checkout-service/config"
	"github.com/fekuna/omnipos-checkout-service/internal/api"
	cartUCPkg "github.com/fekuna/omnipos-checkout-service/internal/cart/usecase"
	"github.com/fekuna/omnipos-checkout-service/internal/checkout"
	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/internal/pricing"
	"github.com/fekuna/omnipos-checkout-service/internal/push"
	"github.com/fekuna/omnipos-checkout-service/internal/sales"
	salesRepoPkg "github.com/fekuna/omnipos-checkout-service/internal/sales/repository"
	salesUCPkg "github.com/fekuna/omnipos-checkout-service/internal/sales/usecase"
	"github.com/fekuna/omnipos-checkout-service/internal/scanner"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment:     cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev",
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	defer appLogger.Sync()

	// 3. Optional sale journal (Postgres). The terminal runs without it.
	var salesRepo *salesRepoPkg.PGRepository
	if cfg.Postgres.JournalEnabled {
		db, err := sqlx.Connect("postgres", postgresDSN(&cfg.Postgres))
		if err != nil {
			appLogger.Warn("could not connect to sale journal database, journaling disabled", zap.Error(err))
		} else {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
			db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
			db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second)
			db.SetConnMaxIdleTime(time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second)
			defer db.Close()
			salesRepo = salesRepoPkg.NewPGRepository(db)
			appLogger.Info("sale journal enabled", zap.String("db_name", cfg.Postgres.DBName))
		}
	}

	// 4. Backend API client
	apiClient := api.NewClient(&cfg.API, cfg.Server.BranchID, appLogger)

	// 5. Payment rate configs. A failed fetch degrades to "no card payments".
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	methods := enabledMethods(cfg.Checkout.EnabledMethods, appLogger)
	var configs []model.PaymentRateConfig
	standard, overrides, err := apiClient.ListRateConfigs(ctx)
	if err != nil {
		appLogger.Warn("rate config fetch failed, card payments disabled", zap.Error(err))
		methods = withoutCard(methods)
	} else {
		configs = pricing.MergeRateConfigs(standard, overrides)
	}

	taxRate, err := decimal.NewFromString(cfg.Checkout.TaxRatePercent)
	if err != nil {
		appLogger.Warn("invalid tax rate, using 0", zap.String("value", cfg.Checkout.TaxRatePercent))
		taxRate = decimal.Zero
	}

	// 6. Core wiring: cart, sales, wizard, scanner
	cartUC := cartUCPkg.NewCartUseCase(appLogger)
	var journal sales.Repository
	if salesRepo != nil {
		journal = salesRepo
	}
	salesUC := salesUCPkg.NewSalesUseCase(apiClient, journal, appLogger)
	wizard := checkout.NewWizard(cartUC, salesUC, cfg.Checkout.SaleType, methods, configs, taxRate, appLogger)

	var searchMode atomic.Bool
	classifier := scanner.NewClassifier(scanner.Config{
		BurstGap:      time.Duration(cfg.Scanner.BurstGapMs) * time.Millisecond,
		CommitTimeout: time.Duration(cfg.Scanner.CommitTimeoutMs) * time.Millisecond,
		MinLength:     cfg.Scanner.MinLength,
		MaxLength:     cfg.Scanner.MaxLength,
	}, searchMode.Load, appLogger)

	classifier.Attach(func(code string) {
		go func() {
			lookupCtx, lookupCancel := context.WithTimeout(ctx, 5*time.Second)
			defer lookupCancel()

			product, err := apiClient.LookupByBarcode(lookupCtx, code)
			if err != nil {
				appLogger.Warn("barcode lookup failed", zap.String("code", code), zap.Error(err))
				return
			}
			var sizeStock map[string]int
			if product.HasSizes {
				if sizeStock, err = apiClient.GetSizeStock(lookupCtx, product.ID); err != nil {
					appLogger.Warn("size stock lookup failed", zap.String("product_id", product.ID), zap.Error(err))
					sizeStock = nil
				}
			}
			if err := cartUC.AddItem(product, nil, 1, sizeStock); err != nil {
				appLogger.Warn("could not add scanned product",
					zap.String("product_id", product.ID), zap.Error(err))
				return
			}
			appLogger.Info("scanned product added",
				zap.String("code", code), zap.String("name", product.Name))
		}()
	})
	defer classifier.Detach()

	// 7. Inventory push channel. Exhausted retries leave stale stock data;
	// checkout keeps working.
	channel := push.NewChannel(push.Config{
		URL:                  cfg.Sync.URL,
		BranchID:             cfg.Server.BranchID,
		Token:                cfg.Sync.Token,
		MaxReconnectAttempts: cfg.Sync.MaxReconnectAttempts,
		ReconnectInterval:    time.Duration(cfg.Sync.ReconnectIntervalSeconds) * time.Second,
		PingInterval:         time.Duration(cfg.Sync.PingIntervalSeconds) * time.Second,
	}, appLogger)
	channel.OnInventoryChange(func(ev model.InventoryChangeEvent) {
		cartUC.ApplyStockChange(ev.ProductID, ev.NewStock)
	})
	if err := channel.Connect(ctx); err != nil {
		appLogger.Warn("inventory sync unavailable", zap.Error(err))
	}
	defer channel.Disconnect()

	// 8. Raw-mode keyboard loop
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		log.Fatalf("failed to set terminal raw mode: %v", err)
	}
	defer term.Restore(fd, oldState)

	appLogger.Info("POS terminal ready",
		zap.String("branch_id", cfg.Server.BranchID),
		zap.Int("payment_methods", len(methods)))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go keyLoop(ctx, classifier, wizard, &searchMode, quit, appLogger)

	<-quit
	appLogger.Info("Shutting down POS terminal...")
}

// keyLoop decodes terminal bytes into key events for the classifier and
// wizard commands. Ctrl+C quits, Tab toggles the wizard, '/' toggles search
// mode (the "text-entry focused" predicate), arrows navigate.
func keyLoop(ctx context.Context, classifier *scanner.Classifier, wizard *checkout.Wizard, searchMode *atomic.Bool, quit chan<- os.Signal, log logger.ZapLogger) {
	reader := bufio.NewReader(os.Stdin)
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return
		}
		now := time.Now()

		switch b {
		case 0x03: // Ctrl+C
			quit <- os.Interrupt
			return

		case 0x09: // Tab toggles the wizard
			if wizard.Snapshot().Open {
				wizard.Close()
			} else {
				wizard.Open()
			}

		case '\r', '\n':
			classifier.HandleKey(scanner.KeyEvent{Key: scanner.KeyEnter, Time: now})
			if wizard.Snapshot().Open {
				if err := wizard.Confirm(ctx); err != nil {
					log.Warn("checkout input rejected", zap.Error(err))
				}
			}

		case 0x7f: // Backspace
			wizard.Back()

		case '/':
			searchMode.Store(!searchMode.Load())

		case '+':
			if wizard.Snapshot().Open {
				if err := wizard.IncrementItem(); err != nil {
					log.Warn("could not increment quantity", zap.Error(err))
				}
			}

		case '-':
			// Also a valid barcode rune; a lone slow '-' never finalizes, so
			// feeding both consumers is safe.
			classifier.HandleKey(scanner.KeyEvent{Key: scanner.KeyRune, Rune: '-', Time: now})
			if wizard.Snapshot().Open {
				if err := wizard.DecrementItem(); err != nil {
					log.Warn("could not decrement quantity", zap.Error(err))
				}
			}

		case 0x1b:
			handleEscape(reader, classifier, wizard, now, log)

		default:
			classifier.HandleKey(scanner.KeyEvent{Key: scanner.KeyRune, Rune: rune(b), Time: now})
		}
	}
}

// handleEscape distinguishes a bare Escape from ANSI arrow/delete sequences.
func handleEscape(reader *bufio.Reader, classifier *scanner.Classifier, wizard *checkout.Wizard, now time.Time, log logger.ZapLogger) {
	if reader.Buffered() < 2 {
		classifier.HandleKey(scanner.KeyEvent{Key: scanner.KeyEscape, Time: now})
		wizard.Back()
		return
	}
	b1, _ := reader.ReadByte()
	b2, _ := reader.ReadByte()
	if b1 != '[' {
		return
	}

	switch b2 {
	case 'A', 'D': // Up / Left
		wizard.Prev()
	case 'B', 'C': // Down / Right
		wizard.Next()
	case '3': // Delete: ESC [ 3 ~
		if reader.Buffered() > 0 {
			_, _ = reader.ReadByte()
		}
		if err := wizard.DeleteItem(); err != nil {
			log.Warn("could not delete cart line", zap.Error(err))
		}
	}
}

func enabledMethods(names []string, log logger.ZapLogger) []model.PaymentMethod {
	var methods []model.PaymentMethod
	for _, name := range names {
		m := model.PaymentMethod(name)
		if !m.Valid() {
			log.Warn("ignoring unknown payment method", zap.String("method", name))
			continue
		}
		methods = append(methods, m)
	}
	return methods
}

func withoutCard(methods []model.PaymentMethod) []model.PaymentMethod {
	var out []model.PaymentMethod
	for _, m := range methods {
		if m != model.PaymentCard {
			out = append(out, m)
		}
	}
	return out
}

func postgresDSN(cfg *config.PostgresConfig) string {
	return "host=" + cfg.Host +
		" port=" + cfg.Port +
		" user=" + cfg.User +
		" password=" + cfg.Password +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.SSLMode
}
