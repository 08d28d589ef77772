package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"novasale/config"
	"novasale/integrations/custody"
	"novasale/native/sale"
	"novasale/observability/logging"
	"novasale/observability/metrics"
	"novasale/rpc"
	"novasale/storage"
)

const (
	envName            = "NOVASALE_ENV"
	custodyEndpointEnv = "NOVASALE_CUSTODY_ENDPOINT"
	custodyKeyEnv      = "NOVASALE_CUSTODY_KEY"
)

func main() {
	configFile := flag.String("config", "./novasale.toml", "Path to the configuration file")
	memory := flag.Bool("memdb", false, "DEV ONLY: keep state in memory instead of LevelDB")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envName))
	logger := logging.Setup("novasaled", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var db storage.Database
	if *memory {
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("Failed to open database", slog.String("dir", cfg.DataDir), slog.Any("error", err))
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	ledger, engine, registry, err := buildSale(cfg, db)
	if err != nil {
		logger.Error("Failed to wire sale engine", slog.Any("error", err))
		os.Exit(1)
	}
	if round, index, ok := ledger.CurrentRound(); ok && round.State == sale.RoundStarted {
		metrics.Sale().SetActiveRound(index)
		logger.Info("Resumed active round", slog.Uint64("index", index))
	} else {
		metrics.Sale().ClearActiveRound()
	}

	go func() {
		ops := chi.NewRouter()
		ops.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		ops.Handle("/metrics", promhttp.Handler())
		logger.Info("Ops endpoint listening", slog.String("addr", cfg.OpsAddress))
		if err := http.ListenAndServe(cfg.OpsAddress, ops); err != nil {
			logger.Error("Ops endpoint failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	server := rpc.NewServer(engine, registry)
	logger.Info("JSON-RPC server listening", slog.String("addr", cfg.RPCAddress))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func buildSale(cfg *config.Config, db storage.Database) (*sale.Ledger, *sale.Engine, *sale.Registry, error) {
	minPurchase, err := cfg.MinPurchase()
	if err != nil {
		return nil, nil, nil, err
	}
	maxAllocation, err := cfg.MaxAllocation()
	if err != nil {
		return nil, nil, nil, err
	}
	authThreshold, err := cfg.AuthThreshold()
	if err != nil {
		return nil, nil, nil, err
	}
	params := &sale.Params{
		MinPurchase:          minPurchase,
		MaxAllocation:        maxAllocation,
		AuthThreshold:        authThreshold,
		PrimaryRate:          cfg.PrimaryRate,
		SecondaryRate:        cfg.SecondaryRate,
		SecondaryRewardAsset: cfg.SecondaryRewardAsset,
	}
	ledger, err := sale.NewLedger(params)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := ledger.AttachStore(sale.NewStore(db)); err != nil {
		return nil, nil, nil, fmt.Errorf("attach store: %w", err)
	}

	registry := sale.NewRegistry()
	for _, cur := range cfg.Currencies {
		entry := &sale.Currency{Symbol: cur.Symbol, Decimals: cur.Decimals, Fixed: cur.Fixed}
		if !cur.Fixed {
			entry.Source = sale.NewStaticPriceSource(sale.PeggedPriceDecimals)
		}
		if err := registry.Register(entry); err != nil {
			return nil, nil, nil, err
		}
	}

	treasury, err := cfg.TreasuryAddress()
	if err != nil {
		return nil, nil, nil, err
	}
	custodyAddr, err := cfg.CustodyAddress()
	if err != nil {
		return nil, nil, nil, err
	}

	settlement := custody.NewClient(nil, os.Getenv(custodyEndpointEnv), os.Getenv(custodyKeyEnv))
	ledger.SetTransferor(settlement)

	engine := sale.NewEngine(ledger, registry)
	engine.SetCollector(settlement)
	engine.SetTreasury(treasury)
	engine.SetCustody(custodyAddr)
	engine.SetNativeSymbol(cfg.NativeSymbol)
	engine.SetPriceMaxAge(time.Duration(cfg.PriceMaxAgeSeconds) * time.Second)
	return ledger, engine, registry, nil
}
