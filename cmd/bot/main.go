package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"dnsebot-go/internal/bot"
	"dnsebot-go/internal/broker"
	"dnsebot-go/internal/config"
	"dnsebot-go/internal/events"
	"dnsebot-go/internal/execution"
	"dnsebot-go/internal/feed"
	"dnsebot-go/internal/indicator"
	"dnsebot-go/internal/metrics"
	"dnsebot-go/internal/paper"
	"dnsebot-go/internal/risk"
	"dnsebot-go/internal/series"
	"dnsebot-go/internal/strategy"
	"dnsebot-go/internal/util"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		lg := util.NewLogger("info")
		lg.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := assemble(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("assemble bot")
	}

	log.Info().Str("mode", cfg.Execution.Mode).Strs("symbols", cfg.Feed.Symbols).Msg("bot started")
	if err := b.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
	log.Info().Msg("shut down cleanly")
}

func assemble(cfg *config.Config, log zerolog.Logger) (*bot.Bot, error) {
	store := series.NewStore(cfg.Series.TickCapacity, cfg.Series.CandleCapacity, cfg.Series.CandleInterval())

	params := strategyParams(cfg.Strategy.Params)
	indParams := indicatorParams(cfg.Strategy.Params)
	engine := strategy.NewEngine(
		strategy.Build(cfg.Strategy.Enabled, params),
		store, indParams, cfg.Strategy.WindowCandles,
		cfg.Strategy.Cooldown(), strategy.CooldownPolicy(cfg.Strategy.CooldownPolicy), log)

	riskMgr := risk.NewManager(risk.Config{
		InitialCapital:  cfg.Risk.InitialCapital,
		RiskPerTrade:    cfg.Risk.RiskPerTrade,
		MaxPositions:    cfg.Risk.MaxPositions,
		MaxPositionSize: cfg.Risk.MaxPositionSize,
		StopLossPct:     cfg.Risk.StopLossPct,
		TrailActivation: cfg.Risk.TrailActivation,
		TrailPct:        cfg.Risk.TrailPct,
		MaxDrawdownPct:  cfg.Risk.MaxDrawdownPct,
		LotSize:         cfg.Risk.LotSize,
	}, log)

	backend, err := buildBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	bus := events.NewBus(log)
	exec := execution.NewExecutor(backend, execution.Config{
		RetryMax:      uint64(cfg.Execution.RetryMax),
		RetryBase:     cfg.Execution.RetryBase(),
		SubmitTimeout: cfg.Execution.Timeout(),
	}, bus, log)

	ingestor := feed.NewIngestor(feed.Config{
		Provider:      cfg.Feed.Provider,
		URL:           cfg.Feed.URL,
		QueueSize:     cfg.Feed.QueueSize,
		DedupWindow:   cfg.Feed.DedupWindow(),
		MaxReconnects: cfg.Feed.MaxReconnects,
	}, log, feed.PublishState(bus, log))

	bus.Subscribe(func(ev events.Event) {
		if ev.Kind == events.KindFeedState {
			log.Info().Str("state", ev.Status).Msg("feed state")
		}
	})

	return bot.New(cfg, ingestor, store, engine, riskMgr, exec, log), nil
}

func buildBackend(cfg *config.Config, log zerolog.Logger) (execution.Backend, error) {
	if cfg.Execution.Mode == "live" {
		client := broker.NewClient(
			cfg.Broker.BaseURL, cfg.Broker.AccountID,
			cfg.Broker.APIKey, cfg.Broker.APISecret,
			broker.StaticToken(cfg.Broker.Token), 0, log)
		return execution.NewLiveBackend(client, log), nil
	}

	account := paper.NewAccount(cfg.Paper.StartingCash)
	ledger := paper.NewLedger(1024)
	var recorder paper.FillRecorder
	if cfg.Paper.FillsPath != "" {
		rec, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath)
		if err != nil {
			return nil, err
		}
		recorder = rec
	}
	return paper.NewBackend(paper.BackendConfig{
		SlippageBps:     cfg.Paper.SlippageBps,
		PartialFillProb: cfg.Paper.PartialFillProb,
	}, account, ledger, recorder), nil
}

func strategyParams(p config.StrategyParams) strategy.Params {
	out := strategy.DefaultParams()
	if p.BreakoutVolumeMult > 0 {
		out.VolumeMultiplier = p.BreakoutVolumeMult
	}
	if p.MAShort > 0 {
		out.MACrossShort = p.MAShort
	}
	if p.MALong > 0 {
		out.MACrossLong = p.MALong
	}
	if p.RSIPeriod > 0 {
		out.RSIPeriod = p.RSIPeriod
	}
	if p.RSIOversold > 0 {
		out.RSIOversold = p.RSIOversold
	}
	if p.RSIOverbought > 0 {
		out.RSIOverbought = p.RSIOverbought
	}
	if p.RSIHysteresis > 0 {
		out.RSIHysteresis = p.RSIHysteresis
	}
	if p.SurgeVolumeMult > 0 {
		out.VolSurgeMultiplier = p.SurgeVolumeMult
	}
	if p.BBPeriod > 0 {
		out.BollingerPeriod = p.BBPeriod
	}
	if p.BBStdDev > 0 {
		out.BollingerStdDev = p.BBStdDev
	}
	if p.ZScoreEntry > 0 {
		out.MeanRevZScore = p.ZScoreEntry
	}
	return out
}

func indicatorParams(p config.StrategyParams) indicator.Params {
	out := indicator.DefaultParams()
	if p.RSIPeriod > 0 {
		out.RSIPeriod = p.RSIPeriod
	}
	if p.BBPeriod > 0 {
		out.BBPeriod = p.BBPeriod
	}
	if p.BBStdDev > 0 {
		out.BBStdDev = p.BBStdDev
	}
	return out
}
