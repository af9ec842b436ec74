// Package app wires the assistant's components from configuration. Both the
// worker manager and hajjctl build through here.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsclients "hajj-assistant/internal/common/aws"
	"hajj-assistant/internal/common/config"
	"hajj-assistant/internal/common/database"
	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/common/observability"
	"hajj-assistant/internal/common/oracle"
	"hajj-assistant/internal/core/composer"
	"hajj-assistant/internal/core/conversation"
	"hajj-assistant/internal/core/executor"
	"hajj-assistant/internal/core/general"
	"hajj-assistant/internal/core/intent"
	"hajj-assistant/internal/core/language"
	"hajj-assistant/internal/core/matcher"
	"hajj-assistant/internal/core/pipeline"
	"hajj-assistant/internal/core/report"
	"hajj-assistant/internal/core/schema"
	"hajj-assistant/internal/core/synthesizer"
	"hajj-assistant/internal/models"
	"hajj-assistant/internal/session"
	"hajj-assistant/internal/workers/registry/query-agencies/queries"
)

// Options tune how hard Build tries to reach its dependencies.
type Options struct {
	ConnectAttempts int
	ConnectDelay    time.Duration
}

// App holds every wired component. Optional parts are nil when disabled.
type App struct {
	Config   *config.Config
	DB       *database.SQLClient
	Writer   *database.SQLClient
	Redis    *database.RedisClient
	Search   *database.ElasticsearchClient
	Schema   *schema.Registry
	Oracle   oracle.Oracle
	Detector *language.Detector
	Intents  *intent.Classifier
	Matcher  *matcher.Matcher
	Composer *composer.Composer
	Reports  *report.Flow
	Resolver *pipeline.Resolver
	Sessions *session.Manager
	Obs      *observability.Observability

	closers []func() error
	logger  logger.Logger
}

// Build connects to the registry and redis, loads the schema and agency
// index, and assembles the turn pipeline.
func Build(ctx context.Context, cfg *config.Config, obs *observability.Observability, log logger.Logger, opts Options) (*App, error) {
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 1
	}
	if opts.ConnectDelay <= 0 {
		opts.ConnectDelay = 2 * time.Second
	}

	a := &App{
		Config:   cfg,
		Obs:      obs,
		Composer: composer.New(log),
		logger:   log.With(map[string]interface{}{"component": "app"}),
	}

	if err := a.connect(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.assemble(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context, opts Options) error {
	cfg := a.Config

	err := RetryWithBackoff(ctx, func() error {
		db, err := database.OpenReadOnly(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return err
		}
		a.DB = db
		return nil
	}, opts.ConnectAttempts, opts.ConnectDelay, a.logger, "agency registry connection")
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.DB.Close)

	a.Redis = database.NewRedis(cfg.Database.Redis)
	a.closers = append(a.closers, a.Redis.Close)
	err = RetryWithBackoff(ctx, func() error {
		return a.Redis.Ping(ctx)
	}, opts.ConnectAttempts, opts.ConnectDelay, a.logger, "Redis connection")
	if err != nil {
		return err
	}

	if hasSink(cfg.Reports.Sinks, "elasticsearch") {
		search, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		err = RetryWithBackoff(ctx, func() error {
			return search.Ping(ctx)
		}, opts.ConnectAttempts, opts.ConnectDelay, a.logger, "Elasticsearch connection")
		if err != nil {
			return err
		}
		a.Search = search
	}

	if hasSink(cfg.Reports.Sinks, "sql") {
		writer, err := database.OpenWriter(cfg.Database)
		if err != nil {
			return fmt.Errorf("open complaints writer: %w", err)
		}
		a.Writer = writer
		a.closers = append(a.closers, writer.Close)
	}
	return nil
}

func (a *App) assemble(ctx context.Context) error {
	cfg := a.Config
	log := a.logger

	reg, err := schema.Load(ctx, a.DB.DB, schema.Dialect(a.DB.Driver))
	if err != nil {
		return fmt.Errorf("load registry schema: %w", err)
	}
	a.Schema = reg

	index, err := matcher.LoadIndex(ctx, a.DB.DB, reg)
	if err != nil {
		return err
	}
	a.Matcher = matcher.New(index, matcher.Config{
		Threshold:     cfg.Resolver.MatchThreshold,
		AmbiguityGap:  cfg.Resolver.AmbiguityGap,
		MaxCandidates: cfg.Resolver.MaxCandidates,
	}, log)

	if err := a.openOracle(ctx); err != nil {
		return err
	}

	a.Detector = language.NewDetector(a.Oracle, log)
	a.Intents = intent.New(a.Oracle, intent.Config{MaxTokens: cfg.Oracle.MaxTokens}, log)

	var runner executor.Runner = executor.New(a.DB.DB, executor.Config{
		Timeout: config.GetDuration(cfg.Resolver.QueryTimeout),
		RowCap:  cfg.Resolver.RowCap,
	}, log)
	if cfg.Resolver.ResultCacheTTL > 0 {
		runner = executor.NewCachedExecutor(runner, a.Redis.Client, config.GetDuration(cfg.Resolver.ResultCacheTTL), log)
	}

	reports, err := a.reportFlow(ctx)
	if err != nil {
		return err
	}
	a.Reports = reports

	var answerer pipeline.GeneralAnswerer
	if a.Oracle != nil {
		answerer = general.New(a.Oracle, general.Config{
			Timeout:   config.GetDuration(cfg.Resolver.GeneralAnswerTimeout),
			MaxTokens: cfg.Oracle.MaxTokens,
			MaxChars:  cfg.Resolver.GeneralAnswerMaxChars,
		}, log)
	}

	a.Resolver = pipeline.New(pipeline.Deps{
		Detector:    a.Detector,
		Classifier:  a.Intents,
		Matcher:     a.Matcher,
		Synthesizer: synthesizer.New(a.Oracle, reg, synthesizer.Config{RowCap: cfg.Resolver.RowCap, MaxTokens: cfg.Oracle.MaxTokens}, log),
		Executor:    runner,
		Composer:    a.Composer,
		Tracker:     conversation.New(conversation.Config{MaxClarificationRounds: cfg.Resolver.MaxClarificationRounds}, log),
		Reports:     reports,
		General:     answerer,
		Obs:         a.Obs,
	}, pipeline.Config{TurnTimeout: config.GetDuration(cfg.Resolver.TurnTimeout)}, log)

	a.Sessions = session.NewManager(session.NewStore(a.Redis.Client, session.Config{
		TTL:     config.GetDuration(cfg.Session.TTL),
		LockTTL: config.GetDuration(cfg.Session.LockTTL),
	}, log), a.Resolver, log)

	log.Info("assistant assembled", map[string]interface{}{
		"agencies": index.Len(),
		"table":    reg.Table(),
		"oracle":   a.Oracle != nil,
	})
	return nil
}

// openOracle leaves a.Oracle nil when no credentials are configured; the
// pipeline then runs on rules alone.
func (a *App) openOracle(ctx context.Context) error {
	cfg := a.Config.Oracle
	if cfg.APIKey == "" && cfg.Provider != config.OracleHTTP {
		a.logger.Warn("no oracle credentials, running on rules only", map[string]interface{}{"provider": cfg.Provider})
		return nil
	}
	guard, err := oracle.New(ctx, cfg, a.logger)
	if err != nil {
		return fmt.Errorf("init oracle: %w", err)
	}
	a.Oracle = guard
	return nil
}

func (a *App) reportFlow(ctx context.Context) (*report.Flow, error) {
	cfg := a.Config
	var sinks []report.Sink
	for _, name := range cfg.Reports.Sinks {
		switch name {
		case "redis":
			sinks = append(sinks, report.NewStreamSink(a.Redis.Client, cfg.Reports.Stream, cfg.Reports.StreamMax))
		case "sql":
			sink, err := report.NewSQLSink(a.Writer.DB, a.Writer.Driver, cfg.Reports.Table)
			if err != nil {
				return nil, err
			}
			if err := sink.EnsureTable(ctx); err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		case "elasticsearch":
			sinks = append(sinks, report.NewIndexSink(a.Search.Client, cfg.Reports.Index))
		}
	}

	opts := []report.Option{report.WithMatcher(a.Matcher)}
	if cfg.Resolver.ValidateReportsWithLLM && a.Oracle != nil {
		opts = append(opts, report.WithValidator(report.NewOracleValidator(a.Oracle, a.logger)))
	}

	notifier, err := a.notifier(ctx)
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		opts = append(opts, report.WithAnnouncer(notifier))
	}

	return report.New(report.NewMultiSink(a.logger, sinks...), a.logger, opts...), nil
}

func (a *App) notifier(ctx context.Context) (*report.Notifier, error) {
	n := a.Config.Notifications
	if !n.SNS.Enabled && !n.SES.Enabled {
		return nil, nil
	}

	var (
		snsClient awsclients.SNSAPI
		sesClient awsclients.SESAPI
		err       error
	)
	if n.SNS.Enabled {
		if snsClient, err = awsclients.NewSNSClient(ctx, n.Region); err != nil {
			return nil, fmt.Errorf("init sns: %w", err)
		}
	}
	if n.SES.Enabled {
		if sesClient, err = awsclients.NewSESClient(ctx, n.Region); err != nil {
			return nil, fmt.Errorf("init ses: %w", err)
		}
	}
	return report.NewNotifier(snsClient, n.SNS.TopicARN, sesClient, n.SES.FromEmail, a.logger), nil
}

// Stats computes the registry totals.
func (a *App) Stats(ctx context.Context) (models.RegistryStats, error) {
	return queries.Stats(ctx, a.DB.DB, a.Schema)
}

// RefreshIndex reloads the agency index from the registry.
func (a *App) RefreshIndex(ctx context.Context) error {
	index, err := matcher.LoadIndex(ctx, a.DB.DB, a.Schema)
	if err != nil {
		return err
	}
	a.Matcher.Swap(index)
	return nil
}

// RunIndexRefresh reloads the index every resolver.index_refresh until ctx
// is done. It returns at once when refreshing is disabled.
func (a *App) RunIndexRefresh(ctx context.Context) {
	every := config.GetDuration(a.Config.Resolver.IndexRefresh)
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.RefreshIndex(ctx); err != nil {
				a.logger.Warn("agency index refresh failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func hasSink(sinks []string, name string) bool {
	for _, s := range sinks {
		if s == name {
			return true
		}
	}
	return false
}
