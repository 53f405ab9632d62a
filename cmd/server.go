package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"skillradar/internal/api"
	"skillradar/internal/ats"
	"skillradar/internal/confidence"
	"skillradar/internal/fetcher"
	"skillradar/internal/model"
	"skillradar/internal/notifier"
	"skillradar/internal/orchestrator"
	"skillradar/internal/parser"
	"skillradar/internal/storage"
	"skillradar/internal/subscription"
	"skillradar/internal/webhook"
)

// AppConfig 应用配置。密钥不走配置文件，从环境变量读取。
type AppConfig struct {
	Server       ServerConfig         `yaml:"server"`
	Database     DatabaseConfig       `yaml:"database"`
	GitHub       GitHubConfig         `yaml:"github"`
	Fetcher      fetcher.Config       `yaml:"fetcher"`
	Confidence   confidence.Config    `yaml:"confidence"`
	ATS          ats.Config           `yaml:"ats"`
	Orchestrator orchestrator.Config  `yaml:"orchestrator"`
	Webhook      webhook.Config       `yaml:"webhook"`
	Parser       parser.Config        `yaml:"parser"`
	Subscription subscription.Config  `yaml:"subscription"`
	Email        notifier.EmailConfig `yaml:"email"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type GitHubConfig struct {
	BaseURL string `yaml:"base_url"`
}

func main() {
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	userID := flag.String("user", "", "trigger one scrape for this user and exit")
	kind := flag.String("kind", string(model.JobKindFull), "scrape kind for manual mode: github|linkedin|full")
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		logger.WithError(err).Error("load config")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *userID != "" {
		jobID, err := runOnceManual(ctx, *userID, model.JobKind(*kind), func() (appDeps, func(), error) {
			return buildDeps(cfg, logger)
		})
		if err != nil {
			logger.WithError(err).Error("manual scrape")
			return
		}
		logger.WithField("job", jobID).Info("manual scrape finished")
		return
	}

	deps, cleanup, err := buildDeps(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("build dependencies")
		return
	}
	defer cleanup()

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: deps.handler}

	logger.WithField("addr", addr).Info("listening")
	if err := runServer(ctx, srv, deps.orch, 5*time.Second); err != nil {
		logger.WithError(err).Error("server stopped")
	}
}

// backgroundRunner 是后台调度循环的最小接口。
type backgroundRunner interface {
	Start(ctx context.Context) error
	Wait()
}

// httpServer 抽象出可关闭的 HTTP 服务，便于测试注入。
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// runServer 同时运行 HTTP 服务与调度循环，收到取消信号后优雅关闭，
// 并等待在途抓取任务排空。
func runServer(ctx context.Context, srv httpServer, runner backgroundRunner, shutdownTimeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	go func() {
		if err := runner.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logrus.WithError(err).Warn("scheduler stopped")
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	runner.Wait()
	return nil
}

// orchRunner 覆盖两种运行模式需要的编排能力。
type orchRunner interface {
	backgroundRunner
	Trigger(ctx context.Context, userID string, kind model.JobKind, source model.TriggerSource) (*model.ScrapeJob, error)
}

type appDeps struct {
	handler http.Handler
	orch    orchRunner
}

// runOnceManual 触发一次管理员抓取并等待其完成，返回任务 ID。
func runOnceManual(ctx context.Context, userID string, kind model.JobKind, build func() (appDeps, func(), error)) (string, error) {
	deps, cleanup, err := build()
	if err != nil {
		return "", err
	}
	defer cleanup()

	job, err := deps.orch.Trigger(ctx, userID, kind, model.TriggerAdmin)
	if err != nil {
		return "", err
	}
	deps.orch.Wait()
	return job.ID, nil
}

func buildDeps(cfg AppConfig, logger *logrus.Logger) (appDeps, func(), error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "skillradar.db"
	}
	store, err := storage.NewStore(dbPath)
	if err != nil {
		return appDeps{}, nil, err
	}

	githubBase := cfg.GitHub.BaseURL
	if githubBase == "" {
		githubBase = "https://api.github.com"
	}
	client := &http.Client{Timeout: 15 * time.Second}
	github := fetcher.NewGitHubClient(githubBase, os.Getenv("GITHUB_TOKEN"), cfg.Fetcher, client, logger)
	linkedin := fetcher.NewLinkedInFetcher(client)
	collector := fetcher.NewCollector(store, github, linkedin)

	subs := subscription.NewService(store, cfg.Subscription)
	engine := confidence.NewEngine(fetcher.NewStoreSource(store), cfg.Confidence, logger)
	orch := orchestrator.New(store, collector, engine, buildEmitter(cfg.Email, store, logger), cfg.Orchestrator, logger)

	atsCfg := cfg.ATS
	if atsCfg.SkillWeight == 0 && atsCfg.ExperienceWeight == 0 && atsCfg.EducationWeight == 0 &&
		atsCfg.KeywordWeight == 0 && atsCfg.SemanticWeight == 0 {
		synonyms := atsCfg.Synonyms
		atsCfg = ats.DefaultConfig()
		atsCfg.Synonyms = synonyms
	}
	scorer, err := ats.NewEngine(atsCfg)
	if err != nil {
		store.Close()
		return appDeps{}, nil, err
	}

	var llm parser.LLMClient
	deepseekCfg := cfg.Parser.Deepseek
	if deepseekCfg.APIKey == "" {
		deepseekCfg.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if deepseekCfg.APIKey != "" {
		llm = parser.NewDeepseekClient(deepseekCfg, nil)
	} else {
		logger.Info("deepseek disabled, resume parsing falls back to rules")
	}
	resumeParser := parser.New(cfg.Parser, llm, logger)

	handler := api.NewHandler(api.Options{
		Store:          store,
		Orchestrator:   orch,
		Scorer:         scorer,
		Parser:         resumeParser,
		Subscriptions:  subs,
		Filter:         webhook.NewFilter(cfg.Webhook),
		FallbackSecret: os.Getenv("WEBHOOK_FALLBACK_SECRET"),
		Logger:         logger,
	})

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("close store")
		}
	}
	return appDeps{handler: handler, orch: orch}, cleanup, nil
}

// buildEmitter 组装通知链：按订阅路由邮件，无人订阅时退回日志或全局邮件。
func buildEmitter(cfg notifier.EmailConfig, store *storage.Store, logger *logrus.Logger) notifier.Emitter {
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" {
		logger.Info("email emitter disabled: missing host/port/from")
		return notifier.NewLogEmitter(logger)
	}
	var fallback notifier.Emitter = notifier.NewLogEmitter(logger)
	if len(cfg.To) > 0 {
		fallback = notifier.NewEmailEmitter(cfg, nil)
	}
	return subscription.NewEmitter(store, notifier.NewSMTPClient(cfg), cfg.From, cfg.Subject, fallback, logger)
}

func loadConfig() (AppConfig, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AppConfig{}, nil
		}
		return AppConfig{}, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
