// Command trustctl is a local harness for the trust evaluation
// pipeline: it wires the default provider set, an in-memory cache and
// identity graph, and runs Pipeline.Evaluate against a subject named
// on the command line. It is not a network service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ocx/trustengine/internal/cache"
	"github.com/ocx/trustengine/internal/config"
	"github.com/ocx/trustengine/internal/identitygraph"
	"github.com/ocx/trustengine/internal/obsmetrics"
	"github.com/ocx/trustengine/internal/pipeline"
	"github.com/ocx/trustengine/internal/providers/clawhub"
	"github.com/ocx/trustengine/internal/providers/erc8004"
	"github.com/ocx/trustengine/internal/providers/github"
	"github.com/ocx/trustengine/internal/providers/moltbook"
	"github.com/ocx/trustengine/internal/providers/twitter"
	"github.com/ocx/trustengine/internal/signal"
	"github.com/ocx/trustengine/internal/trust"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "evaluate":
		cmdEvaluate(os.Args[2:])
	case "version":
		fmt.Printf("trustctl v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`trustctl v` + version + `

Usage: trustctl <command> [flags]

Commands:
  evaluate   Run a trust evaluation against a subject
  version    Print version
  help       Show this help

evaluate flags:
  --namespace   Subject namespace, e.g. github, erc8004, clawhub (required)
  --id          Subject id within the namespace (required)
  --action      Caller intent: install, execute, delegate, transact, review (default: review)

Environment:
  CONFIG_PATH           Path to a YAML config file (default: config.yaml)
  GITHUB_TOKEN          GitHub API token
  TWITTER_BEARER_TOKEN  Twitter/X bearer token (provider is a no-op without it)
  MOLTBOOK_API_KEY      Moltbook API key (provider is a no-op without it)

Examples:
  trustctl evaluate --namespace github --id octocat/hello-world
  trustctl evaluate --namespace erc8004 --id 42 --action transact`)
}

func cmdEvaluate(args []string) {
	var namespace, id, action string
	action = "review"

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--namespace", "-n":
			i++
			if i < len(args) {
				namespace = args[i]
			}
		case "--id":
			i++
			if i < len(args) {
				id = args[i]
			}
		case "--action", "-a":
			i++
			if i < len(args) {
				action = args[i]
			}
		}
	}

	if namespace == "" || id == "" {
		fmt.Fprintln(os.Stderr, "Error: --namespace and --id are required")
		os.Exit(1)
	}

	cfg := config.Get()
	p := buildPipeline(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	subject := trust.Subject{Namespace: strings.ToLower(namespace), ID: id}
	result := p.Evaluate(ctx, subject, trust.Action(strings.ToLower(action)))

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	fmt.Printf("\n%s | trust_score=%.2f | risk=%s | recommendation=%s\n",
		result.Label, result.Score, result.RiskBucket, result.Recommendation)
}

func buildPipeline(cfg *config.Config) *pipeline.Pipeline {
	logger := slog.Default()

	graph := identitygraph.New()
	if cfg.Database.PostgresDSN != "" {
		hydrator, err := identitygraph.NewPgHydrator(cfg.Database.PostgresDSN)
		if err != nil {
			logger.Warn("could not open postgres for identity graph hydration, starting empty", "error", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := hydrator.Hydrate(ctx, graph, logger); err != nil {
				logger.Warn("identity graph hydration failed, starting empty", "error", err)
			}
			cancel()
			hydrator.Close()
		}
	}

	erc := erc8004.New(cfg.Providers.ERC8004.BaseURL)
	providers := []signal.Provider{
		github.New(cfg.Providers.GitHub.Token),
		erc,
		clawhub.New(cfg.Providers.ClawHub.BaseURL, ""),
		twitter.New(cfg.Providers.Twitter.BearerToken),
		moltbook.New(cfg.Providers.Moltbook.BaseURL, cfg.Providers.Moltbook.APIKey),
	}

	defaultTTL := time.Duration(cfg.Cache.DefaultTTLSec) * time.Second

	var store cache.ResultStore
	if cfg.Cache.Backend == "redis" && cfg.Cache.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, defaultTTL)
		if err != nil {
			logger.Warn("redis cache unavailable, falling back to in-memory", "error", err)
			store = cache.NewResultStore(cache.New(logger, defaultTTL))
		} else {
			store = cache.NewRedisResultStore(redisCache)
		}
	} else {
		store = cache.NewResultStore(cache.New(logger, defaultTTL))
	}

	metrics := obsmetrics.NewMetrics()

	return pipeline.NewPipeline(providers, graph, erc, store,
		pipeline.WithProviderTimeout(time.Duration(cfg.Scoring.ProviderTimeoutSec)*time.Second),
		pipeline.WithStabilityLambda(cfg.Scoring.StabilityLambda),
		pipeline.WithDefaultTTL(defaultTTL),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger),
	)
}
