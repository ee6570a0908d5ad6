package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hanpama/fieldcover/internal/config"
	"github.com/hanpama/fieldcover/internal/evaluator"
	"github.com/hanpama/fieldcover/internal/eventbus"
	"github.com/hanpama/fieldcover/internal/grpcsvc"
	"github.com/hanpama/fieldcover/internal/grpctp"
	"github.com/hanpama/fieldcover/internal/logging"
	"github.com/hanpama/fieldcover/internal/metrics"
	"github.com/hanpama/fieldcover/internal/otel"
	"github.com/hanpama/fieldcover/internal/protoreg"
	"github.com/hanpama/fieldcover/internal/provider"
	"github.com/hanpama/fieldcover/internal/remote"
	"github.com/hanpama/fieldcover/internal/server"
	"github.com/hanpama/fieldcover/internal/stats"
)

const rootUsage = `fieldcover: answer field queries with the fewest providers

USAGE:
  fieldcover [-config file.yaml] <command> [flags]

COMMANDS:
  serve            Run the HTTP endpoint (and optionally gRPC) over the configured providers
  eval             Evaluate fields once and print them
  plan             Print the providers a query would run, in selection order
  providers        List the registered providers and any field none of them outputs
  compile-proto    Print or write the generated .proto for the configured universe
  help             Show help for any command

Without -config the built-in stats universe and providers are used.
`

const serveUsage = `serve FLAGS:
  -server.addr <addr>              HTTP listen address (default from config: :8080)
  -server.pretty                   Pretty-print JSON responses
  -server.timeout <duration>       Per-request timeout, e.g. 10s
  -server.metadata-header <name>   Forward HTTP header to gRPC metadata. Repeatable
  -grpc.addr <addr>                Also serve Eval over gRPC on addr
  -solver.tie-policy <policy>      first, last, tightest or loosest
  -log.level <level>               trace, debug, info, warn or error
  -otel.endpoint <addr>            OTLP collector endpoint
  -metrics                         Serve Prometheus metrics
`

const evalUsage = `eval FLAGS:
  -fields <a,b,...>            Fields to evaluate (required)
  -input <1,2,...>             Comma separated numbers
  -solver.tie-policy <policy>  first, last, tightest or loosest
`

const planUsage = `plan FLAGS:
  -fields <a,b,...>            Fields to plan for (required)
  -solver.tie-policy <policy>  first, last, tightest or loosest
`

const providersUsage = `providers: no flags
`

const compileProtoUsage = `compile-proto FLAGS:
  -out <dir>   Output directory for the generated .proto file (default: stdout)
`

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(stderr, "fieldcover:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	configPath := ""
	global := flag.NewFlagSet("fieldcover", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	global.StringVar(&configPath, "config", configPath, "YAML configuration file")
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	if cmd == "help" {
		return cmdHelp(cmdArgs)
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	switch cmd {
	case "serve":
		return cmdServe(cfg, cmdArgs)
	case "eval":
		return cmdEval(cfg, cmdArgs)
	case "plan":
		return cmdPlan(cfg, cmdArgs)
	case "providers":
		return cmdProviders(cfg, cmdArgs)
	case "compile-proto":
		return cmdCompileProto(cfg, cmdArgs)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "eval":
		fmt.Fprint(stdout, evalUsage)
	case "plan":
		fmt.Fprint(stdout, planUsage)
	case "providers":
		fmt.Fprint(stdout, providersUsage)
	case "compile-proto":
		fmt.Fprint(stdout, compileProtoUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// runtime is everything built from a Config that evaluations need.
type runtime struct {
	ev        *evaluator.Evaluator
	reg       *protoreg.Registry
	transport *grpctp.Transport
}

func (rt *runtime) Close() error {
	if rt.transport == nil {
		return nil
	}
	return rt.transport.Close()
}

func build(cfg *config.Config, logger zerolog.Logger) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	u, err := cfg.FieldUniverse()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.TiePolicy()
	if err != nil {
		return nil, err
	}
	reg, err := protoreg.Build(u, cfg.GRPC.Package)
	if err != nil {
		return nil, fmt.Errorf("protoreg build: %w", err)
	}

	rt := &runtime{reg: reg}
	var providers []provider.Provider
	for _, name := range cfg.Providers {
		p, ok := stats.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		providers = append(providers, p)
	}
	if len(cfg.Remote) > 0 {
		endpoints := grpctp.NewStaticEndpoints(nil)
		rt.transport = grpctp.New(grpctp.WithProvider(endpoints))
		for _, rc := range cfg.Remote {
			endpoints.Set(rc.Name, rc.Endpoint)
			var opts []remote.Option
			if rc.Timeout > 0 {
				opts = append(opts, remote.WithTimeout(rc.Timeout))
			}
			p, err := remote.New(rc.Name, rc.Name, rc.Outputs, reg, rt.transport, opts...)
			if err != nil {
				_ = rt.Close()
				return nil, err
			}
			providers = append(providers, p)
		}
	}

	ev, err := evaluator.New(u, providers, evaluator.WithTiePolicy(policy), evaluator.WithLogger(logger))
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("build evaluator: %w", err)
	}
	rt.ev = ev
	return rt, nil
}

func cmdServe(cfg *config.Config, args []string) error {
	var metadataHeaders stringListFlag
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&cfg.Server.Addr, "server.addr", cfg.Server.Addr, "HTTP listen address")
	fs.BoolVar(&cfg.Server.Pretty, "server.pretty", cfg.Server.Pretty, "Pretty-print JSON responses")
	fs.DurationVar(&cfg.Server.Timeout, "server.timeout", cfg.Server.Timeout, "Per-request timeout")
	fs.Var(&metadataHeaders, "server.metadata-header", "Forward HTTP header to gRPC metadata")
	fs.StringVar(&cfg.GRPC.Addr, "grpc.addr", cfg.GRPC.Addr, "gRPC listen address")
	fs.StringVar(&cfg.Solver.TiePolicy, "solver.tie-policy", cfg.Solver.TiePolicy, "Tie policy")
	fs.StringVar(&cfg.Log.Level, "log.level", cfg.Log.Level, "Log level")
	fs.StringVar(&cfg.OTel.Endpoint, "otel.endpoint", cfg.OTel.Endpoint, "OTLP collector endpoint")
	fs.BoolVar(&cfg.Metrics.Enabled, "metrics", cfg.Metrics.Enabled, "Serve Prometheus metrics")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}

	logger, closer, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventbus.Use(eventbus.New())
	defer logging.Subscribe(logger)()
	shutdown, err := otel.Setup(ctx, cfg.OTel.Endpoint, cfg.OTel.Service, cfg.OTel.Insecure)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	rt, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(rt.ev, serverOptions(cfg, metadataHeaders)...))
	if cfg.Metrics.Enabled {
		m := metrics.New()
		defer m.Subscribe()()
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}
	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	var grpcSrv *grpc.Server
	var grpcLis net.Listener
	if cfg.GRPC.Addr != "" {
		if grpcSrv, err = newGRPCServer(rt); err != nil {
			return err
		}
		if grpcLis, err = net.Listen("tcp", cfg.GRPC.Addr); err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcSrv != nil {
		g.Go(func() error {
			logger.Info().Str("addr", cfg.GRPC.Addr).Str("service", rt.reg.ServiceName()).Msg("gRPC server listening")
			return grpcSrv.Serve(grpcLis)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}

func serverOptions(cfg *config.Config, metadataHeaders []string) []server.Option {
	var sopts []server.Option
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Server.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.Server.Timeout))
	}
	if cfg.Server.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	}
	if cfg.Server.CORS {
		sopts = append(sopts, server.WithCORS("*"))
	}
	if cfg.Server.RateLimit > 0 {
		sopts = append(sopts, server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst))
	}
	if cfg.Server.BatchConcurrency > 0 {
		sopts = append(sopts, server.WithBatchConcurrency(cfg.Server.BatchConcurrency))
	}
	if len(metadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(metadataHeaders...))
	}
	return sopts
}

func newGRPCServer(rt *runtime) (*grpc.Server, error) {
	svc, err := grpcsvc.New(rt.reg, rt.ev)
	if err != nil {
		return nil, err
	}
	s := grpc.NewServer()
	svc.Register(s)
	if err := grpcsvc.RegisterReflection(s, rt.reg); err != nil {
		return nil, err
	}
	hs := health.NewServer()
	hs.SetServingStatus(rt.reg.ServiceName(), healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, nil
}

func cmdEval(cfg *config.Config, args []string) error {
	fields, input := "", ""
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&fields, "fields", fields, "Fields to evaluate")
	fs.StringVar(&input, "input", input, "Comma separated numbers")
	fs.StringVar(&cfg.Solver.TiePolicy, "solver.tie-policy", cfg.Solver.TiePolicy, "Tie policy")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, evalUsage)
		return err
	}
	if fields == "" {
		fmt.Fprint(stderr, evalUsage)
		return fmt.Errorf("-fields is required")
	}
	xs, err := parseNumbers(input)
	if err != nil {
		return err
	}

	rt, err := build(cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer rt.Close()

	log := &evaluator.SeqLog{}
	res, err := rt.ev.Eval(context.Background(), splitList(fields), xs, log)
	if err != nil {
		return err
	}
	for i, f := range res.Fields {
		fmt.Fprintf(stdout, "%s\t%v\n", f, res.Values[i])
	}
	fmt.Fprintf(stdout, "# providers: %s\n", strings.Join(log.Providers(), " "))
	return nil
}

func cmdPlan(cfg *config.Config, args []string) error {
	fields := ""
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&fields, "fields", fields, "Fields to plan for")
	fs.StringVar(&cfg.Solver.TiePolicy, "solver.tie-policy", cfg.Solver.TiePolicy, "Tie policy")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, planUsage)
		return err
	}
	if fields == "" {
		fmt.Fprint(stderr, planUsage)
		return fmt.Errorf("-fields is required")
	}

	rt, err := build(cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer rt.Close()

	plan, err := rt.ev.Plan(splitList(fields))
	if err != nil {
		return err
	}
	for _, step := range plan.Steps {
		fmt.Fprintf(stdout, "%s\t%s\n", step.Name(), strings.Join(step.Provider.Outputs(), ","))
	}
	return nil
}

func cmdProviders(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("providers", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, providersUsage)
		return err
	}

	rt, err := build(cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer rt.Close()

	reg := rt.ev.Registry()
	for _, e := range reg.Entries() {
		fmt.Fprintf(stdout, "%s\t%s\n", e.Name(), strings.Join(e.Provider.Outputs(), ","))
	}
	if missing := reg.Uncovered(); len(missing) > 0 {
		fmt.Fprintf(stdout, "# uncovered: %s\n", strings.Join(missing, " "))
	}
	return nil
}

func cmdCompileProto(cfg *config.Config, args []string) error {
	outDir := ""
	fs := flag.NewFlagSet("compile-proto", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outDir, "out", outDir, "Output directory for the generated .proto file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, compileProtoUsage)
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	u, err := cfg.FieldUniverse()
	if err != nil {
		return err
	}
	reg, err := protoreg.Build(u, cfg.GRPC.Package)
	if err != nil {
		return fmt.Errorf("protoreg build: %w", err)
	}
	if outDir == "" {
		return protoreg.Render(reg, stdout)
	}
	fp, err := protoreg.RenderDir(reg, outDir)
	if err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	fmt.Fprintln(stdout, fp)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseNumbers(s string) ([]float64, error) {
	parts := splitList(s)
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid input number %q", p)
		}
		out[i] = v
	}
	return out, nil
}
