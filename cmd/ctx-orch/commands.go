package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/datengrube/context-orchestrator/internal/config"
	"github.com/datengrube/context-orchestrator/internal/domain"
	"github.com/datengrube/context-orchestrator/internal/enhance"
	"github.com/datengrube/context-orchestrator/internal/fallback"
	"github.com/datengrube/context-orchestrator/internal/fetcher"
	"github.com/datengrube/context-orchestrator/internal/multifetch"
	"github.com/datengrube/context-orchestrator/internal/notify"
	"github.com/datengrube/context-orchestrator/internal/orchestrator"
	"github.com/datengrube/context-orchestrator/internal/refresh"
	"github.com/datengrube/context-orchestrator/internal/resourcestore"
	"github.com/datengrube/context-orchestrator/internal/squad"
	"github.com/datengrube/context-orchestrator/internal/workerpool"
	"github.com/datengrube/context-orchestrator/tui"
)

var version = "dev"

var (
	processRoot  string
	noEnhance    bool
	noMultiFetch bool
	useTUI       bool

	workerServer   string
	workerID       string
	workerSquads   []string
	workerMaxTasks int
)

func init() {
	processCmd := &cobra.Command{
		Use:   "process INPUT...",
		Short: "Run the full pipeline for a user request",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runProcess,
	}
	processCmd.Flags().StringVar(&processRoot, "root", "", "root resource URL")
	processCmd.Flags().BoolVar(&noEnhance, "no-enhance", false, "skip input enhancement")
	processCmd.Flags().BoolVar(&noMultiFetch, "no-multifetch", false, "skip link expansion")
	processCmd.Flags().BoolVar(&useTUI, "tui", false, "show live progress view")
	processCmd.MarkFlagRequired("root")
	rootCmd.AddCommand(processCmd)

	fetchCmd := &cobra.Command{
		Use:   "fetch IDENTIFIER",
		Short: "Fetch a single resource through the cache",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
	}
	rootCmd.AddCommand(fetchCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the worker pool coordinator and refresh scheduler",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)

	refreshCmd := &cobra.Command{
		Use:   "refresh [JOB]",
		Short: "Run a scheduled refresh job once, or list jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRefresh,
	}
	rootCmd.AddCommand(refreshCmd)

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Join a coordinator as a remote squad worker",
		RunE:  runWorker,
	}
	workerCmd.Flags().StringVar(&workerServer, "server", "", "coordinator websocket URL (default from config)")
	workerCmd.Flags().StringVar(&workerID, "id", "", "worker ID (default hostname)")
	workerCmd.Flags().StringSliceVar(&workerSquads, "squads", nil, "squads this worker serves (empty = all)")
	workerCmd.Flags().IntVar(&workerMaxTasks, "max-tasks", 2, "concurrent task slots")
	rootCmd.AddCommand(workerCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ctx-orch %s\n", version)
		},
	}
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// pipeline bundles the wired subsystems for one command invocation
type pipeline struct {
	cfg       *config.Config
	store     *resourcestore.Store
	fallbacks *fallback.Table
	fetch     *fetcher.Fetcher
	expander  *multifetch.Coordinator
	pool      *workerpool.Coordinator
	orch      *orchestrator.Orchestrator
	scheduler *refresh.Scheduler
}

func buildPipeline() (*pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Cache.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	store, err := resourcestore.New(cfg.Cache.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening resource cache: %w", err)
	}

	fallbacks, err := fallback.Load(cfg.Fallback.Dir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading fallbacks: %w", err)
	}

	fetch := fetcher.New(store, fallbacks, fetcher.Options{
		Timeout: cfg.Fetch.Timeout(),
		TTL:     cfg.Cache.TTL(),
		Policy: fetcher.RetryPolicy{
			MaxRetries:     cfg.Fetch.MaxRetries,
			BaseDelay:      time.Duration(cfg.Fetch.BaseDelayMs) * time.Millisecond,
			Multiplier:     cfg.Fetch.Multiplier,
			JitterRatio:    cfg.Fetch.JitterRatio,
			RateLimitDelay: time.Duration(cfg.Fetch.RateLimitDelayMs) * time.Millisecond,
		},
		ScopePrefix: cfg.Fetch.ScopePrefix,
	})

	expander := multifetch.New(fetch, multifetch.Options{
		MaxDepth:       cfg.MultiFetch.MaxDepth,
		MaxConcurrency: cfg.MultiFetch.MaxConcurrency,
		SessionTimeout: cfg.MultiFetch.SessionTimeout(),
	})

	engine := enhance.New(enhance.KeywordStrategy{}, enhance.ContextExecutor{}, enhance.Bounds{
		MinQueries:          cfg.Enhance.MinQueries,
		MaxQueries:          cfg.Enhance.MaxQueries,
		MaxPhases:           cfg.Enhance.MaxPhases,
		MaxSubTasksPerPhase: cfg.Enhance.MaxSubTasksPerPhase,
	})

	embedded := workerpool.NewEmbeddedRunner(workerpool.EmbeddedConfig{
		MaxTasks: cfg.Pool.EmbeddedSlots,
	})
	pool := workerpool.NewCoordinator(workerpool.CoordinatorConfig{
		ListenPort:        cfg.Pool.WebSocketPort,
		HeartbeatInterval: time.Duration(cfg.Pool.HeartbeatIntervalSecs) * time.Second,
		HeartbeatTimeout:  time.Duration(cfg.Pool.HeartbeatTimeoutSecs) * time.Second,
	}, workerpool.NewRegistry(), embedded)

	dispatcher := squad.NewCoordinator(squad.NewRegistry(cfg.Squads), pool)

	orch := orchestrator.New(engine, fetch, expander, dispatcher)

	var notifiers []notify.Notifier
	if cfg.Notifications.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notifications.SlackWebhook))
	}
	if cfg.Notifications.Desktop {
		notifiers = append(notifiers, notify.NewDesktopNotifier(true))
	}
	if len(notifiers) > 0 {
		orch.SetNotifier(notify.NewMultiNotifier(notifiers...))
	}

	var scheduler *refresh.Scheduler
	if len(cfg.Refresh) > 0 {
		scheduler, err = refresh.NewScheduler(cfg.Refresh, fetch, store, cfg.MultiFetch.MaxConcurrency)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return &pipeline{
		cfg:       cfg,
		store:     store,
		fallbacks: fallbacks,
		fetch:     fetch,
		expander:  expander,
		pool:      pool,
		orch:      orch,
		scheduler: scheduler,
	}, nil
}

func (p *pipeline) Close() {
	p.store.Close()
}

func runProcess(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	input := strings.Join(args, " ")
	opts := orchestrator.Options{
		EnableEnhancement: p.cfg.Enhance.Enabled && !noEnhance,
		EnableMultiFetch:  p.cfg.MultiFetch.Enabled && !noMultiFetch,
	}

	if useTUI {
		return runProcessTUI(p, input, opts)
	}

	p.orch.SetProgress(func(e orchestrator.Event) {
		fmt.Printf("[%s] %s\n", e.Kind, e.Message)
	})

	result := p.orch.Process(cmd.Context(), input, processRoot, opts)
	printResult(result)
	if !result.Success {
		return fmt.Errorf("root fetch failed: %s", result.Metadata.RootErrorKind)
	}
	return nil
}

func runProcessTUI(p *pipeline, input string, opts orchestrator.Options) error {
	events := make(chan tea.Msg, 64)
	p.orch.SetProgress(func(e orchestrator.Event) {
		events <- tui.EventMsg(e)
	})

	go func() {
		result := p.orch.Process(context.Background(), input, processRoot, opts)
		events <- tui.ResultMsg{Result: result}
	}()

	prog := tea.NewProgram(tui.NewModel(processRoot, events), tea.WithAltScreen())
	_, err := prog.Run()
	return err
}

func printResult(result *domain.IntegrationResult) {
	status := "SUCCESS"
	if !result.Success {
		status = fmt.Sprintf("FAILED (%s)", result.Metadata.RootErrorKind)
	}
	fmt.Printf("\nResult: %s | %d fetched, %d failed | %dms\n",
		status, result.Metadata.ResourcesFetched, result.Metadata.ResourcesFailed,
		result.Metadata.ElapsedMs)

	if result.EnhancedInput != nil {
		fmt.Printf("Enhancement: %d findings, %d phases, %d sub-tasks\n",
			len(result.EnhancedInput.ResearchFindings),
			len(result.EnhancedInput.TaskHierarchy),
			result.EnhancedInput.SubTaskCount())
		for _, gap := range result.EnhancedInput.GapAnalysis {
			fmt.Printf("  gap: %s\n", gap)
		}
	}

	if len(result.Assignments) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PHASE\tTASK\tSQUAD\tSTATUS")
		for _, a := range result.Assignments {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.PhaseName, a.SubTask.Name, a.Squad, a.Status())
		}
		w.Flush()
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	result := p.fetch.Fetch(cmd.Context(), args[0])

	fmt.Printf("Status:  %s\n", result.Resource.FetchStatus)
	if !result.Success {
		fmt.Printf("Error:   %s\n", result.ErrorKind)
	}
	fmt.Printf("Type:    %s\n", result.Resource.ContentType)
	fmt.Printf("Retries: %d\n", result.RetryCount)
	fmt.Printf("Elapsed: %dms\n", result.ElapsedMs)
	if len(result.Resource.LinksFound) > 0 {
		fmt.Println("Links:")
		for _, link := range result.Resource.LinksFound {
			fmt.Printf("  %s\n", link)
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if p.cfg.Fallback.Watch {
		watcher, err := fallback.NewWatcher(p.fallbacks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fallback watcher unavailable: %v\n", err)
		} else {
			watcher.Start(ctx)
			defer watcher.Stop()
		}
	}

	if p.scheduler != nil {
		go p.scheduler.Start(ctx)
		defer p.scheduler.Stop()
	}

	go func() {
		<-ctx.Done()
		p.pool.Stop()
	}()

	fmt.Printf("Worker pool listening on :%d\n", p.cfg.Pool.WebSocketPort)
	if err := p.pool.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	serverURL := workerServer
	if serverURL == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		serverURL = fmt.Sprintf("ws://localhost:%d/ws", cfg.Pool.WebSocketPort)
	}

	id := workerID
	if id == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolving worker ID: %w", err)
		}
		id = hostname
	}

	worker, err := workerpool.NewWorker(workerpool.WorkerConfig{
		ServerURL: serverURL,
		WorkerID:  id,
		Squads:    workerSquads,
		MaxTasks:  workerMaxTasks,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		worker.Stop()
	}()

	fmt.Printf("Worker %s connecting to %s (squads: %s)\n", id, serverURL, squadLabel(workerSquads))
	return worker.RunWithReconnect()
}

func squadLabel(squads []string) string {
	if len(squads) == 0 {
		return "all"
	}
	return strings.Join(squads, ", ")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	if p.scheduler == nil {
		fmt.Println("No refresh jobs configured")
		return nil
	}

	if len(args) == 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "JOB\tNEXT RUN")
		for _, name := range p.scheduler.Jobs() {
			fmt.Fprintf(w, "%s\t%s\n", name, p.scheduler.NextRun(name).Format(time.RFC3339))
		}
		w.Flush()
		return nil
	}

	name := args[0]
	p.scheduler.MarkRunning(name)
	defer p.scheduler.MarkComplete(name)
	if err := p.scheduler.RunJob(cmd.Context(), name); err != nil {
		return err
	}
	fmt.Printf("Refreshed job %s\n", name)
	return nil
}
