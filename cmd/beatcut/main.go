package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keagan/beatcut/internal/api"
	"github.com/keagan/beatcut/internal/clips"
	"github.com/keagan/beatcut/internal/config"
	"github.com/keagan/beatcut/internal/logging"
	"github.com/keagan/beatcut/internal/overlays"
	"github.com/keagan/beatcut/internal/pipeline"
	"github.com/keagan/beatcut/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "dev"

var (
	cfgFile string
	verbose bool
	logJSON bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "beatcut",
	Short:         "beatcut - beat-synced vertical video assembly",
	Long:          "Cuts a b-roll library to the beat of an audio track and renders looping 9:16 videos.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logging.Options{Verbose: verbose, JSON: logJSON})

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

// sourceFlags selects the clip source of a command
type sourceFlags struct {
	theme    string
	files    []string
	query    string
	provider string
}

func (s *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.theme, "theme", "", "theme directory under the library root")
	cmd.Flags().StringSliceVar(&s.files, "files", nil, "explicit clip files")
	cmd.Flags().StringVar(&s.query, "query", "", "provider query whose downloads to use")
	cmd.Flags().StringVar(&s.provider, "provider-dir", "", "provider download directory")
}

func (s *sourceFlags) source() (clips.Source, error) {
	return clips.SourceSpec{
		Theme:    s.theme,
		Files:    s.files,
		Query:    s.query,
		Provider: s.provider,
	}.Source()
}

// jobFlags are shared by plan and render
type jobFlags struct {
	sourceFlags
	seed     int64
	poolSize int
	cuts     []float64
}

func (j *jobFlags) register(cmd *cobra.Command) {
	j.sourceFlags.register(cmd)
	cmd.Flags().Int64Var(&j.seed, "seed", 0, "seed of the first variant (default: derived from inputs)")
	cmd.Flags().IntVar(&j.poolSize, "pool-size", 0, "plan over this many high-motion clips (0 = all)")
	cmd.Flags().Float64SliceVar(&j.cuts, "cuts", nil, "explicit cut durations in seconds")
}

func (j *jobFlags) job(cmd *cobra.Command, audio string) (pipeline.Job, error) {
	src, err := j.source()
	if err != nil {
		return pipeline.Job{}, err
	}
	job := pipeline.Job{
		Audio:        audio,
		Source:       src,
		PoolSize:     j.poolSize,
		CutDurations: j.cuts,
	}
	if cmd.Flags().Changed("seed") {
		seed := j.seed
		job.Seed = &seed
	}
	return job, nil
}

func openPipeline(cmd *cobra.Command) (*pipeline.Pipeline, error) {
	return pipeline.New(cmd.Context(), log.Logger, config.FromContext(cmd.Context()))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [audio]",
	Short: "Detect tempo and beats of an audio track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		grid, err := pipe.Analyze(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(grid)
	},
}

var (
	indexSource sourceFlags
	indexTop    int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Probe and motion-score library clips",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := indexSource.source()
		if err != nil {
			return err
		}

		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		metas, err := pipe.Pool(cmd.Context(), src)
		if err != nil {
			return err
		}

		for _, line := range clips.Summary(metas, pipe.Config().Library.Root, indexTop) {
			fmt.Println(line)
		}
		log.Info().Int("usable", len(metas)).Msg("index complete")
		return nil
	},
}

var (
	planFlags   jobFlags
	planVariant int
)

var planCmd = &cobra.Command{
	Use:   "plan [audio]",
	Short: "Print the edit plan for an audio track without rendering",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := planFlags.job(cmd, args[0])
		if err != nil {
			return err
		}

		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		plan, _, err := pipe.Plan(cmd.Context(), job, planVariant)
		if err != nil {
			return err
		}
		return printJSON(plan)
	},
}

var (
	renderFlags  jobFlags
	renderOut    string
	renderName   string
	renderCount  int
	renderForce  bool
	renderOffset float64
	renderHook   string
)

var renderCmd = &cobra.Command{
	Use:   "render [audio]",
	Short: "Render beat-synced variants for an audio track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := renderFlags.job(cmd, args[0])
		if err != nil {
			return err
		}
		job.OutputDir = renderOut
		job.Name = renderName
		job.Variants = renderCount
		job.Overwrite = renderForce
		job.ExtraOffset = renderOffset
		job.Hook = renderHook

		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		result, err := pipe.Run(cmd.Context(), job)
		if err != nil {
			return err
		}

		for _, v := range result.Variants {
			event := log.Info().Str("variant", v.Name).Str("output", v.Output).Int64("seed", v.Seed)
			if v.Skipped {
				event.Msg("skipped existing output")
				continue
			}
			event.Str("length", util.FormatClock(v.Plan.Duration)).Msg("rendered")
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := openPipeline(cmd)
		if err != nil {
			return err
		}
		defer pipe.Close()

		srv := api.NewServer(api.ServerConfig{
			Addr:    pipe.Config().Server.Addr,
			Service: pipe,
			Logger:  log.Logger,
			Version: version,
		})

		errc := make(chan error, 1)
		go func() { errc <- srv.Start() }()

		select {
		case err := <-errc:
			return err
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "beatcut.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list [styles]",
	Short: "List available resources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] != "styles" {
			return fmt.Errorf("unknown resource %q", args[0])
		}
		cfg := config.FromContext(cmd.Context())
		registry := overlays.NewRegistry(cfg.Text)
		for _, style := range registry.List() {
			layout, _ := registry.Get(style)
			fmt.Printf("%-8s size=%d wrap=%d\n", style, layout.FontSize, layout.Wrap)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./beatcut.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON lines")

	indexSource.register(indexCmd)
	indexCmd.Flags().IntVar(&indexTop, "top", 20, "clips to list, by motion")

	planFlags.register(planCmd)
	planCmd.Flags().IntVar(&planVariant, "variant", 0, "variant index, counting from zero")

	renderFlags.register(renderCmd)
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output directory (default: work_dir)")
	renderCmd.Flags().StringVar(&renderName, "name", "", "output base name (default: audio file name)")
	renderCmd.Flags().IntVarP(&renderCount, "variants", "n", 1, "variants to render")
	renderCmd.Flags().BoolVarP(&renderForce, "overwrite", "f", false, "replace existing outputs")
	renderCmd.Flags().Float64Var(&renderOffset, "offset", 0, "extra audio start offset in seconds")
	renderCmd.Flags().StringVar(&renderHook, "hook", "", "hook text shown for the whole video")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(listCmd)
}
