// main.go bootstraps zipmerge: it builds the root cobra command and runs
// it with a signal-aware context.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meigma/zipmerge"
	"github.com/meigma/zipmerge/buildinfo"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

type combineOptions struct {
	output         string
	sources        []string
	resources      []string
	manifestLines  []string
	compression    string
	normalize      bool
	copyMode       bool
	strictManifest bool
	rulesFile      string
	verbose        bool
}

func newRootCommand() *cobra.Command {
	opts := &combineOptions{}

	cmd := &cobra.Command{
		Use:           "zipmerge",
		Short:         "Merge zip and jar archives into one deterministic archive",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCombine(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "output archive path (required)")
	flags.StringSliceVar(&opts.sources, "sources", nil, "source archives, merged in order")
	flags.StringArrayVar(&opts.resources, "resource", nil, "loose file to add, as path or path:entryname")
	flags.StringArrayVar(&opts.manifestLines, "manifest-line", nil, "manifest attribute line, takes precedence over input manifests")
	flags.StringVar(&opts.compression, "compression", "passthrough", "output compression: passthrough, deflate, or store")
	flags.BoolVar(&opts.normalize, "normalize", false, "zero entry timestamps for reproducible output")
	flags.BoolVar(&opts.copyMode, "copy", false, "plain copy mode: no jar handling, any collision fails")
	flags.BoolVar(&opts.strictManifest, "strict-manifest", false, "fail when input manifests disagree on an attribute")
	flags.StringVar(&opts.rulesFile, "rules", "", "yaml file of {pattern, policy} collision rules")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	cobra.CheckErr(cmd.MarkFlagRequired("output"))

	cmd.AddCommand(newBuildInfoCommand())
	return cmd
}

func runCombine(ctx context.Context, opts *combineOptions) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is uninteresting

	compression, err := parseCompression(opts.compression)
	if err != nil {
		return err
	}
	loose, err := parseResources(opts.resources)
	if err != nil {
		return err
	}

	var rules []zipmerge.Rule
	if opts.rulesFile != "" {
		rules, err = loadRules(opts.rulesFile)
		if err != nil {
			return err
		}
	}
	strategy, err := zipmerge.NewStrategy(rules...)
	if err != nil {
		return err
	}

	common := []zipmerge.Option{
		zipmerge.WithCompression(compression),
		zipmerge.WithNormalizedTimestamps(opts.normalize),
		zipmerge.WithStrictManifest(opts.strictManifest),
	}
	var c *zipmerge.Combiner
	if opts.copyMode {
		if len(rules) > 0 {
			return fmt.Errorf("--rules has no effect in --copy mode")
		}
		if len(opts.manifestLines) > 0 {
			return fmt.Errorf("--manifest-line has no effect in --copy mode")
		}
		c = zipmerge.New(append(common, zipmerge.WithFilter(zipmerge.CopyPolicy()))...)
	} else {
		c = zipmerge.NewJarCombiner(strategy, opts.manifestLines, common...)
	}

	logger.Debug("combining",
		zap.String("output", opts.output),
		zap.Int("archives", len(opts.sources)),
		zap.Int("resources", len(loose)),
	)
	start := time.Now()
	if err := c.Combine(ctx, opts.output, opts.sources, loose); err != nil {
		return err
	}
	logger.Info("combined",
		zap.String("output", opts.output),
		zap.Int("archives", len(opts.sources)),
		zap.Int("resources", len(loose)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return config.Build()
}

func parseCompression(s string) (zipmerge.Compression, error) {
	switch strings.ToLower(s) {
	case "passthrough", "":
		return zipmerge.CompressionPassthrough, nil
	case "deflate":
		return zipmerge.CompressionDeflate, nil
	case "store":
		return zipmerge.CompressionStore, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (expected passthrough, deflate, or store)", s)
	}
}

// parseResources splits "path" or "path:entryname" loose-file arguments.
func parseResources(args []string) ([]zipmerge.LooseFile, error) {
	loose := make([]zipmerge.LooseFile, 0, len(args))
	for _, arg := range args {
		path, name, _ := strings.Cut(arg, ":")
		if path == "" {
			return nil, fmt.Errorf("empty resource path in %q", arg)
		}
		loose = append(loose, zipmerge.LooseFile{Path: path, Name: name})
	}
	return loose, nil
}

func newBuildInfoCommand() *cobra.Command {
	var (
		output       string
		statusFiles  []string
		stableKeys   []string
		volatileKeys []string
		translations []string
		volatile     bool
	)

	cmd := &cobra.Command{
		Use:   "buildinfo",
		Short: "Write a build information properties file",
		Long: `Write a Java properties file with build information read from
workspace status files. The result is meant to be fed back into the
combiner as a loose resource. Without status files every key is redacted,
keeping the output stable across builds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := buildinfo.Options{
				StatusFiles:     statusFiles,
				IncludeVolatile: volatile,
			}
			var err error
			if opts.StableKeys, err = parseKeys(stableKeys); err != nil {
				return err
			}
			if opts.VolatileKeys, err = parseKeys(volatileKeys); err != nil {
				return err
			}
			if opts.Translations, err = parseTranslations(translations); err != nil {
				return err
			}
			return buildinfo.WriteFile(output, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "properties file path (required)")
	flags.StringSliceVar(&statusFiles, "status", nil, "workspace status files, later files override earlier")
	flags.StringArrayVar(&stableKeys, "stable-key", nil, "stable key as NAME[=default[:redacted]]")
	flags.StringArrayVar(&volatileKeys, "volatile-key", nil, "volatile key as NAME[=default[:redacted]]")
	flags.StringArrayVar(&translations, "translate", nil, "rename a key in the output, as STATUSKEY=PROPERTY")
	flags.BoolVar(&volatile, "volatile", false, "include volatile keys and the build timestamp")
	cobra.CheckErr(cmd.MarkFlagRequired("output"))
	return cmd
}

// parseKeys reads NAME[=default[:redacted]] key declarations.
func parseKeys(args []string) (map[string]buildinfo.Key, error) {
	if len(args) == 0 {
		return nil, nil
	}
	keys := make(map[string]buildinfo.Key, len(args))
	for _, arg := range args {
		name, rest, _ := strings.Cut(arg, "=")
		if name == "" {
			return nil, fmt.Errorf("empty key name in %q", arg)
		}
		def, redacted, ok := strings.Cut(rest, ":")
		if !ok {
			redacted = "redacted"
		}
		keys[name] = buildinfo.Key{Default: def, Redacted: redacted}
	}
	return keys, nil
}

func parseTranslations(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(args))
	for _, arg := range args {
		from, to, ok := strings.Cut(arg, "=")
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("bad translation %q (expected STATUSKEY=PROPERTY)", arg)
		}
		m[from] = to
	}
	return m, nil
}
