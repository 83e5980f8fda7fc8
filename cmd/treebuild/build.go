package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/udisondev/spelllearn/internal/catalog"
	"github.com/udisondev/spelllearn/internal/config"
	"github.com/udisondev/spelllearn/internal/formid"
	"github.com/udisondev/spelllearn/internal/oracle"
	"github.com/udisondev/spelllearn/internal/pybridge"
	"github.com/udisondev/spelllearn/internal/tree"
)

var (
	catalogPath string
	outPath     string
	strategy    string
	configPath  string
	seed        int64
	fanOut      int
	softEdges   float64
	verbose     bool
)

func init() {
	rootCmd.Flags().StringVar(&catalogPath, "catalog", "spells.json", "scanned spell catalog JSON")
	rootCmd.Flags().StringVar(&outPath, "out", "tree.json", "output tree path")
	rootCmd.Flags().StringVar(&strategy, "strategy", tree.StrategyClassic, "classic, thematic or oracle")
	rootCmd.Flags().StringVar(&configPath, "config", "", "unified config file (oracle credentials)")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "classic jitter seed, 0 for the fixed default")
	rootCmd.Flags().IntVar(&fanOut, "fan-out", 3, "max children per node")
	rootCmd.Flags().Float64Var(&softEdges, "soft-threshold", 0.82, "same-tier soft edge similarity, 0 disables")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")
}

func runBuild(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return err
	}
	slog.Info("catalog loaded", "path", catalogPath, "spells", len(cat.Spells))

	opts := tree.Options{
		Strategy:          strategy,
		FanOutCap:         fanOut,
		SoftEdgeThreshold: softEdges,
		Seed:              seed,
	}
	if strategy == tree.StrategyOracle {
		cfg, err := config.Load(configPath)
		if err != nil {
			slog.Warn("config load failed, using defaults", "error", err)
		}
		if cfg.PythonHelper.Enabled {
			dial := pybridge.SubprocessDialer(cfg.PythonHelper.Python, cfg.PythonHelper.Script)
			if cfg.PythonHelper.Address != "" {
				dial = pybridge.TCPDialer(cfg.PythonHelper.Address)
			}
			bridge := pybridge.New(dial)
			defer bridge.Close()
			opts.Helper = bridge
		}
		client := oracle.NewClient(cfg.Oracle)
		if client.Configured() {
			opts.Oracle = client
		} else if opts.Helper == nil {
			return fmt.Errorf("oracle strategy needs LLM credentials or pythonHelper.enabled in %s", configPath)
		}
	}

	t, err := tree.Build(ctx, cat, opts)
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}

	// A fresh build references no stale plugins, but running the repair
	// pass catches catalogs scanned under a different load order.
	validator := tree.Validator{Resolver: formid.NewResolver(pluginTableFromCatalog(cat))}
	report := validator.ValidateAndFix(t)
	slog.Info("tree validated", "report", report.String())

	if err := t.Save(outPath); err != nil {
		return err
	}
	slog.Info("tree written", "path", outPath, "schools", len(t.Schools), "nodes", t.NodeCount())
	return nil
}

// pluginTableFromCatalog synthesizes a plugin table from the catalog's own
// persistent IDs, since no host data handler exists offline.
func pluginTableFromCatalog(cat *catalog.Catalog) *formid.PluginTable {
	table := formid.NewPluginTable()
	for _, sp := range cat.Spells {
		plugin, _, err := formid.SplitPersistent(sp.PersistentID)
		if err != nil {
			continue
		}
		id, err := formid.ParseHex(sp.FormID)
		if err != nil {
			continue
		}
		if id.IsLight() {
			table.AddLight(uint16(id>>12)&0xFFF, plugin)
		} else {
			table.AddRegular(uint8(id>>24), plugin)
		}
	}
	return table
}
