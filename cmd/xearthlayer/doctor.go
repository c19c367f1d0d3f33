package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xearthlayer/xearthlayer/internal/cache"
	"github.com/xearthlayer/xearthlayer/internal/config"
	"github.com/xearthlayer/xearthlayer/internal/dds"
	"github.com/xearthlayer/xearthlayer/internal/ortho"
)

func addDoctorCommand(parent *cobra.Command) {
	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and scenery layout without mounting",
		Long:  "Loads xearthlayer.toml, scans the scenery root, builds the union index, and reports what serve would see — without touching the network or FUSE.",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
	parent.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ok := true

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(out, "[FAIL] load config: %v\n", err)
		return &startupError{err}
	}
	fmt.Fprintf(out, "[ OK ] config loaded from %s\n", configPath)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "[FAIL] config validation: %v\n", err)
		ok = false
	} else {
		fmt.Fprintf(out, "[ OK ] config validation: %d provider(s)\n", len(cfg.Providers))
	}

	if info, err := os.Stat(cfg.SceneryRoot); err != nil || !info.IsDir() {
		fmt.Fprintf(out, "[FAIL] scenery_root %q is not a readable directory\n", cfg.SceneryRoot)
		ok = false
	} else {
		sources, err := ortho.ScanSources(cfg.SceneryRoot)
		if err != nil {
			fmt.Fprintf(out, "[FAIL] scanning scenery root: %v\n", err)
			ok = false
		} else {
			index := ortho.BuildIndex(sources)
			fmt.Fprintf(out, "[ OK ] scenery root %q: %d source(s), %d resolvable file(s)\n", cfg.SceneryRoot, len(index.SourceNames()), index.FileCount())
			if index.IsEmpty() {
				fmt.Fprintf(out, "[WARN] union index is empty; every texture path will be synthesised on demand\n")
			}
		}
	}

	memBudget := cache.ComputeMemoryBudget(cfg.Cache.MemoryBudgetFraction)
	if memBudget == 0 {
		memBudget = fallbackMemoryBudget
		fmt.Fprintf(out, "[WARN] could not detect system RAM; falling back to %s memory budget\n", humanize.Bytes(uint64(memBudget)))
	} else {
		fmt.Fprintf(out, "[ OK ] memory cache budget: %s\n", humanize.Bytes(uint64(memBudget)))
	}
	fmt.Fprintf(out, "[ OK ] disk cache budget: %s at %s\n", humanize.Bytes(uint64(cfg.Cache.DiskBudgetBytes)), cfg.CacheRoot)

	placeholder := dds.Placeholder()
	fmt.Fprintf(out, "[ OK ] placeholder artifact built: %s, magic %q\n", humanize.Bytes(uint64(len(placeholder))), placeholder[:4])

	if !ok {
		return &startupError{fmt.Errorf("doctor: one or more checks failed")}
	}
	fmt.Fprintln(out, "all checks passed")
	return nil
}
