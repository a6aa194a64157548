package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"override-validator/internal/dsc"
	"override-validator/internal/override"
	"override-validator/internal/report"
)

func newValidateCmd(a *app) *cobra.Command {
	var defines []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the override tags of every module a platform builds",
		Long: `Validate the override tags of every module a platform builds.

The platform DSC (and the FDF it names) is parsed for referenced INFs; each
INF's override and track tags are checked recursively against the current
workspace. The report is written to <output>/OVERRIDELOG.TXT.

Settings fall back to ACTIVE_PLATFORM, FLASH_DEFINITION, BUILD_OUTPUT_BASE,
TARGET, PRODUCT_NAME, BLD_*_BUILDID_STRING and BLD_*_BUILDSHA.

The exit status is the number of modules that failed validation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runValidate(cmd, defines)
		},
	}
	f := cmd.Flags()
	f.String("platform", "", "workspace-relative platform DSC (or $ACTIVE_PLATFORM)")
	f.String("fdf", "", "workspace-relative flash description (default: FLASH_DEFINITION from the DSC)")
	f.String("output", "", "directory for OVERRIDELOG.TXT (or $BUILD_OUTPUT_BASE)")
	f.String("build-target", "", "build target injected as TARGET (or $TARGET)")
	f.String("product-name", "", "platform name printed in the report (or $PRODUCT_NAME)")
	f.StringArrayVarP(&defines, "define", "D", nil, "input variable KEY=VALUE for descriptor parsing (repeatable)")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, defines []string) error {
	start := a.now()
	cfg, r, err := a.resolver(cmd, defines)
	if err != nil {
		return err
	}
	if cfg.ActivePlatform == "" {
		a.logger.Warn("no active platform, nothing to validate")
		return nil
	}

	infs, err := dsc.Enumerate(r, cfg.InputVars(), cfg.ActivePlatform, cfg.FlashDefinition, dsc.WithLogger(a.logger))
	if err != nil {
		return fatal(fmt.Errorf("enumerate %s: %w", cfg.ActivePlatform, err))
	}

	w := override.NewWalker(r, override.WithLogger(a.logger), override.WithClock(a.now))
	res := w.Walk(infs)

	if cfg.BuildOutputBase != "" {
		h := report.Header{Platform: cfg.ProductName, Version: cfg.BuildID, Commit: cfg.BuildSHA, Date: start}
		path, err := report.Write(cfg.BuildOutputBase, h, res)
		if err != nil {
			return fatal(err)
		}
		a.logger.Info("override log written", "path", path)
	} else {
		a.logger.Warn("no build output directory, report not written")
	}

	a.printSummary(res)
	return failures(res.Failures)
}

func (a *app) printSummary(res override.Result) {
	line := fmt.Sprintf("%d/%d tags in sync across %d module(s)", res.OK, res.Total, len(res.Nodes))
	if res.Failures == 0 {
		fmt.Fprintln(a.stdout, SuccessStyle.Render("✓ "+line))
		return
	}
	fmt.Fprintln(a.stdout, ErrorStyle.Render(fmt.Sprintf("✗ %s, %d failing", line, res.Failures)))
	for _, n := range res.Nodes {
		if n.Status != override.OK {
			fmt.Fprintf(a.stdout, "  %s %s\n", WarningStyle.Render(n.Status.String()), n.Path)
		}
	}
}
