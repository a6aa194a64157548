package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"override-validator/internal/config"
	"override-validator/internal/edk2path"
	"override-validator/internal/fingerprint"
	"override-validator/internal/regen"
	"override-validator/internal/tag"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	stdout, stderr io.Writer
	logger         *log.Logger
	now            func() time.Time

	cfgFile  string
	logLevel string

	modulePath string
	targetPath string
	regenPath  string
	version    int
	track      bool
	dryRun     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, now: time.Now}

	root := &cobra.Command{
		Use:   "override-validator",
		Short: "Validate and maintain EDK II module override tags",
		Long: TitleStyle.Render("override-validator") + SubtitleStyle.Render(" - EDK II module override tags") + `

Override and Track tags are INF comment lines that pin a module to the
fingerprint of the module it was derived from:

  #Override : 00000002 | MdeModulePkg/Core/Dxe/DxeMain.inf | <md5> | 2024-01-01T00-00-00 | <commit>

` + SubtitleStyle.Render("Examples:") + `
  override-validator -w . -m MdeModulePkg/Core/Dxe/DxeMain.inf   Print a tag for a module
  override-validator -w . -t Platform/Logo --track             Print a Track tag for a folder
  override-validator -w . -r Platform/Dxe/DxeMain.inf --dry-run  Preview refreshed tags
  override-validator validate --platform Board/Board.dsc       Validate a platform`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			l, err := newLogger(a.stderr, a.logLevel)
			if err != nil {
				return fatal(err)
			}
			a.logger = l
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMaintainer(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("workspace", "w", "", "workspace root (or $WORKSPACE)")
	pf.StringArrayP("package-path", "p", nil, "additional package path root (repeatable)")
	pf.StringVar(&a.cfgFile, "config", "", "config file (TOML, YAML or JSON)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	f := root.Flags()
	f.StringVarP(&a.modulePath, "module", "m", "", "module INF to emit a tag for")
	f.StringVarP(&a.targetPath, "target", "t", "", "file or folder to emit a tag for")
	f.StringVarP(&a.regenPath, "regenerate", "r", "", "INF whose tags are refreshed in place")
	f.IntVarP(&a.version, "tag-version", "v", 1, "tag format version to emit (1 or 2)")
	f.BoolVar(&a.track, "track", false, "emit a Track tag instead of an Override tag")
	f.BoolVar(&a.dryRun, "dry-run", false, "with -r, print a diff instead of writing")
	root.MarkFlagsMutuallyExclusive("module", "target", "regenerate")

	root.AddCommand(newValidateCmd(a))
	return root
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "override",
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}), nil
}

// resolver loads the configuration and builds the path resolver for it.
func (a *app) resolver(cmd *cobra.Command, defines []string) (*config.Config, *edk2path.Resolver, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: a.cfgFile, Flags: cmd.Flags(), Defines: defines})
	if err != nil {
		return nil, nil, fatal(err)
	}
	if cfg.Workspace == "" {
		return nil, nil, fatal(errors.New("workspace is required: pass -w or set WORKSPACE"))
	}
	r, err := edk2path.New(cfg.Workspace, cfg.PackagesPath, edk2path.WithLogger(a.logger))
	if err != nil {
		return nil, nil, fatal(err)
	}
	if cfg.File != "" {
		a.logger.Debug("configuration loaded", "file", cfg.File)
	}
	return cfg, r, nil
}

func (a *app) runMaintainer(cmd *cobra.Command) error {
	if a.modulePath == "" && a.targetPath == "" && a.regenPath == "" {
		return cmd.Help()
	}
	if !tag.Supported(a.version) {
		return fatal(fmt.Errorf("-v %d: supported tag versions are %v", a.version, tag.Versions()))
	}
	_, r, err := a.resolver(cmd, nil)
	if err != nil {
		return err
	}
	g := regen.New(r, regen.WithLogger(a.logger), regen.WithClock(a.now))

	switch {
	case a.regenPath != "":
		return a.regenerate(cmd, g)
	case a.modulePath != "":
		if !fingerprint.IsINF(a.modulePath) {
			return fatal(fmt.Errorf("-m %s: not an INF file", a.modulePath))
		}
		if st, err := os.Stat(a.modulePath); err != nil || st.IsDir() {
			return fatal(fmt.Errorf("-m %s: module path is invalid", a.modulePath))
		}
		return a.emitTag(g, a.modulePath)
	default:
		return a.emitTag(g, a.targetPath)
	}
}

func (a *app) kind() tag.Kind {
	if a.track {
		return tag.Track
	}
	return tag.Override
}

func (a *app) emitTag(g *regen.Regenerator, target string) error {
	line, err := g.TagLine(target, a.kind(), a.version)
	if err != nil {
		return fatal(err)
	}
	fmt.Fprintln(a.stdout, SubtitleStyle.Render("Copy and paste the following line(s) to your overrider inf file(s):"))
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, TagStyle.Render(line))
	return nil
}

func (a *app) regenerate(cmd *cobra.Command, g *regen.Regenerator) error {
	// Without -v each line keeps its own version.
	opt := regen.Options{DryRun: a.dryRun}
	if cmd.Flags().Changed("tag-version") {
		opt.Version = a.version
	}
	res, d, err := g.Regenerate(a.regenPath, opt)
	if err != nil {
		return fatal(err)
	}
	if d != "" {
		fmt.Fprint(a.stdout, d)
	}
	verb := "updated"
	if a.dryRun {
		verb = "would update"
	}
	summary := fmt.Sprintf("%s %d tag(s), %d unchanged", verb, res.Updated, res.Unchanged)
	style := SuccessStyle
	if res.Unresolved > 0 {
		summary += fmt.Sprintf(", %d unresolved", res.Unresolved)
		style = WarningStyle
	}
	fmt.Fprintln(a.stdout, style.Render(strings.TrimSpace(summary)))
	return nil
}
