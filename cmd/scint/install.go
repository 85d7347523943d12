package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kraklabs/scint/internal/archive"
	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/config"
	"github.com/kraklabs/scint/internal/errs"
	"github.com/kraklabs/scint/internal/fsutil"
	"github.com/kraklabs/scint/internal/materialize"
	"github.com/kraklabs/scint/internal/nativebuild"
	"github.com/kraklabs/scint/internal/planner"
	"github.com/kraklabs/scint/internal/preparer"
	"github.com/kraklabs/scint/internal/progress"
	"github.com/kraklabs/scint/internal/promote"
	"github.com/kraklabs/scint/internal/resolve"
	"github.com/kraklabs/scint/internal/runtimesetup"
	"github.com/kraklabs/scint/internal/scheduler"
	"github.com/kraklabs/scint/internal/sctx"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "resolve and install the locked dependency set",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runInstall(cmd.Context(), cfg)
	},
}

// hostABI derives a default ABI key for a standalone run of scint
// itself, when no embedding runtime supplies an ABI override via
// SCINT_ABI.
func hostABI() cache.ABIKey {
	if v := os.Getenv("SCINT_ABI"); v != "" {
		return cache.ABIKey(v)
	}
	return cache.ABIKey(fmt.Sprintf("%s-%s-%s", runtime.Version(), runtime.GOOS, runtime.GOARCH))
}

func runInstall(ctx context.Context, cfg config.Config) error {
	log := sctx.GetLogger(ctx)

	layout := cache.NewLayout(cfg.Cache.Root)
	promoter := promote.New(layout)
	if cfg.Debug.WatchStaging {
		promoter.WithStagingWatch(sctx.Entry(ctx))
	}
	abi := hostABI()

	resolver := resolve.LockResolver{}
	specs, err := resolver.Resolve("scint.manifest", "scint.lock")
	if err != nil {
		return err
	}
	specs = planner.FilterGroups(specs, cfg.Install.With, cfg.Install.Without)

	dest := planner.DestLayout{Root: cfg.Install.Path}
	if err := os.MkdirAll(dest.Root, 0o755); err != nil {
		return errs.New(errs.KindInstall, "runInstall", dest.Root, err)
	}

	if cfg.Install.Force {
		purgeForReinstall(specs, dest, layout, abi)
	}

	currentLockHash, hashErr := lockHash("scint.lock")
	if hashErr != nil {
		return errs.New(errs.KindInstall, "runInstall", "scint.lock", hashErr)
	}
	previousLockHash := readLastLockHash(layout)

	var plan []planner.Entry
	if shortcut, ok := planner.PlanFromLock(previousLockHash, currentLockHash, specs, dest, layout, abi); ok && !cfg.Install.Force {
		plan = shortcut
		log.Debug("lock unchanged and every artifact already valid, skipping full plan")
	} else {
		plan = planner.Plan(specs, dest, layout, abi)
	}
	log.Infof("planned %d entries", len(plan))

	var (
		materializerOnce sync.Once
		materializer     *materialize.Materializer
	)
	getMaterializer := func(probeSrc string) *materialize.Materializer {
		materializerOnce.Do(func() {
			materializer, _ = materialize.New(dest.Root, probeSrc, 0)
		})
		return materializer
	}

	prepParams := func(entry planner.Entry) preparer.Params {
		return preparer.Params{
			ID:         entry.Spec.PackageId(),
			Source:     entry.Spec.Source,
			ABI:        abi,
			Layout:     layout,
			Promoter:   promoter,
			Extractor:  archive.TarGz{},
			Extensions: entry.Spec.Extensions,
		}
	}

	handler := func(job scheduler.Job) (any, error) {
		switch job.Type {
		case scheduler.TypeDownload:
			entry := job.Payload.(planner.Entry)
			return preparer.Fetch(ctx, prepParams(entry))
		case scheduler.TypeExtract:
			ep := job.Payload.(extractPayload)
			err := preparer.Extract(ctx, prepParams(ep.Entry), ep.Inbound)
			return nil, err
		}
		entry := job.Payload.(planner.Entry)
		switch job.Type {
		case scheduler.TypeBuild:
			gemDir := entry.CachedPath
			if gemDir == "" {
				gemDir = layout.Cached(abi, entry.Spec.PackageId())
			}
			builder := nativebuild.NoBuilder{}
			var tail []string
			if builder.NeedsBuild(entry.Spec.PackageId(), gemDir) {
				if !builder.Build(entry.Spec.PackageId(), gemDir, layout.Extensions(abi, entry.Spec.PackageId()), abi, 1, &tail) {
					return nil, errs.New(errs.KindCompile, "install.build", entry.Spec.Name, fmt.Errorf("build failed: %v", tail))
				}
			}
			return nil, nil
		case scheduler.TypeLink:
			src := entry.CachedPath
			if src == "" {
				src = layout.Cached(abi, entry.Spec.PackageId())
			}
			m := getMaterializer(src)
			if m == nil {
				return nil, errs.New(errs.KindInstall, "install.link", entry.Spec.Name, fmt.Errorf("materializer unavailable"))
			}
			if err := m.Enqueue(materialize.Source{
				Dir:        src,
				Manifest:   layout.CachedManifest(abi, entry.Spec.PackageId()),
				TargetName: entry.Spec.PackageId().FullName(),
			}); err != nil {
				return nil, err
			}
			if err := m.Flush(); err != nil {
				return nil, err
			}
			m.WaitFor(entry.Spec.PackageId().FullName())
			return nil, nil
		case scheduler.TypeBinstub:
			gemDir := filepath.Join(dest.Root, entry.Spec.PackageId().FullName())
			return nil, preparer.WriteBinstubs(filepath.Join(dest.Root, "bin"), gemDir, entry.Spec.Executables)
		default:
			return nil, fmt.Errorf("install: unhandled job type %q", job.Type)
		}
	}

	sched := scheduler.New(scheduler.Config{
		MaxWorkers:     cfg.Scheduler.MaxWorkers,
		InitialWorkers: cfg.Scheduler.MaxWorkers,
		PerTypeLimits:  cfg.Scheduler.PerTypeLimits,
		FailFast:       true,
	}, handler)

	if reporter := newProgressReporter(cfg, plan); reporter != nil {
		for _, jobType := range []string{scheduler.TypeDownload, scheduler.TypeExtract, scheduler.TypeBuild, scheduler.TypeLink, scheduler.TypeBinstub} {
			jobType := jobType
			sched.OnComplete(jobType, func(scheduler.Job) { reporter.Advance(jobType) })
		}
		defer reporter.Finish()
	}

	sched.Start()

	for _, entry := range plan {
		enqueuePlanEntry(sched, entry)
	}

	sched.WaitAll()
	sched.Shutdown()

	if sched.Failed() {
		return errs.New(errs.KindInstall, "runInstall", "", fmt.Errorf("one or more install jobs failed"))
	}

	if err := writeRuntimeEnv(layout.InstallEnv(), dest, specs); err != nil {
		return err
	}
	writeLastLockHash(layout, currentLockHash)
	return nil
}

// lockHash returns the hex SHA-256 of the lockfile's content, the
// fingerprint PlanFromLock compares across runs to decide whether
// re-resolution can be skipped.
func lockHash(lockPath string) (string, error) {
	b, err := os.ReadFile(lockPath)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// readLastLockHash returns the hash persisted by the previous
// successful run, or "" if none exists.
func readLastLockHash(layout *cache.Layout) string {
	b, err := os.ReadFile(layout.LastLockHash())
	if err != nil {
		return ""
	}
	return string(b)
}

// writeLastLockHash persists hash for the next run's PlanFromLock
// shortcut; a failure here only costs a future cache-skip opportunity,
// not correctness, so it's swallowed rather than propagated.
func writeLastLockHash(layout *cache.Layout, hash string) {
	_ = fsutil.AtomicWrite(layout.LastLockHash(), []byte(hash))
}

// extractPayload carries the plan entry and the inbound path Fetch
// produced through to the extract job, since a follow-up only gets
// the parent job's result (the inbound path itself) to hand off.
type extractPayload struct {
	Entry   planner.Entry
	Inbound string
}

// newProgressReporter builds a progress.Reporter for plan, or nil when
// stdout isn't a terminal or verbose logging is on (the two would
// otherwise fight over the same lines).
func newProgressReporter(cfg config.Config, plan []planner.Entry) *progress.Reporter {
	if cfg.Debug.Verbose || !isatty.IsTerminal(os.Stdout.Fd()) {
		return nil
	}
	totals := planJobTotals(plan)
	if len(totals) == 0 {
		return nil
	}
	return progress.New(os.Stdout, config.ProgressWidth(), totals)
}

// planJobTotals counts how many jobs of each scheduler job type plan
// will dispatch, mirroring enqueuePlanEntry/chainAfterDownload's
// action → job-chain mapping so the progress bar's totals match what
// the scheduler actually runs.
func planJobTotals(plan []planner.Entry) map[string]int {
	totals := make(map[string]int)
	for _, entry := range plan {
		switch entry.Action {
		case planner.ActionSkip, planner.ActionBuiltin:
			continue
		case planner.ActionDownload:
			totals[scheduler.TypeDownload]++
			totals[scheduler.TypeExtract]++
			if entry.Spec.Extensions {
				totals[scheduler.TypeBuild]++
			}
			totals[scheduler.TypeLink]++
		case planner.ActionBuild:
			totals[scheduler.TypeBuild]++
			totals[scheduler.TypeLink]++
		case planner.ActionLink:
			totals[scheduler.TypeLink]++
		}
		if len(entry.Spec.Executables) > 0 {
			totals[scheduler.TypeBinstub]++
		}
	}
	return totals
}

// enqueuePlanEntry turns one plan entry into its scheduler job chain:
// download (when needed) → extract → build (when extensions are
// needed) → link → binstub, each depending on the previous via a
// follow-up.
func enqueuePlanEntry(sched *scheduler.Scheduler, entry planner.Entry) {
	switch entry.Action {
	case planner.ActionSkip, planner.ActionBuiltin:
		return
	case planner.ActionDownload:
		sched.Enqueue(scheduler.TypeDownload, entry.Spec.Name, entry, nil, func(s *scheduler.Scheduler, parent scheduler.Job) error {
			chainAfterDownload(s, entry, parent)
			return nil
		})
	case planner.ActionBuild:
		sched.Enqueue(scheduler.TypeBuild, entry.Spec.Name, entry, nil, func(s *scheduler.Scheduler, parent scheduler.Job) error {
			chainLinkAndBinstub(s, entry, nil)
			return nil
		})
	case planner.ActionLink:
		sched.Enqueue(scheduler.TypeLink, entry.Spec.Name, entry, nil, func(s *scheduler.Scheduler, parent scheduler.Job) error {
			chainBinstub(s, entry, nil)
			return nil
		})
	}
}

// chainAfterDownload enqueues the extract job that consumes a
// completed download's inbound path.
func chainAfterDownload(s *scheduler.Scheduler, entry planner.Entry, download scheduler.Job) {
	inbound, _ := download.Result.(string)
	payload := extractPayload{Entry: entry, Inbound: inbound}
	s.Enqueue(scheduler.TypeExtract, entry.Spec.Name, payload, nil, func(s *scheduler.Scheduler, parent scheduler.Job) error {
		chainAfterExtract(s, entry)
		return nil
	})
}

func chainAfterExtract(s *scheduler.Scheduler, entry planner.Entry) {
	if entry.Spec.Extensions {
		s.Enqueue(scheduler.TypeBuild, entry.Spec.Name, entry, nil, func(s *scheduler.Scheduler, parent scheduler.Job) error {
			chainLinkAndBinstub(s, entry, nil)
			return nil
		})
		return
	}
	s.Enqueue(scheduler.TypeLink, entry.Spec.Name, entry, nil, func(s *scheduler.Scheduler, parent scheduler.Job) error {
		chainBinstub(s, entry, nil)
		return nil
	})
}

func chainLinkAndBinstub(s *scheduler.Scheduler, entry planner.Entry, dependsOn []scheduler.ID) {
	s.Enqueue(scheduler.TypeLink, entry.Spec.Name, entry, dependsOn, func(s *scheduler.Scheduler, parent scheduler.Job) error {
		chainBinstub(s, entry, nil)
		return nil
	})
}

func chainBinstub(s *scheduler.Scheduler, entry planner.Entry, dependsOn []scheduler.ID) {
	if len(entry.Spec.Executables) == 0 {
		return
	}
	s.Enqueue(scheduler.TypeBinstub, entry.Spec.Name, entry, dependsOn, nil)
}

func purgeForReinstall(specs []resolve.ResolvedSpec, dest planner.DestLayout, layout *cache.Layout, abi cache.ABIKey) {
	for _, spec := range specs {
		id := spec.PackageId()
		os.RemoveAll(layout.Cached(abi, id))
		os.Remove(layout.CachedSpec(abi, id))
		os.Remove(layout.CachedManifest(abi, id))
		os.RemoveAll(dest.GemDir(id))
		os.Remove(dest.Metadata(id))
	}
}

func writeRuntimeEnv(path string, dest planner.DestLayout, specs []resolve.ResolvedSpec) error {
	env := runtimesetup.Env{}
	for _, spec := range specs {
		id := spec.PackageId()
		env.Entries = append(env.Entries, runtimesetup.Entry{
			FullName: id.FullName(),
			LoadPath: filepath.Join(dest.GemDir(id), "lib"),
		})
	}
	return runtimesetup.Write(path, env)
}
