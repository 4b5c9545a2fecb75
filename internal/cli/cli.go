// Package cli implements the `skill` command surface (§6): status, rank,
// gaps, explore, and prune subcommands operating on the daemon's wired
// skill tracker and evolution manager. The teacher repo never reaches for
// a CLI framework, so this sticks to the standard library's flag package.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/skillcore/skillcore/internal/evolution"
	"github.com/skillcore/skillcore/internal/skills"
)

// Exit codes per §6.
const (
	ExitSuccess        = 0
	ExitUnexpectedFail = 1
	ExitInvalidInput   = 2
	ExitPartialFailure = 3
)

// Dependencies bundles the collaborators the CLI subcommands operate on.
type Dependencies struct {
	Tracker *skills.Tracker
	Manager *evolution.Manager
	Out     io.Writer
}

// Run dispatches args[0] (the subcommand name) to its handler, returning
// the process exit code.
func Run(ctx context.Context, deps Dependencies, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(deps.Out, "usage: skill <status|rank|gaps|explore|prune> [flags]")
		return ExitInvalidInput
	}

	switch args[0] {
	case "status":
		return runStatus(deps, args[1:])
	case "rank":
		return runRank(deps, args[1:])
	case "gaps":
		return runGaps(deps, args[1:])
	case "explore":
		return runExplore(ctx, deps, args[1:])
	case "prune":
		return runPrune(ctx, deps, args[1:])
	default:
		fmt.Fprintf(deps.Out, "unknown subcommand %q\n", args[0])
		return ExitInvalidInput
	}
}

func runStatus(deps Dependencies, args []string) int {
	if len(args) > 0 {
		stats, ok := deps.Tracker.GetSkillStats(args[0])
		if !ok {
			fmt.Fprintf(deps.Out, "skill %q not found\n", args[0])
			return ExitInvalidInput
		}
		printDetail(deps.Out, stats)
		return ExitSuccess
	}

	all := deps.Tracker.GetAllStats()
	printTable(deps.Out, all)
	return ExitSuccess
}

func runRank(deps Dependencies, args []string) int {
	fs := flag.NewFlagSet("rank", flag.ContinueOnError)
	top := fs.Int("top", 10, "number of skills to show")
	if err := fs.Parse(args); err != nil {
		return ExitInvalidInput
	}

	ranked := deps.Tracker.GetTopPerformers(*top)
	printTable(deps.Out, ranked)
	return ExitSuccess
}

func runGaps(deps Dependencies, args []string) int {
	fs := flag.NewFlagSet("gaps", flag.ContinueOnError)
	minPriority := fs.Float64("min-priority", 0, "minimum priority score")
	if err := fs.Parse(args); err != nil {
		return ExitInvalidInput
	}

	gaps := deps.Tracker.GetSkillGaps(*minPriority)
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].PriorityScore > gaps[j].PriorityScore })
	for _, g := range gaps {
		fmt.Fprintf(deps.Out, "%-30s failures=%-4d priority=%.2f  %s\n", g.MissingCapability, g.FailureCount, g.PriorityScore, g.TaskDescription)
	}
	return ExitSuccess
}

func runExplore(ctx context.Context, deps Dependencies, args []string) int {
	fs := flag.NewFlagSet("explore", flag.ContinueOnError)
	_ = fs.Bool("auto-approve", false, "install activated candidates without confirmation")
	if err := fs.Parse(args); err != nil {
		return ExitInvalidInput
	}

	recommended, err := deps.Manager.RunExplorationNow(ctx, "manual exploration")
	if err != nil {
		fmt.Fprintf(deps.Out, "exploration failed: %v\n", err)
		return ExitUnexpectedFail
	}
	if len(recommended) == 0 {
		fmt.Fprintln(deps.Out, "no recommendations found")
		return ExitSuccess
	}

	for _, candidate := range recommended {
		fmt.Fprintf(deps.Out, "%-20s %s\n", candidate.ID, candidate.Name)
	}
	return ExitSuccess
}

func runPrune(ctx context.Context, deps Dependencies, args []string) int {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "evaluate without removing")
	if err := fs.Parse(args); err != nil {
		return ExitInvalidInput
	}
	_ = dryRun

	candidates := deps.Manager.RunPruningNow(ctx)
	failures := 0
	for _, c := range candidates {
		fmt.Fprintf(deps.Out, "%-20s %s\n", c.SkillID, c.Reason)
		if c.Failed {
			failures++
		}
	}
	if failures > 0 {
		return ExitPartialFailure
	}
	return ExitSuccess
}

func printDetail(out io.Writer, m skills.Metrics) {
	fmt.Fprintf(out, "skill_id:        %s\n", m.SkillID)
	fmt.Fprintf(out, "status:          %s\n", m.Status)
	fmt.Fprintf(out, "total_uses:      %d\n", m.TotalUses)
	fmt.Fprintf(out, "success_rate:    %.2f\n", m.SuccessRate)
	fmt.Fprintf(out, "overall_score:   %.2f\n", m.OverallScore)
}

func printTable(out io.Writer, all []skills.Metrics) {
	fmt.Fprintf(out, "%-24s %-14s %8s %8s %8s\n", "SKILL", "STATUS", "USES", "SUCC%", "SCORE")
	for _, m := range all {
		fmt.Fprintf(out, "%-24s %-14s %8d %8.2f %8.2f\n", m.SkillID, m.Status, m.TotalUses, m.SuccessRate*100, m.OverallScore)
	}
}
