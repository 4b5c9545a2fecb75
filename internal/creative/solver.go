// Package creative implements the Creative Solver (C6): a deterministic
// keyword classifier plus solution branches that delegate actual generation
// to an injected backend.
package creative

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// SolutionType is the closed set AnalyzeType can report.
type SolutionType string

const (
	TypeDecomposition  SolutionType = "decomposition"
	TypeWorkaround     SolutionType = "workaround"
	TypeCodeGeneration SolutionType = "code_generation"
	TypeMultiStep      SolutionType = "multi_step"
	TypeHybrid         SolutionType = "hybrid"
)

// Context carries the caller's retry/attempt history, used to force a
// workaround once repeated attempts have failed.
type Context struct {
	Attempts int
}

// Step is one node in a multi-step Plan.
type Step struct {
	ID          string
	Description string
	DependsOn   []string
}

// Plan is an ordered sequence of dependent steps.
type Plan struct {
	Steps []Step
}

// Solution is the tagged result of Solve; only the fields of the branch that
// produced it are populated (a hybrid fills both SubTasks and Workarounds).
type Solution struct {
	Type        SolutionType
	Confidence  float64
	SubTasks    []string
	Workarounds []string
	Code        string
	Plan        *Plan
}

// GenerationResult is what a SolutionBackend returns for a generation
// request.
type GenerationResult struct {
	Text string
}

// SolutionBackend is the host-injected collaborator the solver delegates
// actual content generation to. The solver never calls an LLM directly.
type SolutionBackend interface {
	Generate(ctx context.Context, prompt string) (GenerationResult, error)
}

var (
	codeGenPattern       = regexp.MustCompile(`(?i)code|generate|script|implement|function`)
	decompositionPattern = regexp.MustCompile(`(?i)complex|break down|decompose|multi-step task`)
	workaroundPattern    = regexp.MustCompile(`(?i)blocked|forbidden|cannot access|workaround|different way`)
	multiStepPattern     = regexp.MustCompile(`(?i)plan|orchestrate|sequence|multi-step`)
)

// AnalyzeType classifies problem by keyword match, with a context override:
// three or more prior attempts forces a workaround regardless of wording.
func AnalyzeType(problem string, ctx Context) SolutionType {
	if ctx.Attempts >= 3 {
		return TypeWorkaround
	}
	switch {
	case codeGenPattern.MatchString(problem):
		return TypeCodeGeneration
	case decompositionPattern.MatchString(problem):
		return TypeDecomposition
	case workaroundPattern.MatchString(problem):
		return TypeWorkaround
	case multiStepPattern.MatchString(problem):
		return TypeMultiStep
	default:
		return TypeDecomposition
	}
}

// Solver dispatches to a branch per SolutionType and delegates generation to
// an injected backend.
type Solver struct {
	backend SolutionBackend
}

// NewSolver creates a solver. backend may be nil; code_generation then
// returns a skeleton without backend-produced content.
func NewSolver(backend SolutionBackend) *Solver {
	return &Solver{backend: backend}
}

// Solve classifies (unless preferredType overrides) and produces a Solution.
func (s *Solver) Solve(ctx context.Context, problem string, rctx Context, preferredType *SolutionType) Solution {
	solType := AnalyzeType(problem, rctx)
	if preferredType != nil {
		solType = *preferredType
	}

	switch solType {
	case TypeDecomposition:
		return s.decompose(problem)
	case TypeWorkaround:
		return s.workaround(problem)
	case TypeCodeGeneration:
		return s.generateCode(ctx, problem)
	case TypeMultiStep:
		return s.multiStep(problem)
	case TypeHybrid:
		return s.hybrid(ctx, problem, rctx)
	default:
		return s.decompose(problem)
	}
}

var conjunctionSplit = regexp.MustCompile(`(?i)\s*,\s*|\s+(?:and|then)\s+`)

func (s *Solver) decompose(problem string) Solution {
	parts := conjunctionSplit.Split(problem, -1)
	subtasks := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			subtasks = append(subtasks, trimmed)
		}
	}
	if len(subtasks) == 0 {
		subtasks = []string{problem}
	}
	confidence := 0.6
	if len(subtasks) > 1 {
		confidence = 0.8
	}
	return Solution{Type: TypeDecomposition, Confidence: confidence, SubTasks: subtasks}
}

func (s *Solver) workaround(problem string) Solution {
	tactics := []string{
		"retry via an alternate strategy",
		"substitute an equivalent tool or endpoint",
		"decompose the blocked step into smaller, permitted operations",
		"escalate for manual intervention",
	}
	return Solution{Type: TypeWorkaround, Confidence: 0.7, Workarounds: tactics}
}

func (s *Solver) generateCode(ctx context.Context, problem string) Solution {
	skeleton := fmt.Sprintf("// TODO: %s\nfunc solve() error {\n\treturn nil\n}", problem)
	confidence := 0.5
	if s.backend != nil {
		result, err := s.backend.Generate(ctx, problem)
		if err == nil && result.Text != "" {
			skeleton = result.Text
			confidence = 0.75
		}
	}
	return Solution{Type: TypeCodeGeneration, Confidence: confidence, Code: skeleton}
}

func (s *Solver) multiStep(problem string) Solution {
	parts := conjunctionSplit.Split(problem, -1)
	steps := make([]Step, 0, len(parts))
	var previousID string
	for i, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		id := fmt.Sprintf("step_%d", i+1)
		var dependsOn []string
		if previousID != "" {
			dependsOn = []string{previousID}
		}
		steps = append(steps, Step{ID: id, Description: trimmed, DependsOn: dependsOn})
		previousID = id
	}
	if len(steps) == 0 {
		steps = []Step{{ID: "step_1", Description: problem}}
	}
	return Solution{Type: TypeMultiStep, Confidence: 0.65, Plan: &Plan{Steps: steps}}
}

func (s *Solver) hybrid(ctx context.Context, problem string, rctx Context) Solution {
	decomposition := s.decompose(problem)
	workaround := s.workaround(problem)
	return Solution{
		Type:        TypeHybrid,
		Confidence:  (decomposition.Confidence + workaround.Confidence) / 2,
		SubTasks:    decomposition.SubTasks,
		Workarounds: workaround.Workarounds,
	}
}
