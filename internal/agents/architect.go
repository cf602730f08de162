package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"trinity/internal/tools"
	"trinity/internal/workspace"
	"trinity/pkg/errors"
)

const architectPrompt = `You are Ouroboros, a software architect agent. You analyze, generate,
refactor and audit code living in a shared workspace. Prefer using your tools
over guessing; cite file paths in your answers.`

// security audit patterns, checked line by line
var auditPatterns = []struct {
	Name     string
	Severity string
	Re       *regexp.Regexp
}{
	{"hardcoded credential", "high", regexp.MustCompile(`(?i)(password|passwd|secret|api_?key|token)\s*[:=]\s*["'][^"']{4,}["']`)},
	{"code execution sink", "high", regexp.MustCompile(`(?i)(\beval\s*\(|\bexec\s*\(|os/exec|subprocess|\bsystem\s*\()`)},
	{"sql string building", "medium", regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)\b.*(\+\s*\w+|%s|%v|\$\{)`)},
	{"insecure tls", "medium", regexp.MustCompile(`InsecureSkipVerify\s*:\s*true`)},
}

var functionDeclRe = regexp.MustCompile(`^\s*(func\s+|def\s+|function\s+|fn\s+)`)
var importRe = regexp.MustCompile(`^\s*(import\b|from\s+\S+\s+import|#include|require\s*\()`)

// NewArchitect builds the ouroboros agent with its code tools registered.
func NewArchitect(ws *workspace.Workspace, opts ...Option) (*BaseAgent, error) {
	registry := tools.NewRegistry()

	agent, err := NewBaseAgent(
		"ouroboros",
		"architect",
		"Analyzes, generates, refactors and audits code in the workspace",
		architectPrompt,
		registry,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	register := func(t tools.Tool) {
		if err == nil {
			err = registry.Register(t)
		}
	}

	register(tools.New("analyze_code",
		"Analyze a source file in the workspace: line count, declared functions, imports",
		tools.Schema{
			"path": {Type: "string", Description: "Path relative to the workspace root", Required: true},
		},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return analyzeCode(ws, args["path"].(string))
		},
	))

	register(tools.New("generate_code",
		"Generate a source file from a description and save it under workspace/artifacts",
		tools.Schema{
			"filename":    {Type: "string", Description: "Target file name", Required: true},
			"description": {Type: "string", Description: "What the code should do", Required: true},
			"language":    {Type: "string", Description: "Target language", Default: "go"},
		},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return generateCode(ctx, agent, ws, args)
		},
	))

	register(tools.New("refactor_code",
		"Rewrite a workspace file per instructions, keeping a backup of the original",
		tools.Schema{
			"path":         {Type: "string", Description: "Path relative to the workspace root", Required: true},
			"instructions": {Type: "string", Description: "How the code should change", Required: true},
		},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return refactorCode(ctx, agent, ws, args["path"].(string), args["instructions"].(string))
		},
	))

	register(tools.New("security_audit",
		"Scan a workspace file for common security smells",
		tools.Schema{
			"path": {Type: "string", Description: "Path relative to the workspace root", Required: true},
		},
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return securityAudit(ws, args["path"].(string))
		},
	))

	if err != nil {
		return nil, err
	}
	return agent, nil
}

// resolveWorkspacePath joins rel to the workspace root and rejects traversal
// outside of it.
func resolveWorkspacePath(ws *workspace.Workspace, rel string) (string, error) {
	if rel == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, "path cannot be empty")
	}
	if filepath.IsAbs(rel) {
		return "", errors.Wrapf(errors.ErrInvalidInput, "path must be relative to the workspace: %s", rel)
	}

	root := filepath.Clean(ws.Root())
	full := filepath.Clean(filepath.Join(root, rel))
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", errors.Wrapf(errors.ErrInvalidInput, "path escapes the workspace: %s", rel)
	}
	return full, nil
}

func analyzeCode(ws *workspace.Workspace, path string) (interface{}, error) {
	full, err := resolveWorkspacePath(ws, path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	lines := strings.Split(string(data), "\n")
	var functions, imports []string
	for _, line := range lines {
		if functionDeclRe.MatchString(line) {
			functions = append(functions, strings.TrimSpace(line))
		}
		if importRe.MatchString(line) {
			imports = append(imports, strings.TrimSpace(line))
		}
	}

	return map[string]interface{}{
		"path":       path,
		"size_bytes": len(data),
		"lines":      len(lines),
		"functions":  functions,
		"imports":    imports,
	}, nil
}

func generateCode(ctx context.Context, agent *BaseAgent, ws *workspace.Workspace, args map[string]interface{}) (interface{}, error) {
	filename := args["filename"].(string)
	description := args["description"].(string)
	language, _ := args["language"].(string)

	if strings.ContainsAny(filename, `/\`) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "filename must not contain path separators: %s", filename)
	}

	prompt := fmt.Sprintf("Write %s code for the following requirement. Reply with the code only, no prose.\n\nRequirement: %s", language, description)
	code, err := agent.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(ws.ArtifactsDir(), filename)
	if err := os.WriteFile(target, []byte(code), 0o640); err != nil {
		return nil, errors.Wrapf(err, "write generated file %s", filename)
	}

	return map[string]interface{}{
		"path":       filepath.Join("artifacts", filename),
		"language":   language,
		"size_bytes": len(code),
	}, nil
}

func refactorCode(ctx context.Context, agent *BaseAgent, ws *workspace.Workspace, path, instructions string) (interface{}, error) {
	full, err := resolveWorkspacePath(ws, path)
	if err != nil {
		return nil, err
	}

	original, err := os.ReadFile(full)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	backup := full + ".bak"
	if err := os.WriteFile(backup, original, 0o640); err != nil {
		return nil, errors.Wrapf(err, "write backup for %s", path)
	}

	prompt := fmt.Sprintf("Refactor the following code. Reply with the full rewritten file only, no prose.\n\nInstructions: %s\n\nCode:\n%s", instructions, string(original))
	rewritten, err := agent.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(full, []byte(rewritten), 0o640); err != nil {
		return nil, errors.Wrapf(err, "write refactored %s", path)
	}

	return map[string]interface{}{
		"path":        path,
		"backup":      path + ".bak",
		"refactored":  true,
		"refactor_at": time.Now().UTC(),
	}, nil
}

func securityAudit(ws *workspace.Workspace, path string) (interface{}, error) {
	full, err := resolveWorkspacePath(ws, path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	type finding struct {
		Line     int    `json:"line"`
		Issue    string `json:"issue"`
		Severity string `json:"severity"`
		Snippet  string `json:"snippet"`
	}

	var findings []finding
	for i, line := range strings.Split(string(data), "\n") {
		for _, pattern := range auditPatterns {
			if pattern.Re.MatchString(line) {
				findings = append(findings, finding{
					Line:     i + 1,
					Issue:    pattern.Name,
					Severity: pattern.Severity,
					Snippet:  strings.TrimSpace(line),
				})
			}
		}
	}

	return map[string]interface{}{
		"path":     path,
		"findings": findings,
		"clean":    len(findings) == 0,
	}, nil
}
