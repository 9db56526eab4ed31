// CLAUDE:SUMMARY External-executable adapter: run in a temp workspace, collect items from its output folder.
package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
)

// ExecAdapter runs a registered executable. The executable receives the
// output directory as its single argument, runs with an ephemeral working
// directory, and gets the source's parameter map in the environment as
// RESERVOIR_PARAM_<KEY>. After it exits, every text file it dropped in the
// output directory becomes one item; a subdirectory sharing a file's stem
// supplies that item's auxiliary files.
type ExecAdapter struct {
	Name   string
	Path   string
	logger *slog.Logger
}

// Fetch runs the executable and collects its output.
func (a *ExecAdapter) Fetch(ctx context.Context, src *chanstore.Source) ([]Item, error) {
	work, err := os.MkdirTemp("", "reservoir-"+a.Name+"-")
	if err != nil {
		return nil, fmt.Errorf("exec adapter %s: temp dir: %w", a.Name, err)
	}
	defer os.RemoveAll(work)

	outDir := filepath.Join(work, "out")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("exec adapter %s: output dir: %w", a.Name, err)
	}

	cmd := exec.CommandContext(ctx, a.Path, outDir)
	cmd.Dir = work
	cmd.Env = append(os.Environ(), "RESERVOIR_SOURCE_ID="+src.ID)
	for key, value := range src.Params {
		cmd.Env = append(cmd.Env, "RESERVOIR_PARAM_"+envKey(key)+"="+value)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("exec adapter %s: %w: %s", a.Name, err, msg)
		}
		return nil, fmt.Errorf("exec adapter %s: %w", a.Name, err)
	}

	return collectOutput(outDir)
}

// collectOutput turns the contents of the output directory into items.
func collectOutput(outDir string) ([]Item, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("exec adapter: read output dir: %w", err)
	}

	var items []Item
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			return nil, fmt.Errorf("exec adapter: read %s: %w", name, err)
		}
		item := Item{
			Content:           string(data),
			SuggestedFilename: name,
		}
		aux, err := collectAux(filepath.Join(outDir, chanstore.Stem(name)))
		if err != nil {
			return nil, err
		}
		item.Aux = aux
		items = append(items, item)
	}
	return items, nil
}

// collectAux walks the same-stem subdirectory, if present.
func collectAux(dir string) ([]AuxFile, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) || (err == nil && !info.IsDir()) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exec adapter: stat aux dir: %w", err)
	}

	var aux []AuxFile
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		aux = append(aux, AuxFile{RelativePath: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("exec adapter: collect aux files: %w", err)
	}
	return aux, nil
}

func envKey(key string) string {
	key = strings.ToUpper(key)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, key)
}
