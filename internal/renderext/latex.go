package renderext

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// renderLatex runs the latex -> dvi -> dvisvgm -> svg chain for a full
// LaTeX document, skipping stages whose artifact already exists.
func (r *Runner) renderLatex(ctx context.Context, id, doc string) (image.Image, error) {
	base := filepath.Join(r.cfg.ArtifactDir, id)
	texPath := base + ".tex"
	dviPath := base + ".dvi"
	svgPath := base + ".svg"

	if _, err := os.Stat(texPath); err != nil {
		if err := os.WriteFile(texPath, []byte(doc), 0o644); err != nil {
			return nil, fmt.Errorf("write tex: %w", err)
		}
	}

	if _, err := os.Stat(dviPath); err != nil {
		if err := r.runLatex(ctx, texPath); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(svgPath); err != nil {
		if err := r.runDvisvgm(ctx, dviPath); err != nil {
			return nil, err
		}
	}

	return rasterizeSVG(svgPath)
}

// renderPlot turns gnuplot source into an svg and rasterizes it. The
// terminal and output lines are prepended so block source stays pure
// plotting commands.
func (r *Runner) renderPlot(ctx context.Context, id, src string) (image.Image, error) {
	base := filepath.Join(r.cfg.ArtifactDir, id)
	pltPath := base + ".plt"
	svgPath := base + ".svg"

	if _, err := os.Stat(svgPath); err != nil {
		script := fmt.Sprintf("set terminal svg\nset output '%s'\n%s\n", filepath.Base(svgPath), src)
		if err := os.WriteFile(pltPath, []byte(script), 0o644); err != nil {
			return nil, fmt.Errorf("write plt: %w", err)
		}

		bin, err := exec.LookPath(r.cfg.Gnuplot)
		if err != nil {
			return nil, &RenderError{Message: "gnuplot not found in PATH"}
		}

		cmd := exec.CommandContext(ctx, bin, filepath.Base(pltPath))
		cmd.Dir = r.cfg.ArtifactDir
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, &RenderError{Message: "gnuplot failed", Detail: strings.TrimSpace(stderr.String())}
		}
	}

	return rasterizeSVG(svgPath)
}

// runLatex invokes latex in the artifact directory. Errors land on
// stdout; the first "! ..." line is the message and the "l.<n> ..."
// line pins the failing input line.
func (r *Runner) runLatex(ctx context.Context, texPath string) error {
	bin, err := exec.LookPath(r.cfg.Latex)
	if err != nil {
		return &RenderError{Message: "latex not found in PATH"}
	}

	cmd := exec.CommandContext(ctx, bin, "-interaction=nonstopmode", filepath.Base(texPath))
	cmd.Dir = r.cfg.ArtifactDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err == nil {
		return nil
	}

	if stdout.Len() == 0 {
		// latex reports document errors on stdout. An empty stdout
		// means the binary itself is broken.
		return &RenderError{Message: "latex failed to start", Detail: strings.TrimSpace(stderr.String())}
	}
	return parseLatexLog(stdout.String())
}

// runDvisvgm converts a dvi to svg. dvisvgm reports problems on
// stderr, sometimes with a zero exit status.
func (r *Runner) runDvisvgm(ctx context.Context, dviPath string) error {
	bin, err := exec.LookPath(r.cfg.Dvisvgm)
	if err != nil {
		return &RenderError{Message: "dvisvgm not found in PATH"}
	}

	cmd := exec.CommandContext(ctx, bin, "-b", "1", "--no-fonts", "--zoom=1", filepath.Base(dviPath))
	cmd.Dir = r.cfg.ArtifactDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err != nil || strings.Contains(stderr.String(), "error:") {
		return &RenderError{Message: "dvisvgm failed", Detail: strings.TrimSpace(stderr.String())}
	}
	return nil
}

// parseLatexLog extracts a structured error from latex stdout.
func parseLatexLog(out string) *RenderError {
	re := &RenderError{Message: "latex failed"}
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Emergency stop") {
			continue
		}
		if strings.HasPrefix(line, "! ") && re.Message == "latex failed" {
			re.Message = strings.TrimSpace(line[2:])
			continue
		}
		if strings.HasPrefix(line, "l.") {
			rest := line[2:]
			fields := strings.SplitN(rest, " ", 2)
			if n, err := strconv.Atoi(fields[0]); err == nil {
				re.Line = n
			}
			if len(fields) == 2 {
				re.Detail = strings.TrimSpace(fields[1])
			}
		}
	}
	return re
}
