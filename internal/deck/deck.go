// Package deck renders simulator input decks from templates.
//
// Default decks are embedded under templates/<name>.spice. A deck directory
// configured with simulator.template_dir takes precedence: a file at
// <dir>/<name>/<model>.spice replaces the default for that model.
package deck

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"text/template"

	"mosregress/internal/device"
	"mosregress/internal/logging"
	"mosregress/internal/table"
)

//go:embed templates
var embedded embed.FS

// Params is everything a deck template can reference.
type Params struct {
	Device  string
	Model   string // nmos, pmos, nmos_dss, pmos_dss
	PType   bool
	Width   float64
	Length  float64
	Temp    int
	Fingers int

	Vgs, Vds, Vbs device.Range

	AD, PD, AS, PS float64

	ModelLib string
	Corner   string
	Output   string // result file the deck writes
}

// SetDiffusion fills the drain and source area and perimeter from the
// diffusion extension ld.
func (p *Params) SetDiffusion(ld float64) {
	p.AD = p.Width * ld
	p.AS = p.Width * ld
	p.PD = 2 * (p.Width + ld)
	p.PS = 2 * (p.Width + ld)
}

var funcs = template.FuncMap{
	"num": table.FormatFloat,
}

// Renderer resolves and caches deck templates. It is safe for concurrent use.
type Renderer struct {
	overrideDir string

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewRenderer returns a renderer that prefers templates under overrideDir.
// An empty overrideDir uses only the embedded decks.
func NewRenderer(overrideDir string) *Renderer {
	return &Renderer{
		overrideDir: overrideDir,
		cache:       make(map[string]*template.Template),
	}
}

func (r *Renderer) lookup(name, model string) (*template.Template, error) {
	key := name + "/" + model

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.cache[key]; ok {
		return t, nil
	}

	var (
		src    []byte
		origin string
		err    error
	)
	if r.overrideDir != "" {
		origin = filepath.Join(r.overrideDir, name, model+".spice")
		src, err = os.ReadFile(origin)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read deck template %s: %w", origin, err)
		}
	}
	if src == nil {
		origin = "templates/" + name + ".spice"
		src, err = embedded.ReadFile(origin)
		if err != nil {
			return nil, fmt.Errorf("no deck template %q: %w", name, err)
		}
	}

	t, err := template.New(key).Funcs(funcs).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse deck template %s: %w", origin, err)
	}
	logging.DeckDebug("loaded template %s for %s", origin, key)
	r.cache[key] = t
	return t, nil
}

// Render writes the deck for template name and model to w.
func (r *Renderer) Render(w io.Writer, name, model string, p Params) error {
	t, err := r.lookup(name, model)
	if err != nil {
		return err
	}
	if err := t.Execute(w, p); err != nil {
		return fmt.Errorf("failed to render deck %s/%s: %w", name, model, err)
	}
	return nil
}

// RenderFile renders into path, creating its directory.
func (r *Renderer) RenderFile(path, name, model string, p Params) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, model, p); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create netlist directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write deck %s: %w", path, err)
	}
	logging.DeckDebug("wrote %s", path)
	return nil
}
