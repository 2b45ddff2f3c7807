package output

import (
	"embed"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"
)

//go:embed themes/*.yaml
var themeFiles embed.FS

// DefaultTheme is used when no theme is configured.
const DefaultTheme = "solarized-dark"

type themeFile struct {
	Name   string                 `yaml:"name"`
	Chroma string                 `yaml:"chroma"`
	Styles map[string]styleConfig `yaml:"styles"`
}

type styleConfig struct {
	Foreground any  `yaml:"foreground"`
	Background any  `yaml:"background"`
	Bold       bool `yaml:"bold"`
	Italic     bool `yaml:"italic"`
	Underline  bool `yaml:"underline"`
	Faint      bool `yaml:"faint"`
}

// Theme is a StyleProvider loaded from an embedded theme file.
type Theme struct {
	name     string
	chroma   string
	renderer *lipgloss.Renderer
	styles   map[string]lipgloss.Style
}

// ThemeNames lists the embedded themes.
func ThemeNames() []string {
	entries, err := themeFiles.ReadDir("themes")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// LoadTheme loads the named theme. Styles are rendered with renderer, so
// they follow its colour profile.
func LoadTheme(name string, renderer *lipgloss.Renderer) (*Theme, error) {
	if name == "" {
		name = DefaultTheme
	}
	data, err := themeFiles.ReadFile("themes/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown theme %q (available: %s)", name, strings.Join(ThemeNames(), ", "))
	}
	var file themeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse theme %s: %w", name, err)
	}

	t := &Theme{
		name:     file.Name,
		chroma:   file.Chroma,
		renderer: renderer,
		styles:   make(map[string]lipgloss.Style, len(file.Styles)),
	}
	for class, cfg := range file.Styles {
		t.styles[class] = t.createStyle(cfg)
	}
	return t, nil
}

// Name returns the theme name.
func (t *Theme) Name() string {
	return t.name
}

// GetStyle implements StyleProvider.
func (t *Theme) GetStyle(class string) TextStyle {
	if style, ok := t.styles[class]; ok {
		return lipglossStyle{style}
	}
	return lipglossStyle{t.renderer.NewStyle()}
}

// lipglossStyle adapts lipgloss.Style's variadic Render to TextStyle.
type lipglossStyle struct {
	style lipgloss.Style
}

func (s lipglossStyle) Render(text string) string {
	return s.style.Render(text)
}

// IsAvailable implements StyleProvider.
func (t *Theme) IsAvailable() bool {
	return t != nil
}

// ChromaStyle implements StyleProvider.
func (t *Theme) ChromaStyle() string {
	return t.chroma
}

func (t *Theme) createStyle(cfg styleConfig) lipgloss.Style {
	style := t.renderer.NewStyle()
	if color := parseColor(cfg.Foreground); color != nil {
		style = style.Foreground(color)
	}
	if color := parseColor(cfg.Background); color != nil {
		style = style.Background(color)
	}
	return style.
		Bold(cfg.Bold).
		Italic(cfg.Italic).
		Underline(cfg.Underline).
		Faint(cfg.Faint)
}

// parseColor parses a colour that is either a string or a {light, dark} pair.
func parseColor(value any) lipgloss.TerminalColor {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil
		}
		return lipgloss.Color(v)
	case map[string]any:
		light, hasLight := v["light"].(string)
		dark, hasDark := v["dark"].(string)
		if hasLight && hasDark {
			return lipgloss.AdaptiveColor{Light: light, Dark: dark}
		}
	}
	return nil
}

// NewTerminalPrinter creates a printer for w using the named theme. Colour
// support is detected from w and the environment (NO_COLOR, CLICOLOR_FORCE).
func NewTerminalPrinter(w io.Writer, themeName string) (*Printer, error) {
	profile := termenv.NewOutput(w).EnvColorProfile()
	return NewThemedPrinter(w, themeName, profile)
}

// NewThemedPrinter creates a printer for w using the named theme and a
// colour profile detected elsewhere, for writers that are not the terminal
// itself.
func NewThemedPrinter(w io.Writer, themeName string, profile termenv.Profile) (*Printer, error) {
	renderer := lipgloss.NewRenderer(w)
	renderer.SetColorProfile(profile)
	theme, err := LoadTheme(themeName, renderer)
	if err != nil {
		return nil, err
	}
	if profile == termenv.Ascii || theme.ChromaStyle() == "" {
		return NewPrinter(WithWriter(w), WithStyles(theme), WithMode(modeFor(profile))), nil
	}
	return NewPrinter(
		WithWriter(w),
		WithStyles(theme),
		WithHighlighter(NewHighlighter(theme.ChromaStyle(), profile)),
	), nil
}

func modeFor(profile termenv.Profile) Mode {
	if profile == termenv.Ascii {
		return ModePlain
	}
	return ModeAuto
}
