package tools

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Operation names one entry of the command template table.
type Operation string

const (
	OpOpenSCAD      Operation = "openscad"       // compile an OpenSCAD file to STL
	OpReducePalette Operation = "reduce_palette" // reduce the colour palette of an image
	OpOptimisePNG   Operation = "optimise_png"   // reduce file size of a PNG image
	OpMergeGIF      Operation = "merge_gif"      // merge frames into an animated GIF
	OpOptimiseGIF   Operation = "optimise_gif"   // reduce file size of a GIF image
)

// Operations lists every operation the table must provide, in pipeline order.
var Operations = []Operation{OpOpenSCAD, OpReducePalette, OpOptimisePNG, OpMergeGIF, OpOptimiseGIF}

// DefaultTemplates are the external commands used for each operation. Stages
// separated by && run one after the other; the next stage only runs if the
// previous one succeeded.
var DefaultTemplates = map[Operation]string{
	OpOpenSCAD:      "openscad -o {output} {input}",
	OpReducePalette: "convert -colors {colours} {input} png:{output}",
	OpOptimisePNG:   "optipng -o7 -strip all -snip -clobber -out {output} {input} && ect -9 -strip --allfilters-b --pal_sort=120 --mt-deflate {output}",
	OpMergeGIF:      "convert -delay {delay} -loop 0 {inputs} -colors {colours} {output}",
	OpOptimiseGIF:   "gifsicle -O3 --batch {input}",
}

const (
	phInput   = "input"
	phOutput  = "output"
	phInputs  = "inputs"
	phColours = "colours"
	phDelay   = "delay"
)

var known = map[string]bool{phInput: true, phOutput: true, phInputs: true, phColours: true, phDelay: true}

var required = map[Operation][]string{
	OpOpenSCAD:      {phInput, phOutput},
	OpReducePalette: {phInput, phOutput, phColours},
	OpOptimisePNG:   {phInput, phOutput},
	OpMergeGIF:      {phInputs, phOutput, phDelay},
	OpOptimiseGIF:   {phInput},
}

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Args are the values substituted into a template.
type Args struct {
	Input   string
	Output  string
	Inputs  []string
	Colours int
	Delay   int // milliseconds
}

// Template is a parsed command: one argv per stage, still holding placeholders.
type Template struct {
	Op     Operation
	Stages [][]string
}

// Table maps every operation to its parsed template.
type Table map[Operation]Template

// NewTable parses the default templates with overrides applied on top.
// Every template is validated here so that a broken override fails at startup.
func NewTable(overrides map[string]string) (Table, error) {
	sources := make(map[Operation]string, len(DefaultTemplates))
	for op, s := range DefaultTemplates {
		sources[op] = s
	}
	var errs []error
	for name, s := range overrides {
		op := Operation(name)
		if _, ok := DefaultTemplates[op]; !ok {
			errs = append(errs, fmt.Errorf("unknown command %q", name))
			continue
		}
		sources[op] = s
	}

	table := make(Table, len(sources))
	for _, op := range Operations {
		tmpl, err := ParseTemplate(op, sources[op])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		table[op] = tmpl
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return table, nil
}

// ParseTemplate splits a template with shell quoting rules. The command is
// never run through a shell: quoting only groups words into arguments.
func ParseTemplate(op Operation, s string) (Template, error) {
	words, err := shellquote.Split(s)
	if err != nil {
		return Template{}, fmt.Errorf("command %s: %w", op, err)
	}

	tmpl := Template{Op: op}
	var stage []string
	for _, w := range words {
		if w == "&&" {
			if len(stage) == 0 {
				return Template{}, fmt.Errorf("command %s: empty stage", op)
			}
			tmpl.Stages = append(tmpl.Stages, stage)
			stage = nil
			continue
		}
		stage = append(stage, w)
	}
	if len(stage) == 0 {
		return Template{}, fmt.Errorf("command %s: empty stage", op)
	}
	tmpl.Stages = append(tmpl.Stages, stage)

	if err := tmpl.validate(); err != nil {
		return Template{}, err
	}
	return tmpl, nil
}

func (t Template) validate() error {
	seen := map[string]bool{}
	for _, argv := range t.Stages {
		if placeholderRe.MatchString(argv[0]) {
			return fmt.Errorf("command %s: executable %q must not be a placeholder", t.Op, argv[0])
		}
		for _, arg := range argv {
			for _, m := range placeholderRe.FindAllStringSubmatch(arg, -1) {
				name := m[1]
				if !known[name] {
					return fmt.Errorf("command %s: unknown placeholder {%s}", t.Op, name)
				}
				if name == phInputs && arg != "{inputs}" {
					return fmt.Errorf("command %s: {inputs} must be a whole argument", t.Op)
				}
				seen[name] = true
			}
		}
	}
	for _, name := range required[t.Op] {
		if !seen[name] {
			return fmt.Errorf("command %s: missing placeholder {%s}", t.Op, name)
		}
	}
	return nil
}

// Render substitutes args into every stage. Paths are made absolute so that
// a file name can never be mistaken for an option.
func (t Template) Render(a Args) ([][]string, error) {
	values := map[string]string{
		phColours: strconv.Itoa(a.Colours),
		phDelay:   strconv.Itoa(centiseconds(a.Delay)),
	}
	if a.Input != "" {
		p, err := filepath.Abs(a.Input)
		if err != nil {
			return nil, err
		}
		values[phInput] = p
	}
	if a.Output != "" {
		p, err := filepath.Abs(a.Output)
		if err != nil {
			return nil, err
		}
		values[phOutput] = p
	}
	inputs := make([]string, len(a.Inputs))
	for i, in := range a.Inputs {
		p, err := filepath.Abs(in)
		if err != nil {
			return nil, err
		}
		inputs[i] = p
	}

	stages := make([][]string, 0, len(t.Stages))
	for _, argv := range t.Stages {
		out := make([]string, 0, len(argv))
		for _, arg := range argv {
			if arg == "{inputs}" {
				if len(inputs) == 0 {
					return nil, fmt.Errorf("command %s: no inputs given", t.Op)
				}
				out = append(out, inputs...)
				continue
			}
			var missing string
			rendered := placeholderRe.ReplaceAllStringFunc(arg, func(m string) string {
				name := m[1 : len(m)-1]
				v, ok := values[name]
				if !ok {
					missing = name
				}
				return v
			})
			if missing != "" {
				return nil, fmt.Errorf("command %s: no value for {%s}", t.Op, missing)
			}
			out = append(out, rendered)
		}
		stages = append(stages, out)
	}
	return stages, nil
}

// String gives the template back in shell notation, for logs and doctor output.
func (t Template) String() string {
	parts := make([]string, len(t.Stages))
	for i, argv := range t.Stages {
		parts[i] = shellquote.Join(argv...)
	}
	return strings.Join(parts, " && ")
}

// Executables lists the distinct programs the table runs, sorted.
func (t Table) Executables() []string {
	set := map[string]bool{}
	for _, tmpl := range t {
		for _, argv := range tmpl.Stages {
			set[argv[0]] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ImageMagick counts delay in ticks of 1/100 s.
func centiseconds(ms int) int {
	return (ms + 5) / 10
}
