package guide

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// Marker is the first word of an HTML comment that holds a screenshot instruction.
const Marker = "screenshot"

// ErrParse is the category of every error yielded by Find.
var ErrParse = errors.New("malformed screenshot instruction")

// ParseError locates a malformed embedded instruction in its article.
type ParseError struct {
	Location Location
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Location, ErrParse, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// Find scans article text (HTML or Markdown) for embedded instructions and
// yields them in order of appearance. A malformed block yields a *ParseError
// and scanning continues with the next block. The sequence is lazy and can be
// ranged over any number of times.
func Find(source, text string) iter.Seq2[ScreenshotInstruction, error] {
	return func(yield func(ScreenshotInstruction, error) bool) {
		z := html.NewTokenizer(strings.NewReader(text))
		line := 1
		for {
			tt := z.Next()
			if tt == html.ErrorToken {
				// io.EOF is the only error a strings.Reader produces.
				if !errors.Is(z.Err(), io.EOF) {
					yield(ScreenshotInstruction{}, &ParseError{
						Location: Location{Source: source, Line: line},
						Err:      z.Err(),
					})
				}
				return
			}

			raw := z.Raw()
			start := line
			line += bytes.Count(raw, []byte{'\n'})

			if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
				// Markdown prose may mention <title> or <script>; never let a
				// tag swallow the rest of the article as raw text.
				z.NextIsNotRawText()
				continue
			}
			if tt != html.CommentToken {
				continue
			}
			body, ok := instructionBody(commentText(raw))
			if !ok {
				continue
			}

			loc := Location{Source: source, Line: start}
			inst, err := decode(body, loc)
			if err != nil {
				if !yield(ScreenshotInstruction{}, &ParseError{Location: loc, Err: err}) {
					return
				}
				continue
			}
			if !yield(inst, nil) {
				return
			}
		}
	}
}

// Collect drains Find into slices of instructions and parse errors.
func Collect(source, text string) ([]ScreenshotInstruction, []error) {
	var insts []ScreenshotInstruction
	var errs []error
	for inst, err := range Find(source, text) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		insts = append(insts, inst)
	}
	return insts, errs
}

// commentText is the literal text between <!-- and -->. Entities are left
// alone so the YAML reads exactly as written.
func commentText(raw []byte) string {
	text := strings.TrimPrefix(string(raw), "<!--")
	for _, end := range []string{"-->", "--!>"} {
		if strings.HasSuffix(text, end) {
			return strings.TrimSuffix(text, end)
		}
	}
	return text
}

// instructionBody strips the marker word from a comment. Comments that do not
// start with the marker are not instructions.
func instructionBody(comment string) (string, bool) {
	trimmed := strings.TrimLeft(comment, " \t\r\n")
	if !strings.HasPrefix(trimmed, Marker) {
		return "", false
	}
	rest := trimmed[len(Marker):]
	if rest != "" && !strings.ContainsAny(rest[:1], " \t\r\n") {
		// e.g. <!--screenshots are regenerated weekly-->
		return "", false
	}
	return rest, true
}

func decode(body string, loc Location) (ScreenshotInstruction, error) {
	inst := ScreenshotInstruction{
		Layer:    Scalar(-1),
		Colours:  MaxColours,
		Delay:    100,
		Settings: map[string]any{},
	}

	dec := yaml.NewDecoder(strings.NewReader(body))
	dec.KnownFields(true)
	if err := dec.Decode(&inst); err != nil {
		if errors.Is(err, io.EOF) {
			return ScreenshotInstruction{}, errors.New("empty instruction")
		}
		return ScreenshotInstruction{}, err
	}
	if inst.Settings == nil {
		inst.Settings = map[string]any{}
	}
	inst.Location = loc

	if err := errors.Join(requireKeys(body), inst.Validate()); err != nil {
		return ScreenshotInstruction{}, err
	}
	return inst, nil
}

// requireKeys reports fields whose zero value would decode silently into a
// valid but meaningless instruction.
func requireKeys(body string) error {
	var present struct {
		CameraPosition *Vec3 `yaml:"camera_position"`
		CameraLookAt   *Vec3 `yaml:"camera_lookat"`
	}
	if err := yaml.Unmarshal([]byte(body), &present); err != nil {
		return err
	}
	var errs []error
	if present.CameraPosition == nil {
		errs = append(errs, errors.New("camera_position is required"))
	}
	if present.CameraLookAt == nil {
		errs = append(errs, errors.New("camera_lookat is required"))
	}
	return errors.Join(errs...)
}
