package process

import (
	"path/filepath"
	"strconv"

	"github.com/desertthunder/spotx/internal/models"
)

// Option is a command line option with zero or more values.
type Option struct {
	Name   string
	Values []string
}

// Request describes one spotdl invocation.
type Request struct {
	Operation string
	URLs      []string
	options   []Option
	commands  []string
}

// NewRequest creates a request for the given spotdl operation ("download", "save", ...).
func NewRequest(operation string, urls ...string) *Request {
	return &Request{Operation: operation, URLs: urls}
}

// AddOption appends an option. Without values it renders as a bare flag.
func (r *Request) AddOption(name string, values ...string) *Request {
	r.options = append(r.options, Option{Name: name, Values: values})
	return r
}

// AddIntOption appends an option with a numeric value.
func (r *Request) AddIntOption(name string, value int) *Request {
	return r.AddOption(name, strconv.Itoa(value))
}

// AddCommands appends raw arguments rendered after every option.
func (r *Request) AddCommands(commands ...string) *Request {
	r.commands = append(r.commands, commands...)
	return r
}

// HasOption reports whether the option was added.
func (r *Request) HasOption(name string) bool {
	for _, o := range r.options {
		if o.Name == name {
			return true
		}
	}
	return false
}

// Option returns the first value of the first option with the given name.
func (r *Request) Option(name string) (string, bool) {
	for _, o := range r.options {
		if o.Name != name {
			continue
		}
		if len(o.Values) == 0 {
			return "", true
		}
		return o.Values[0], true
	}
	return "", false
}

// Options returns a copy of the options in insertion order.
func (r *Request) Options() []Option {
	out := make([]Option, len(r.options))
	copy(out, r.options)
	return out
}

// Args renders the argument vector: operation, urls, options, raw commands.
//
// spotdl's own grammar depends on this order.
func (r *Request) Args() []string {
	args := make([]string, 0, 1+len(r.URLs)+2*len(r.options)+len(r.commands))
	if r.Operation != "" {
		args = append(args, r.Operation)
	}
	args = append(args, r.URLs...)
	for _, o := range r.options {
		args = append(args, o.Name)
		args = append(args, o.Values...)
	}
	return append(args, r.commands...)
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	c := &Request{
		Operation: r.Operation,
		URLs:      append([]string(nil), r.URLs...),
		commands:  append([]string(nil), r.commands...),
	}
	for _, o := range r.options {
		c.options = append(c.options, Option{Name: o.Name, Values: append([]string(nil), o.Values...)})
	}
	return c
}

// WithPreferences maps download preferences onto spotdl options. Empty fields are skipped.
func (r *Request) WithPreferences(p models.DownloadPreferences) *Request {
	if p.Format != "" {
		r.AddOption("--format", p.Format)
	}
	if p.Bitrate != "" {
		r.AddOption("--bitrate", p.Bitrate)
	}
	if output := outputPath(p); output != "" {
		r.AddOption("--output", output)
	}
	if p.Threads > 0 {
		r.AddIntOption("--threads", p.Threads)
	}
	if len(p.Lyrics) > 0 {
		r.AddOption("--lyrics", p.Lyrics...)
	}
	if len(p.AudioProviders) > 0 {
		r.AddOption("--audio", p.AudioProviders...)
	}
	if p.SkipExplicit {
		r.AddOption("--skip-explicit")
	}
	if p.GenerateLRC {
		r.AddOption("--generate-lrc")
	}
	if p.SponsorBlock {
		r.AddOption("--sponsor-block")
	}
	return r
}

func outputPath(p models.DownloadPreferences) string {
	switch {
	case p.OutputDir == "":
		return p.OutputTemplate
	case p.OutputTemplate == "":
		return p.OutputDir
	default:
		return filepath.Join(p.OutputDir, p.OutputTemplate)
	}
}
