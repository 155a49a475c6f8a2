package filters

import (
	"github.com/dchest/htmlmin"
)

// `htmlmin` is a primitive not-so-correct HTML minimizer filter.
// `htmljsmin` also minifies inline scripts and styles.

func init() {
	Register("htmlmin", func(Options) (Filter, error) {
		return NewHTMLMin(false), nil
	})
	Register("htmljsmin", func(Options) (Filter, error) {
		return NewHTMLMin(true), nil
	})
}

// NewHTMLMin returns an HTML filter, which also minifies inline
// scripts and styles if inline is true.
func NewHTMLMin(inline bool) *HTMLMin {
	if !inline {
		return &HTMLMin{name: "htmlmin"}
	}
	return &HTMLMin{
		name: "htmljsmin",
		opts: htmlmin.Options{MinifyScripts: true, MinifyStyles: true},
	}
}

type HTMLMin struct {
	name string
	opts htmlmin.Options
}

func (f *HTMLMin) Name() string { return f.name }

func (f *HTMLMin) Apply(in []byte) (out []byte, err error) {
	opts := f.opts
	return htmlmin.Minify(in, &opts)
}
