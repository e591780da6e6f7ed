package cell

import (
	"strconv"
	"strings"
)

// TextStyle is a CSS font-style value.
type TextStyle string

const (
	TextStyleNormal  TextStyle = "unset"
	TextStyleItalic  TextStyle = "italic"
	TextStyleOblique TextStyle = "oblique"
)

// TextWeight is a CSS font-weight value.
type TextWeight string

const (
	TextWeightNormal  TextWeight = "unset"
	TextWeightBold    TextWeight = "bold"
	TextWeightBolder  TextWeight = "bolder"
	TextWeightLighter TextWeight = "lighter"
	TextWeight100     TextWeight = "100"
	TextWeight200     TextWeight = "200"
	TextWeight300     TextWeight = "300"
	TextWeight400     TextWeight = "400"
	TextWeight500     TextWeight = "500"
	TextWeight600     TextWeight = "600"
	TextWeight700     TextWeight = "700"
	TextWeight800     TextWeight = "800"
	TextWeight900     TextWeight = "900"
)

// TextOptions carries presentation hints for a Text cell. Zero fields are
// left unchanged by SetOptions.
type TextOptions struct {
	Size   float64 // in px
	Style  TextStyle
	Weight TextWeight
}

// Text is a string cell with presentation options. Changing an option
// re-notifies listeners.
type Text struct {
	*Cell[string]

	// guarded by Cell.mu
	opts TextOptions
}

// NewText creates a text cell.
func NewText(text string, o TextOptions, opts ...Option) *Text {
	t := &Text{Cell: newCell[string](KindText, opts)}
	t.self = t
	t.value = text
	t.defined = true
	t.opts = o
	return t
}

// Options returns the current options.
func (t *Text) Options() TextOptions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts
}

// SetOptions applies the non-zero fields of o and re-notifies.
func (t *Text) SetOptions(o TextOptions) {
	t.mu.Lock()
	if o.Size != 0 {
		t.opts.Size = o.Size
	}
	if o.Style != "" {
		t.opts.Style = o.Style
	}
	if o.Weight != "" {
		t.opts.Weight = o.Weight
	}
	t.mu.Unlock()
	t.Update()
}

// SetSize sets the font size in px and re-notifies.
func (t *Text) SetSize(px float64) {
	t.mu.Lock()
	t.opts.Size = px
	t.mu.Unlock()
	t.Update()
}

// SetStyle sets the font style and re-notifies.
func (t *Text) SetStyle(s TextStyle) {
	t.mu.Lock()
	t.opts.Style = s
	t.mu.Unlock()
	t.Update()
}

// SetWeight sets the font weight and re-notifies.
func (t *Text) SetWeight(w TextWeight) {
	t.mu.Lock()
	t.opts.Weight = w
	t.mu.Unlock()
	t.Update()
}

// Declarations renders the options as CSS declarations, e.g.
// "font-size: 12px; font-weight: bold". Unset options are omitted.
func (t *Text) Declarations() string {
	o := t.Options()
	var decls []string
	if o.Size > 0 {
		decls = append(decls, "font-size: "+strconv.FormatFloat(o.Size, 'f', -1, 64)+"px")
	}
	if o.Style != "" {
		decls = append(decls, "font-style: "+string(o.Style))
	}
	if o.Weight != "" {
		decls = append(decls, "font-weight: "+string(o.Weight))
	}
	return strings.Join(decls, "; ")
}
