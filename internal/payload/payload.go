// Package payload builds injection strings from a boundary (the prefix that
// closes the original SQL context and the suffix that neutralises the rest
// of the statement) and a core expression.
package payload

import "strings"

// Payload represents a complete injection payload.
type Payload struct {
	Prefix    string // Closes the original context (e.g., "'" or ")")
	Core      string // The injected logic (e.g., "AND 1=1")
	Suffix    string // Comments out the remainder (e.g., "-- -" or "#")
	Technique string // Which technique generated this
	DBMS      string // Target DBMS, empty when engine-agnostic
}

// String returns the payload as appended to the original value: prefix,
// then a space and the core, then a space and the suffix if one is set.
func (p *Payload) String() string {
	var b strings.Builder
	b.WriteString(p.Prefix)
	if p.Core != "" {
		if !strings.HasPrefix(p.Core, ";") {
			b.WriteByte(' ')
		}
		b.WriteString(p.Core)
	}
	if p.Suffix != "" {
		b.WriteByte(' ')
		b.WriteString(p.Suffix)
	}
	return b.String()
}

// Inject returns original with the payload appended.
func (p *Payload) Inject(original string) string {
	return original + p.String()
}

// Builder constructs payloads.
type Builder struct {
	prefix    string
	core      string
	suffix    string
	technique string
	dbms      string
}

// NewBuilder creates a new payload builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithBoundary sets prefix and suffix from b.
func (b *Builder) WithBoundary(bd Boundary) *Builder {
	b.prefix = bd.Prefix
	b.suffix = bd.Suffix
	return b
}

// WithPrefix sets the injection prefix.
func (b *Builder) WithPrefix(prefix string) *Builder {
	b.prefix = prefix
	return b
}

// WithCore sets the core payload expression.
func (b *Builder) WithCore(core string) *Builder {
	b.core = core
	return b
}

// WithSuffix sets the injection suffix.
func (b *Builder) WithSuffix(suffix string) *Builder {
	b.suffix = suffix
	return b
}

// WithTechnique sets the technique name.
func (b *Builder) WithTechnique(technique string) *Builder {
	b.technique = technique
	return b
}

// WithDBMS sets the target DBMS.
func (b *Builder) WithDBMS(dbms string) *Builder {
	b.dbms = dbms
	return b
}

// Build produces the final Payload.
func (b *Builder) Build() *Payload {
	return &Payload{
		Prefix:    b.prefix,
		Core:      b.core,
		Suffix:    b.suffix,
		Technique: b.technique,
		DBMS:      b.dbms,
	}
}
