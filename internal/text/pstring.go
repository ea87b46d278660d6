// Package text turns genealogy objects into indexable text. Every
// builder produces a PString: a pair of texts where the public side
// never contains content from private objects or sub-objects.
package text

// PString is an immutable pair of texts: the public rendering, safe for
// viewers without access to private data, and the complete rendering.
type PString struct {
	public string
	all    string
}

// Plain returns a PString present in both renderings.
func Plain(s string) PString {
	return PString{public: s, all: s}
}

// Private returns a PString present only in the complete rendering.
func Private(s string) PString {
	return PString{all: s}
}

// PublicOnly returns a PString present only in the public rendering,
// used for placeholders that stand in for redacted content.
func PublicOnly(s string) PString {
	return PString{public: s}
}

// FromPair builds a PString from explicit renderings.
func FromPair(public, all string) PString {
	return PString{public: public, all: all}
}

// Public returns the public rendering.
func (p PString) Public() string { return p.public }

// All returns the complete rendering.
func (p PString) All() string { return p.all }

// IsEmpty reports whether both renderings are empty.
func (p PString) IsEmpty() bool {
	return p.public == "" && p.all == ""
}

// MarkPrivate drops the public rendering of p.
func MarkPrivate(p PString) PString {
	return PString{all: p.all}
}

// MarkPublicOnly drops the complete rendering of p.
func MarkPublicOnly(p PString) PString {
	return PString{public: p.public}
}

// PrivateIf drops the public rendering of p when private is true.
func PrivateIf(private bool, p PString) PString {
	if private {
		return MarkPrivate(p)
	}
	return p
}

// Concat concatenates parts side by side.
func Concat(parts ...PString) PString {
	var out PString
	for _, p := range parts {
		out.public += p.public
		out.all += p.all
	}
	return out
}

// Join joins parts with sep. Empty parts are skipped independently on
// each side, so a private part leaves no dangling separator in the
// public rendering.
func Join(sep string, parts []PString) PString {
	var out PString
	for _, p := range parts {
		if p.public != "" {
			if out.public != "" {
				out.public += sep
			}
			out.public += p.public
		}
		if p.all != "" {
			if out.all != "" {
				out.all += sep
			}
			out.all += p.all
		}
	}
	return out
}

// Wrap surrounds value with prefix and suffix on each side where value
// is non-empty; an empty side stays empty.
func Wrap(prefix, value, suffix PString) PString {
	var out PString
	if value.public != "" {
		out.public = prefix.public + value.public + suffix.public
	}
	if value.all != "" {
		out.all = prefix.all + value.all + suffix.all
	}
	return out
}
