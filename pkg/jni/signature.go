package jni

import (
	"fmt"
	"strings"
)

// Tag is a type descriptor character.
type Tag byte

const (
	TagBoolean Tag = 'Z'
	TagByte    Tag = 'B'
	TagChar    Tag = 'C'
	TagShort   Tag = 'S'
	TagInt     Tag = 'I'
	TagLong    Tag = 'J'
	TagFloat   Tag = 'F'
	TagDouble  Tag = 'D'
	TagVoid    Tag = 'V'
	TagObject  Tag = 'L'
	TagArray   Tag = '['
)

func (t Tag) String() string { return string(rune(t)) }

// isRef reports whether t names a reference kind.
func (t Tag) isRef() bool { return t == TagObject || t == TagArray }

// ReturnTag returns the character following the first ')' of a method
// signature. The tag is not validated; an unknown tag is reported when it
// is dispatched.
func ReturnTag(sig string) (Tag, error) {
	i := strings.IndexByte(sig, ')')
	if i < 0 {
		return 0, &Error{Kind: KindSignature, Detail: fmt.Sprintf("no ')' in %q", sig)}
	}
	if i+1 == len(sig) {
		return 0, &Error{Kind: KindSignature, Detail: fmt.Sprintf("missing return type in %q", sig)}
	}
	return Tag(sig[i+1]), nil
}

// ParamTypes splits the parameter section of a method signature into field
// descriptors.
func ParamTypes(sig string) ([]string, error) {
	bad := func(format string, args ...any) error {
		return &Error{Kind: KindSignature, Detail: fmt.Sprintf(format, args...)}
	}
	if !strings.HasPrefix(sig, "(") {
		return nil, bad("%q does not start with '('", sig)
	}
	end := strings.IndexByte(sig, ')')
	if end < 0 {
		return nil, bad("no ')' in %q", sig)
	}
	var params []string
	for i := 1; i < end; {
		n, err := descriptorLen(sig[i:end])
		if err != nil {
			return nil, bad("%q at offset %d: %v", sig, i, err)
		}
		params = append(params, sig[i:i+n])
		i += n
	}
	return params, nil
}

// descriptorLen returns the length of the field descriptor at the start of s.
func descriptorLen(s string) (int, error) {
	dims := 0
	for dims < len(s) && s[dims] == '[' {
		dims++
	}
	if dims == len(s) {
		return 0, fmt.Errorf("truncated descriptor")
	}
	switch Tag(s[dims]) {
	case TagBoolean, TagByte, TagChar, TagShort, TagInt, TagLong, TagFloat, TagDouble:
		return dims + 1, nil
	case TagObject:
		semi := strings.IndexByte(s[dims:], ';')
		if semi < 2 {
			return 0, fmt.Errorf("unterminated class name")
		}
		return dims + semi + 1, nil
	}
	return 0, fmt.Errorf("unknown type %q", s[dims])
}

// classDescriptor returns the field descriptor of an internal class name.
func classDescriptor(name string) string {
	if strings.HasPrefix(name, "[") {
		return name
	}
	return "L" + name + ";"
}
