package classfile

import "fmt"

// MethodDescriptor is a decoded method descriptor such as "(ILjava/lang/String;)[B".
type MethodDescriptor struct {
	Params []string
	Return string
}

// ParseMethodDescriptor splits a method descriptor into its parameter and return types.
func ParseMethodDescriptor(desc string) (*MethodDescriptor, error) {
	if len(desc) == 0 || desc[0] != '(' {
		return nil, fmt.Errorf("invalid method descriptor %q: missing '('", desc)
	}
	md := &MethodDescriptor{}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldTypeLen(desc[i:])
		if err != nil {
			return nil, fmt.Errorf("invalid method descriptor %q: %w", desc, err)
		}
		md.Params = append(md.Params, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return nil, fmt.Errorf("invalid method descriptor %q: missing ')'", desc)
	}
	ret := desc[i+1:]
	if ret != "V" {
		n, err := fieldTypeLen(ret)
		if err != nil || n != len(ret) {
			return nil, fmt.Errorf("invalid method descriptor %q: bad return type", desc)
		}
	}
	md.Return = ret
	return md, nil
}

// ValidFieldType reports whether s is exactly one field descriptor.
func ValidFieldType(s string) bool {
	n, err := fieldTypeLen(s)
	return err == nil && n == len(s)
}

// fieldTypeLen returns the length of the field descriptor at the start of s.
func fieldTypeLen(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0, fmt.Errorf("truncated type")
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		for j := i + 1; j < len(s); j++ {
			if s[j] == ';' {
				if j == i+1 {
					return 0, fmt.Errorf("empty class name")
				}
				return j + 1, nil
			}
		}
		return 0, fmt.Errorf("unterminated class type")
	}
	return 0, fmt.Errorf("invalid type descriptor char '%c'", s[i])
}

// SlotSize returns the number of local variable slots used by a field type.
func SlotSize(fieldType string) int {
	if fieldType == "J" || fieldType == "D" {
		return 2
	}
	return 1
}
