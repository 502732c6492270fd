// Package descriptor parses JVM field and method descriptors.
package descriptor

import (
	"fmt"
	"strings"
)

// Sort classifies a field type by its leading descriptor character.
type Sort byte

const (
	Void    Sort = 'V'
	Boolean Sort = 'Z'
	Char    Sort = 'C'
	Byte    Sort = 'B'
	Short   Sort = 'S'
	Int     Sort = 'I'
	Float   Sort = 'F'
	Long    Sort = 'J'
	Double  Sort = 'D'
	Array   Sort = '['
	Object  Sort = 'L'
)

// Type is a single field type (or the void return type).
type Type struct {
	Sort       Sort
	Descriptor string
}

// Size returns the number of local variable / operand stack slots the type
// occupies: 2 for long and double, 0 for void, 1 otherwise.
func (t Type) Size() int {
	switch t.Sort {
	case Long, Double:
		return 2
	case Void:
		return 0
	default:
		return 1
	}
}

// IsReference reports whether the type is an object or array reference.
func (t Type) IsReference() bool {
	return t.Sort == Object || t.Sort == Array
}

// InternalName returns the internal class name of an object type, or "" for
// any other sort.
func (t Type) InternalName() string {
	if t.Sort != Object {
		return ""
	}
	return t.Descriptor[1 : len(t.Descriptor)-1]
}

func (t Type) String() string { return t.Descriptor }

// Method is a parsed method descriptor.
type Method struct {
	Args   []Type
	Return Type
}

// ArgSlots returns the number of local variable slots taken by the arguments.
func (m *Method) ArgSlots() int {
	n := 0
	for _, a := range m.Args {
		n += a.Size()
	}
	return n
}

// String renders the descriptor back.
func (m *Method) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, a := range m.Args {
		sb.WriteString(a.Descriptor)
	}
	sb.WriteByte(')')
	sb.WriteString(m.Return.Descriptor)
	return sb.String()
}

// ParseMethod parses a method descriptor such as "(IJLjava/lang/String;)V".
func ParseMethod(descriptor string) (*Method, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}
	end := strings.Index(descriptor, ")")
	if end == -1 {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}

	m := &Method{}
	params := descriptor[1:end]
	for i := 0; i < len(params); {
		t, n, err := parseField(params[i:], false)
		if err != nil {
			return nil, fmt.Errorf("%w in %s", err, descriptor)
		}
		m.Args = append(m.Args, t)
		i += n
	}

	ret, n, err := parseField(descriptor[end+1:], true)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, descriptor)
	}
	if end+1+n != len(descriptor) {
		return nil, fmt.Errorf("trailing characters in method descriptor: %s", descriptor)
	}
	m.Return = ret
	return m, nil
}

// ParseField parses a single field descriptor.
func ParseField(descriptor string) (Type, error) {
	t, n, err := parseField(descriptor, false)
	if err != nil {
		return Type{}, err
	}
	if n != len(descriptor) {
		return Type{}, fmt.Errorf("trailing characters in field descriptor: %s", descriptor)
	}
	return t, nil
}

// parseField reads one type from the front of s and returns it with the
// number of bytes consumed.
func parseField(s string, allowVoid bool) (Type, int, error) {
	if s == "" {
		return Type{}, 0, fmt.Errorf("empty type descriptor")
	}
	switch Sort(s[0]) {
	case Boolean, Char, Byte, Short, Int, Float, Long, Double:
		return Type{Sort: Sort(s[0]), Descriptor: s[:1]}, 1, nil
	case Void:
		if !allowVoid {
			return Type{}, 0, fmt.Errorf("void is only valid as a return type")
		}
		return Type{Sort: Void, Descriptor: "V"}, 1, nil
	case Object:
		// Skip until ';'
		semi := strings.IndexByte(s, ';')
		if semi < 2 {
			return Type{}, 0, fmt.Errorf("unterminated object type %q", s)
		}
		return Type{Sort: Object, Descriptor: s[:semi+1]}, semi + 1, nil
	case Array:
		// Array: skip dimensions, then the element type
		dims := 0
		for dims < len(s) && s[dims] == '[' {
			dims++
		}
		_, n, err := parseField(s[dims:], false)
		if err != nil {
			return Type{}, 0, err
		}
		return Type{Sort: Array, Descriptor: s[:dims+n]}, dims + n, nil
	default:
		return Type{}, 0, fmt.Errorf("invalid type descriptor char '%c'", s[0])
	}
}
