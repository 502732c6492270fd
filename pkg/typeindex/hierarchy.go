package typeindex

// Superclass resolves t's superclass, or nil when it has none.
func Superclass(idx Index, t *Type) (*Type, error) {
	if t.SuperName == "" {
		return nil, nil
	}
	return idx.Resolve(t.SuperName)
}

// Interfaces resolves t's directly implemented (or extended) interfaces, in
// declaration order.
func Interfaces(idx Index, t *Type) ([]*Type, error) {
	out := make([]*Type, 0, len(t.InterfaceNames))
	for _, name := range t.InterfaceNames {
		itf, err := idx.Resolve(name)
		if err != nil {
			return nil, err
		}
		out = append(out, itf)
	}
	return out, nil
}

// IsAssignable reports whether a value of type from can be assigned to type
// to, i.e. to is from itself or one of its supertypes.
func IsAssignable(idx Index, to, from *Type) (bool, error) {
	if to.Name == from.Name || to.Name == "java/lang/Object" {
		return true, nil
	}
	if !to.IsInterface() && from.IsInterface() {
		return false, nil
	}

	visited := map[string]bool{from.Name: true}
	queue := []*Type{from}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]

		names := t.InterfaceNames
		if t.SuperName != "" {
			names = append([]string{t.SuperName}, names...)
		}
		for _, name := range names {
			if name == to.Name {
				return true, nil
			}
			if visited[name] {
				continue
			}
			visited[name] = true
			next, err := idx.Resolve(name)
			if err != nil {
				return false, err
			}
			queue = append(queue, next)
		}
	}
	return false, nil
}
