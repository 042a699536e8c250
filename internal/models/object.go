package models

// indexThreshold is the member count above which an Object keeps a key index
// instead of scanning its members.
const indexThreshold = 8

// Member is one name/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

// Object is an immutable mapping with unique keys. Members keep the position
// of the first assignment of each key; the value is the last one assigned.
type Object struct {
	members []Member
	index   map[string]int
}

func (*Object) Kind() Kind { return KindObject }

// NewObject builds an Object from members, collapsing repeated keys.
func NewObject(members ...Member) *Object {
	b := NewObjectBuilder(len(members))
	for _, m := range members {
		b.Set(m.Key, m.Value)
	}
	return b.Build()
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.members)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	if o.index != nil {
		i, ok := o.index[key]
		if !ok {
			return nil, false
		}
		return o.members[i].Value, true
	}
	for _, m := range o.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Members returns the members in document order. The slice is shared and
// must not be modified.
func (o *Object) Members() []Member {
	if o == nil {
		return nil
	}
	return o.members
}

// Keys returns the member names in document order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, o.Len())
	for _, m := range o.Members() {
		keys = append(keys, m.Key)
	}
	return keys
}

// ObjectBuilder accumulates members for a single Object. It is the only way
// to populate an Object; once Build is called the builder must be discarded.
type ObjectBuilder struct {
	members []Member
	index   map[string]int
}

// NewObjectBuilder returns a builder with room for sizeHint members.
func NewObjectBuilder(sizeHint int) *ObjectBuilder {
	return &ObjectBuilder{members: make([]Member, 0, sizeHint)}
}

// Set assigns key. A repeated key overwrites the earlier value in place.
func (b *ObjectBuilder) Set(key string, v Value) {
	if i, ok := b.lookup(key); ok {
		b.members[i].Value = v
		return
	}
	b.members = append(b.members, Member{Key: key, Value: v})
	if b.index != nil {
		b.index[key] = len(b.members) - 1
	} else if len(b.members) > indexThreshold {
		b.index = make(map[string]int, len(b.members)*2)
		for i, m := range b.members {
			b.index[m.Key] = i
		}
	}
}

// Len returns the number of distinct keys assigned so far.
func (b *ObjectBuilder) Len() int { return len(b.members) }

// Build returns the finished Object.
func (b *ObjectBuilder) Build() *Object {
	obj := &Object{members: b.members, index: b.index}
	b.members, b.index = nil, nil
	return obj
}

func (b *ObjectBuilder) lookup(key string) (int, bool) {
	if b.index != nil {
		i, ok := b.index[key]
		return i, ok
	}
	for i, m := range b.members {
		if m.Key == key {
			return i, true
		}
	}
	return 0, false
}
