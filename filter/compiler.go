package filter

const compileCacheSize = 128

// Compiler compiles filter expressions, caching compiled programs so
// instances sharing the same filter list compile each expression once.
type Compiler struct {
	cache *lruCache
}

// NewCompiler creates a compiler with an empty program cache.
func NewCompiler() *Compiler {
	return &Compiler{cache: newLRUCache(compileCacheSize)}
}

// Compile returns a compiled filter, reusing a cached program when the
// same expression was compiled before.
func (c *Compiler) Compile(source string) (*Filter, error) {
	if cached, ok := c.cache.Get(source); ok {
		return cached.(*Filter), nil
	}
	f, err := Compile(source)
	if err != nil {
		return nil, err
	}
	c.cache.Put(source, f)
	return f, nil
}

// CompileSet compiles a list of expressions into a Set. An empty list
// yields an empty set that hides nothing.
func (c *Compiler) CompileSet(sources []string) (*Set, error) {
	set := &Set{}
	for _, source := range sources {
		f, err := c.Compile(source)
		if err != nil {
			return nil, err
		}
		set.filters = append(set.filters, f)
	}
	return set, nil
}
