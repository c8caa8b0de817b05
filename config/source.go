package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Ordinals of the built-in sources. Higher ordinals win.
const (
	OrdinalDefaults = 100
	OrdinalFile     = 260
	OrdinalEnv      = 300
)

// Lookup reads a raw property by its dotted name.
type Lookup interface {
	Lookup(key string) (string, bool)
}

// Source is a named set of properties with a precedence ordinal.
type Source interface {
	Lookup
	Name() string
	Ordinal() int
}

// MapSource is an immutable in-memory Source.
type MapSource struct {
	name    string
	ordinal int
	values  map[string]string
}

// NewMapSource copies values into a new source.
func NewMapSource(name string, ordinal int, values map[string]string) *MapSource {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &MapSource{name: name, ordinal: ordinal, values: copied}
}

func (s *MapSource) Name() string { return s.name }
func (s *MapSource) Ordinal() int { return s.ordinal }

func (s *MapSource) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Properties returns a copy of the source's properties.
func (s *MapSource) Properties() map[string]string {
	copied := make(map[string]string, len(s.values))
	for k, v := range s.values {
		copied[k] = v
	}
	return copied
}

// Len reports the number of properties.
func (s *MapSource) Len() int {
	return len(s.values)
}

// EnvSource exposes environment variables as properties. A key such as
// "casdoor.client-id" is looked up as-is, then with every non-alphanumeric
// character replaced by '_', then upper-cased ("CASDOOR_CLIENT_ID").
type EnvSource struct {
	values map[string]string
}

// NewEnvSource builds a source from "KEY=value" pairs as returned by os.Environ.
func NewEnvSource(environ []string) *EnvSource {
	values := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		values[k] = v
	}
	return &EnvSource{values: values}
}

// OSEnvSource snapshots the process environment.
func OSEnvSource() *EnvSource {
	return NewEnvSource(os.Environ())
}

func (s *EnvSource) Name() string { return "EnvSource" }
func (s *EnvSource) Ordinal() int { return OrdinalEnv }

func (s *EnvSource) Lookup(key string) (string, bool) {
	if v, ok := s.values[key]; ok {
		return v, true
	}
	sanitized := envName(key)
	if v, ok := s.values[sanitized]; ok {
		return v, true
	}
	v, ok := s.values[strings.ToUpper(sanitized)]
	return v, ok
}

func envName(key string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, key)
}

// LoadYAMLSource reads a YAML file into a source with OrdinalFile.
func LoadYAMLSource(path string) (*MapSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return ParseYAMLSource(path, data)
}

// ParseYAMLSource flattens a YAML document into dotted property names, so
//
//	casdoor:
//	  client-id: abc
//
// becomes "casdoor.client-id" = "abc". Sequences are joined with commas.
func ParseYAMLSource(name string, data []byte) (*MapSource, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", name, err)
	}

	values := make(map[string]string)
	flatten("", doc, values)
	return &MapSource{name: name, ordinal: OrdinalFile, values: values}, nil
}

func flatten(prefix string, node any, out map[string]string) {
	switch typed := node.(type) {
	case map[string]any:
		for k, v := range typed {
			flatten(joinKey(prefix, k), v, out)
		}
	case map[any]any:
		// yaml.v3 decodes mappings with non-string keys (e.g. "8080: http") this way.
		for k, v := range typed {
			flatten(joinKey(prefix, fmt.Sprint(k)), v, out)
		}
	case []any:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprint(item))
		}
		out[prefix] = strings.Join(items, ",")
	case nil:
	default:
		out[prefix] = fmt.Sprint(typed)
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Stack merges sources; the highest ordinal containing a key wins, ties
// broken by source name.
type Stack struct {
	sources []Source
}

// NewStack orders sources by precedence.
func NewStack(sources ...Source) *Stack {
	ordered := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Ordinal() != ordered[j].Ordinal() {
			return ordered[i].Ordinal() > ordered[j].Ordinal()
		}
		return ordered[i].Name() < ordered[j].Name()
	})
	return &Stack{sources: ordered}
}

// With returns a new stack that also contains sources.
func (s *Stack) With(sources ...Source) *Stack {
	all := make([]Source, 0, len(s.sources)+len(sources))
	all = append(all, s.sources...)
	all = append(all, sources...)
	return NewStack(all...)
}

// Lookup returns the winning value for key.
func (s *Stack) Lookup(key string) (string, bool) {
	v, _, ok := s.LookupSource(key)
	return v, ok
}

// LookupSource returns the winning value for key and the name of the source providing it.
func (s *Stack) LookupSource(key string) (string, string, bool) {
	for _, src := range s.sources {
		if v, ok := src.Lookup(key); ok {
			return v, src.Name(), true
		}
	}
	return "", "", false
}

// Sources returns the sources in precedence order.
func (s *Stack) Sources() []Source {
	out := make([]Source, len(s.sources))
	copy(out, s.sources)
	return out
}
