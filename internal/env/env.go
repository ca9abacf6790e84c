package env

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Var map[string]string

// Env composes the environment handed to the interpreter and pip.
// Layers apply in order: OS environment (optional), env files, explicit vars.
type Env struct {
	Var  Var // explicit variables (K->V), applied last
	base Var // OS environment and env files
}

func New() *Env {
	return &Env{Var: make(Var), base: make(Var)}
}

// FromOS copies the current process environment into the base layer.
func (e *Env) FromOS() *Env {
	for _, kv := range os.Environ() {
		if k, v, ok := split(kv); ok {
			e.base[k] = v
		}
	}
	return e
}

// LoadFile merges a simple .env file into the base layer.
func (e *Env) LoadFile(path string) error {
	m, err := loadEnvFile(path)
	if err != nil {
		return err
	}
	for k, v := range m {
		e.base[k] = v
	}
	return nil
}

// Set sets an explicit variable K=V.
func (e *Env) Set(k, v string) *Env {
	if k != "" {
		e.Var[k] = v
	}
	return e
}

// SetPairs applies "K=V" entries as explicit variables; malformed entries are skipped.
func (e *Env) SetPairs(kvs []string) *Env {
	for _, kv := range kvs {
		if k, v, ok := split(kv); ok {
			e.Var[k] = v
		}
	}
	return e
}

// Environ returns the composed environment sorted by key. Explicit variables
// may reference other variables as ${NAME}; references resolve against the
// composed map without recursion.
func (e *Env) Environ() []string {
	m := make(Var, len(e.base)+len(e.Var))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.Var {
		m[k] = v
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		if _, explicit := e.Var[k]; explicit {
			v = expand(v, m)
		}
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			break
		}
		b.WriteString(s[:i])
		b.WriteString(m[s[i+2:i+j]])
		s = s[i+j+1:]
	}
	b.WriteString(s)
	return b.String()
}

func split(kv string) (string, string, bool) {
	i := strings.IndexByte(kv, '=')
	if i <= 0 {
		return "", "", false
	}
	return kv[:i], kv[i+1:], true
}

// loadEnvFile parses KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			m[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return m, nil
}
