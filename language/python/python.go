// Package python provides the Python language adapter.
//
// The interpreter is a WASI build of Python loaded from disk rather than
// embedded, so the binary stays small. Fetch it once with
// `codeserver runtime fetch` or Download.
package python

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// ErrModuleNotFound is returned when the interpreter module is missing on disk.
var ErrModuleNotFound = errors.New("python interpreter module not found")

// DefaultURL is the WASI Python build fetched by Download when none is configured.
const DefaultURL = "https://github.com/vmware-labs/webassembly-language-runtimes/releases/download/python%2F3.12.0%2B20231211-040d5a6/python-3.12.0.wasm"

// Expression submissions print their repr like the interactive prompt;
// everything else runs as a module body.
const prelude = `_src = %s
try:
    _code = compile(_src, "<submission>", "eval")
except SyntaxError:
    _code = None
_ns = {"__name__": "__main__"}
if _code is None:
    exec(compile(_src, "<submission>", "exec"), _ns)
else:
    _value = eval(_code, _ns)
    if _value is not None:
        print(repr(_value))
`

// Python implements the executor.Language interface for Python execution.
type Python struct {
	path string

	mu   sync.Mutex
	wasm []byte
}

// New returns a Python adapter that loads its interpreter from path.
func New(path string) *Python {
	return &Python{path: path}
}

// Name returns "python".
func (p *Python) Name() string {
	return "python"
}

// Module reads the interpreter from disk. A successful read is kept; a
// failed one is retried on the next call so a later fetch takes effect.
func (p *Python) Module() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.wasm != nil {
		return p.wasm, nil
	}
	wasm, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s (run `codeserver runtime fetch`)", ErrModuleNotFound, p.path)
	}
	if err != nil {
		return nil, err
	}
	p.wasm = wasm
	return wasm, nil
}

// WrapCode embeds the submission as a string literal evaluated by the prelude.
func (p *Python) WrapCode(code string) string {
	lit, _ := json.Marshal(code)
	return fmt.Sprintf(prelude, lit)
}

// Args returns the command-line arguments for the Python interpreter.
func (p *Python) Args(wrappedCode string) []string {
	return []string{"python", "-c", wrappedCode}
}
