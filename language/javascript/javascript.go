// Package javascript provides the JavaScript language adapter.
package javascript

import (
	"encoding/json"
	"fmt"

	quickjswasi "github.com/paralin/go-quickjs-wasi"
)

// prelude records whether the program printed anything so the completion
// value is only echoed for expression-style submissions.
const prelude = `(function () {
  var printed = false;
  var wrap = function (fn) {
    return function () {
      printed = true;
      return fn.apply(this, arguments);
    };
  };
  if (typeof print === "function") globalThis.print = wrap(print);
  if (typeof console === "object") {
    ["log", "info", "warn", "error", "debug"].forEach(function (k) {
      if (typeof console[k] === "function") console[k] = wrap(console[k]);
    });
  }
  try {
    var value = (0, eval)(%s);
    if (!printed && value !== undefined) {
      print(String(value));
    }
  } catch (e) {
    if (typeof std === "object") {
      std.err.puts(String(e) + "\n");
      std.exit(1);
    }
    throw e;
  }
})();
`

// JavaScript implements the executor.Language interface for JavaScript execution.
type JavaScript struct{}

// New returns a JavaScript language adapter.
func New() *JavaScript {
	return &JavaScript{}
}

// Name returns "javascript".
func (j *JavaScript) Name() string {
	return "javascript"
}

// Module returns the QuickJS WASM binary.
func (j *JavaScript) Module() ([]byte, error) {
	return quickjswasi.QuickJSWASM, nil
}

// WrapCode embeds the submission as a string literal evaluated by the prelude.
func (j *JavaScript) WrapCode(code string) string {
	lit, _ := json.Marshal(code)
	return fmt.Sprintf(prelude, lit)
}

// Args returns the command-line arguments for the QuickJS interpreter.
func (j *JavaScript) Args(wrappedCode string) []string {
	return []string{"qjs", "--std", "-e", wrappedCode}
}
