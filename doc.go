// Package codeserver is a small remote code execution server for Python and
// JavaScript.
//
// # Overview
//
// Clients POST source code and a language tag over HTTP; the server runs the
// code in a WebAssembly interpreter and answers with the captured output.
// Running executions can be listed and cancelled from other connections.
//
// The pieces, leaf first:
//
//   - language: the closed set of supported languages and their aliases
//   - executor, language/python, language/javascript: wazero hosts for the
//     interpreters
//   - coordinator: the registry of running, cancellable executions
//   - httpd: a minimal HTTP/1.1 server written directly on net
//   - internal/api: routes requests to the coordinator
//   - cmd/codeserver: the serve, run, repl and runtime commands
//
// # Basic Usage
//
//	exec, _ := executor.New()
//	defer exec.Close()
//
//	coord := coordinator.New(map[language.Kind]coordinator.Runtime{
//	    language.JavaScript: exec.Bind(javascript.New()),
//	}, coordinator.WithTimeout(30*time.Second))
//
//	srv := httpd.New(api.NewRouter(coord))
//	addr, err := srv.Listen(8080)
//
// # Protocol
//
//	curl -d '{"code":"print(1+1)","language":"python"}' localhost:8080/execute
//	{"processId":"...","language":"python","success":true,"output":"2\n"}
//
// Every connection carries exactly one request and is closed after the
// response.
package codeserver
