package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in config content using Go
// templates with {{.VAR_NAME}} syntax. Plain $ is left untouched so regex
// patterns, passwords, and shell snippets embedded in config survive intact.
//
// Examples:
//   - {{.JIRA_API_TOKEN}} → value of JIRA_API_TOKEN
//   - {{.JENKINS_HOST}}:{{.JENKINS_PORT}} → both variables expanded
//   - pattern: "^secret.*$" → preserved literally
//
// Missing variables expand to the empty string; required-field validation
// catches anything that must not be empty. Malformed templates pass the
// original bytes through so the YAML/JSON parser reports the real problem.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}
	return buf.Bytes()
}
