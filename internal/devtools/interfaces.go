package devtools

import "net/http"

type Demo interface {
	Resolve(name string) Scenario
	Scenarios() []string
}

type Server interface {
	Handler() http.Handler
	Start() (baseURL string, stop func() error, err error)
}

type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}
