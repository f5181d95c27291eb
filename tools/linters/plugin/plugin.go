package main

import (
	"golang.org/x/tools/go/analysis"

	"phalerts.app/server/tools/linters/enumvalidator"
)

type AnalyzerPlugin struct{}

func (*AnalyzerPlugin) GetAnalyzers() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		enumvalidator.Analyzer,
	}
}

func New(conf any) ([]*analysis.Analyzer, error) {
	return []*analysis.Analyzer{enumvalidator.Analyzer}, nil
}

// main is required for the package to link as an ordinary binary; it is
// unused when the package is built with -buildmode=plugin.
func main() {}
