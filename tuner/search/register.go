// register.go wires the strategies of this package into tuner's registration
// variable (NewSearchStrategyFunc). This init() runs when any package imports
// tuner/search, breaking the import cycle between tuner/ (interface owner) and
// tuner/search/ (implementations).
package search

import "github.com/lambda-tuner/lambda-tuner/tuner"

func init() {
	tuner.NewSearchStrategyFunc = New
}
