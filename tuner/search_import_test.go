package tuner_test

// Blank import triggers tuner/search's init(), which registers
// NewSearchStrategyFunc. Sessions built in this package's tests resolve their
// strategy through it.
import _ "github.com/lambda-tuner/lambda-tuner/tuner/search"
