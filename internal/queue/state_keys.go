package queue

// Pipeline state keys written by the stage handlers. Each key records the
// output of the sub-stage that produced it.
const (
	StateListing    = "listing"
	StateFilter     = "filter"
	StateAnalysis   = "analysis"
	StateMatch      = "match"
	StatePage       = "page"
	StateProfile    = "profile"
	StateDetection  = "detection"
	StateValidation = "validation"
	StateSource     = "source"
)
