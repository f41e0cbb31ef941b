package prompts

import (
	_ "embed"
)

//go:embed analysis.txt
var AnalysisPrompt string

//go:embed vision.txt
var VisionPrompt string

//go:embed plan.txt
var PlanPrompt string

//go:embed verify.txt
var VerifyPrompt string
