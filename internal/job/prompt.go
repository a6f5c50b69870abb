package job

import (
	"fmt"
	"strings"
)

// Fixed prompts for the fan-out stage. The analysis prompt extracts any
// hand-drawn animation annotations; the edit prompts strip them from the
// frames handed to the video model.
const (
	annotationAnalysisPrompt = "Describe any animation annotations you see. " +
		"Use this description to inform a video director. " +
		"Be descriptive about location and purpose of the annotations."

	cleanStartFramePrompt = "Remove all text, captions, subtitles, annotations from this image. " +
		"Generate a clean version of the image with no text. " +
		"Keep everything else the exact same."

	cleanEndFramePrompt = "Remove all text, captions, subtitles, annotations from this image. " +
		"Generate a clean version of the image with no text. " +
		"Keep the art/image style the exact same."
)

// buildVideoPrompt assembles the generation prompt from the user's custom
// prompt, the board-level context, and the annotation description produced
// by the analysis sub-call. Pure function; empty sections are omitted.
func buildVideoPrompt(customPrompt, globalContext, annotationDescription string) string {
	var b strings.Builder
	b.WriteString("Animate the provided frames into a single continuous shot.")

	if customPrompt != "" {
		fmt.Fprintf(&b, "\n\nDirection: %s", customPrompt)
	}
	if globalContext != "" {
		fmt.Fprintf(&b, "\n\nScene context: %s", globalContext)
	}
	if annotationDescription != "" {
		fmt.Fprintf(&b, "\n\nAnimation annotations found on the starting frame: %s", annotationDescription)
	}
	return b.String()
}
