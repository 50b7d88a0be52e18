package service

import (
	"fmt"
	"strings"

	"pestid/pkg/interpreter"
)

// DefaultVisionPrompt 单模型识别默认提示词
const DefaultVisionPrompt = `Identify every insect or other pest visible in this image.
Respond with a JSON array. Each element must contain:
  "label": common name,
  "family", "genus", "species": taxonomy as precise as you can tell,
  "confidence": number between 0 and 1,
  "bbox": [x1, y1, x2, y2] scaled to 0-1000,
  "reasoning": one or two sentences.
If no pest is visible respond with [].`

// detectPrompt 第一阶段：定位并给出候选物种
func detectPrompt(maxDetections int) string {
	return fmt.Sprintf(`Detect up to %d insects or pests in this image.
Return a JSON array only. Each element:
{"box_2d": [ymin, xmin, ymax, xmax] scaled 0-1000, "label": common name,
 "family": "...", "genus": "...", "possible_species": [up to 5 scientific names, most likely first]}
Return [] when nothing is found.`, maxDetections)
}

// refinePrompt 第二阶段：针对单个目标确定最终物种
func refinePrompt(det interpreter.Detection) string {
	var b strings.Builder
	b.WriteString("Focus only on the organism inside this bounding box")
	if det.Box != nil {
		fmt.Fprintf(&b, " (normalized x1=%.3f y1=%.3f x2=%.3f y2=%.3f)",
			det.Box.X1, det.Box.Y1, det.Box.X2, det.Box.Y2)
	}
	b.WriteString(".\n")
	if det.Family != "" || det.Genus != "" {
		fmt.Fprintf(&b, "A first pass suggested family %q, genus %q.\n", det.Family, det.Genus)
	}
	if len(det.PossibleSpecies) > 0 {
		fmt.Fprintf(&b, "Candidate species: %s.\n", strings.Join(det.PossibleSpecies, ", "))
	}
	b.WriteString(`Pick the most likely species (a candidate or a better one).
Return a JSON object only: {"final_species": "...", "confidence": 0-1, "reasoning": "..."}`)
	return b.String()
}
