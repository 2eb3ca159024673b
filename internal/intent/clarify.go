package intent

// Clarifications lists the follow-up questions for a recognition outcome.
// Below the threshold only the generic prompt is returned.
func (v *Vocabulary) Clarifications(name Name, confidence, threshold float64, entities map[string]any) []string {
	if confidence < threshold {
		return []string{v.unclearPrompt}
	}
	spec, ok := v.spec(name)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(spec.Required))
	for _, req := range spec.Required {
		satisfied := false
		for _, key := range req.AnyOf {
			if present(entities[key]) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			out = append(out, req.Prompt)
		}
	}
	return out
}
