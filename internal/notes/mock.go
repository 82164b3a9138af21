package notes

import (
	"context"
	"fmt"
	"strings"
)

// mockGenerator produces fixed-structure notes without calling any model.
// It backs the local provider and the degradation path, so it never fails.
type mockGenerator struct{}

func (mockGenerator) generate(_ context.Context, title, transcript string) (string, error) {
	return MockNotes(title, transcript), nil
}

// MockNotes builds placeholder notes around a short excerpt of the
// transcript.
func MockNotes(title, transcript string) string {
	words := strings.Fields(transcript)
	if len(words) > 20 {
		words = words[:20]
	}
	excerpt := strings.Join(words, " ") + "..."

	return fmt.Sprintf(`# %s

## Introduction
- This lecture covers important concepts in the field
- The speaker begins by introducing the topic: %q
- We'll explore key ideas and their applications

## Main Concepts
### First Key Concept
- Detailed explanation of the concept
- Examples and applications
- Connection to previous material

### Second Key Concept
- Analysis of the second concept
- Step-by-step breakdown
- Important formulas and equations

## Summary
- The lecture covered several important concepts
- These ideas form the foundation for future topics
- Key takeaways include understanding the relationship between concepts

---
*Notes generated by Lectura - AI-powered Lecture Notes Generator*`, title, excerpt)
}
