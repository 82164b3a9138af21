package notes

import "fmt"

const systemPrompt = `You are an expert teaching assistant that creates well-structured, comprehensive notes from lecture transcriptions.
Format the output in markdown with clear headings, bullet points, and formatting.
Organize the content logically, highlighting key concepts, definitions, examples, and important points.
Include a summary section at the end.`

// userPrompt builds the per-request instruction carrying the title and the
// full transcript.
func userPrompt(title, transcript string) string {
	return fmt.Sprintf("Please create comprehensive, well-structured lecture notes from the following transcription.\nTitle the notes: %q.\n\n%s", title, transcript)
}

// combinedPrompt merges system and user instructions for backends that
// take a single prompt string.
func combinedPrompt(title, transcript string) string {
	return systemPrompt + "\n\n" + userPrompt(title, transcript)
}
