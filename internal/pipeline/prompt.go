package pipeline

// notesPromptTemplate is the fixed instruction prefix sent to the
// summarizer. The transcript is appended verbatim after it.
const notesPromptTemplate = `You are an expert lecture note-taker.
Take the following transcript and convert it into structured lecture notes with clear sections, headings, and bullet points.
Make it well-organized and easy to study from.

Transcript:
`

// buildNotesPrompt combines the instruction template with the transcript.
func buildNotesPrompt(transcript string) string {
	return notesPromptTemplate + transcript
}
