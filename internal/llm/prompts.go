package llm

// --- Page transcription prompts ---

const transcribeSystemPrompt = "You are a document transcription engine. Your task is to transcribe a single page of a source document with maximum fidelity. Accuracy and information preservation are of utmost importance."

const transcribeUserPrompt = `Transcribe ALL visible text on this page verbatim, preserving reading order.

For any non-text visual element, insert a bracketed description in place:
- images and photos: [Image: detailed description]
- diagrams and charts: [Diagram: detailed description]
- tables: [Table: reproduce the table content as text rows]

Ignore page headers and footers such as page numbers or publisher names.
Return only the transcription, with no preamble.`

// --- Curriculum synthesis prompts ---

const synthesizeSystemPrompt = "You are a curriculum designer. Your task is to partition a transcribed document into pedagogically coherent sections and write a quiz for each. You must output a single valid JSON object."

// %d is the required question count per section.
const synthesizeUserPrompt = `The input below is the page-by-page transcript of a study document. Each page is introduced by a "--- Page N ---" delimiter.

Partition the content into ordered, pedagogically coherent sections. The sections must cover every page exactly once: the first section starts at page 1, each section's page range is inclusive and contiguous with the next, and the last section ends at the final page.

For each section produce:
- "title": a short descriptive title
- "startPage" and "endPage": the inclusive 1-based page range
- "summary": a paragraph summarizing the section for a learner
- "questions": exactly %d multiple-choice questions testing the section's content. Each question has "question", "choices" (4 plausible options), "correctIndex" (0-based index of the single correct choice), and "explanation".

Return a single JSON object of the form {"sections": [...]} and nothing else.

Transcript:
%s`

// --- Answer-key extraction prompts ---

const answerKeySystemPrompt = "You are an answer-key reader. Your task is to extract the correct answers from scanned answer-key pages. You must output a single valid JSON object."

const answerKeyUserPrompt = `These pages are the answer key for a multiple-choice question set.

Extract every answer you can find as a mapping from the 1-based question number to its correct choice letter(s). Multi-answer questions list all letters.

Return a single JSON object of the form:
{"answers": [{"number": 1, "options": ["A"]}, {"number": 2, "options": ["B", "D"]}]}
and nothing else.`

// --- Quiz extraction prompts ---

const extractSystemPrompt = "You are a quiz digitizer. Your task is to extract multiple-choice questions from a transcribed quiz document. You must output a single valid JSON object."

const extractUserPrompt = `The input below is the page-by-page transcript of a quiz document.

Extract every multiple-choice question in order. For each question produce "question", "choices" (the options in their printed order), "correctIndex" (0-based, or -1 if the document does not mark the answer), and "explanation" (empty string if none is printed).

Return a single JSON object of the form {"questions": [...]} and nothing else.

Transcript:
%s`
