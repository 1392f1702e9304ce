package gemini

// captionPrompt asks for a structured markdown description. The fixed
// section headers make the reply parseable without a response schema,
// and the keyword section feeds the tag extractor directly.
const captionPrompt = `Describe this image for a search index. Answer in English using exactly these markdown sections:

## Subjects
The main people, animals or objects, most prominent first.

## Actions
What is happening in the image. Write "none" for static scenes.

## Setting
Location, environment, time of day, weather if visible.

## Visual Attributes
Dominant colors, lighting, composition, photographic style.

## Visible Text
Any readable text in the image, quoted verbatim. Write "none" if there is none.

## Notable Details
Anything distinctive a person would remember about this image.

## Search Keywords
A single comma-separated line of 10-15 lowercase keywords someone might search for.

Be concrete and specific. Do not speculate about anything not visible.`
